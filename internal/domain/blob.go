package domain

import (
	"context"
	"time"
)

// BlobWriter writes objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Archiver moves aged ledger rows out of the database into cold storage.
type Archiver interface {
	// ArchiveLedger exports and deletes entries created before cutoff,
	// returning the number of rows archived.
	ArchiveLedger(ctx context.Context, cutoff time.Time) (int64, error)
}
