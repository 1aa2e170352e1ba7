package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

var _ domain.AchievementStore = (*AchievementStore)(nil)

// AchievementStore implements domain.AchievementStore using PostgreSQL.
type AchievementStore struct {
	pool *pgxpool.Pool
}

// NewAchievementStore creates a new AchievementStore backed by the given
// connection pool.
func NewAchievementStore(pool *pgxpool.Pool) *AchievementStore {
	return &AchievementStore{pool: pool}
}

// Award records the unlock and reports whether it was newly granted. The
// primary key makes re-awarding a no-op.
func (s *AchievementStore) Award(ctx context.Context, userID int64, achievementID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, awarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID, at)
	if err != nil {
		return false, fmt.Errorf("postgres: award achievement %s: %w", achievementID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the ids of all achievements the user has unlocked, oldest
// first.
func (s *AchievementStore) List(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT achievement_id FROM user_achievements
		 WHERE user_id = $1 ORDER BY awarded_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list achievements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan achievement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
