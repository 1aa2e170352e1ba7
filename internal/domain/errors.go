package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrDuplicateLeverage    = errors.New("leveraged position already open")
	ErrInvalidLeverage      = errors.New("invalid leverage")
	ErrPropertyLocked       = errors.New("property market not unlocked")
	ErrAlreadyOwned         = errors.New("property already owned")
	ErrRateLimited          = errors.New("rate limited")
	ErrLockHeld             = errors.New("lock already held")
)
