package domain

import "errors"

// Business rejections. Every one of these is a typed result the caller
// can act on; none of them corrupts store state.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotActive  = errors.New("auction not active")
	ErrInvalidAmount     = errors.New("invalid bid amount")
	ErrNotOwner          = errors.New("caller is not the auction owner")
	ErrTooEarly          = errors.New("auction end time not reached")
	ErrAlreadyEnded      = errors.New("auction already ended")
	ErrAlreadyFinalized  = errors.New("auction already finalized")
)

// ErrStorageUnavailable distinguishes "the system could not be reached"
// from a business rejection. Store backends wrap infrastructure faults
// in it; callers test with errors.Is.
var ErrStorageUnavailable = errors.New("storage unavailable")
