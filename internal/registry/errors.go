package registry

import "errors"

var (
	ErrInvalidZeroAmount      = errors.New("registry: invalid zero amount")
	ErrInvalidJuror           = errors.New("registry: invalid juror address")
	ErrJurorNotFound          = errors.New("registry: juror not found")
	ErrNotEnoughAvailable     = errors.New("registry: not enough available balance")
	ErrActiveBelowMinimum     = errors.New("registry: active balance below minimum")
	ErrDeactivationExceeds    = errors.New("registry: deactivation amount exceeds unlocked active balance")
	ErrWithdrawalsLocked      = errors.New("registry: withdrawals locked")
	ErrNotEnoughActive        = errors.New("registry: not enough unlocked active balance")
	ErrNotEnoughLocked        = errors.New("registry: not enough locked balance")
	ErrNotEnoughCollected     = errors.New("registry: not enough collected tokens")
	ErrNoActiveJurors         = errors.New("registry: no active jurors at term")
	ErrBadDraftParams         = errors.New("registry: bad draft params")
	ErrSlashArgumentsMismatch = errors.New("registry: jurors, penalties and coherence lengths differ")
)
