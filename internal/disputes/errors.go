package disputes

import "errors"

// Precondition errors
var (
	ErrDisputeDoesNotExist       = errors.New("disputes: dispute does not exist")
	ErrRoundDoesNotExist         = errors.New("disputes: round does not exist")
	ErrInvalidRulingOptions      = errors.New("disputes: invalid number of possible rulings")
	ErrSenderNotDisputeSubject   = errors.New("disputes: sender is not the dispute subject")
	ErrEvidencePeriodClosed      = errors.New("disputes: evidence period is closed")
	ErrRoundAlreadyDrafted       = errors.New("disputes: round already drafted")
	ErrInvalidBatchSize          = errors.New("disputes: invalid batch size")
	ErrInvalidAdjudicationState  = errors.New("disputes: invalid adjudication state")
	ErrAppealAlreadyExists       = errors.New("disputes: round already appealed")
	ErrAppealAlreadyConfirmed    = errors.New("disputes: appeal already confirmed")
	ErrInvalidAppealRuling       = errors.New("disputes: invalid appeal ruling")
	ErrNoAppeal                  = errors.New("disputes: round was not appealed")
	ErrPreviousRoundNotSettled   = errors.New("disputes: previous round not settled")
	ErrRoundNotSettled           = errors.New("disputes: round penalties not settled")
	ErrWontRewardNonDraftedJuror = errors.New("disputes: juror was not drafted")
	ErrWontRewardIncoherentJuror = errors.New("disputes: juror was not coherent")
)

// Resource errors
var (
	ErrSubscriptionNotPaid = errors.New("disputes: subject subscription not up to date")
)

// Timing errors
var (
	ErrDraftTermNotReached   = errors.New("disputes: draft term not reached")
	ErrRandomnessUnavailable = errors.New("disputes: draft randomness unavailable")
)

// Idempotency errors
var (
	ErrRulingAlreadyExecuted = errors.New("disputes: ruling already executed")
	ErrRoundAlreadySettled   = errors.New("disputes: round already settled")
	ErrJurorAlreadyRewarded  = errors.New("disputes: juror already rewarded")
	ErrAppealAlreadySettled  = errors.New("disputes: appeal deposit already settled")
)
