package voting

import "errors"

var (
	ErrVoteAlreadyExists     = errors.New("voting: vote already exists")
	ErrVoteDoesNotExist      = errors.New("voting: vote does not exist")
	ErrInvalidOutcomesAmount = errors.New("voting: invalid number of possible outcomes")
	ErrInvalidOutcome        = errors.New("voting: invalid outcome")
	ErrVoteAlreadyCommitted  = errors.New("voting: vote already committed")
	ErrVoteNotCommitted      = errors.New("voting: vote not committed")
	ErrVoteAlreadyRevealed   = errors.New("voting: vote already revealed")
	ErrVoteAlreadyLeaked     = errors.New("voting: vote already leaked")
	ErrInvalidCommitmentSalt = errors.New("voting: outcome and salt do not match the commitment")
	ErrVoterWeightZero       = errors.New("voting: voter has no weight")
)
