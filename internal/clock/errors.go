package clock

import "errors"

var (
	// ErrBadTermDuration is returned when the clock is built with a non-positive term duration.
	ErrBadTermDuration = errors.New("term duration must be positive")

	// ErrBadFirstTermStartTime is returned when the first term would start in the past.
	ErrBadFirstTermStartTime = errors.New("bad first term start time")

	// ErrTooManyTransitions is returned by EnsureCurrentTerm when more term
	// transitions are pending than a regular call may perform; a heartbeat is needed first.
	ErrTooManyTransitions = errors.New("too many term transitions pending")

	// ErrInvalidTransitionTerms is returned by a heartbeat that has nothing to transition.
	ErrInvalidTransitionTerms = errors.New("no term transitions needed")

	// ErrTermDoesNotExist is returned when asking for a term that has not started yet.
	ErrTermDoesNotExist = errors.New("term does not exist")

	// ErrTermRandomnessNotYet is returned when the beacon has not yet produced
	// the digest a term's randomness derives from.
	ErrTermRandomnessNotYet = errors.New("term randomness not yet available")

	// ErrTermRandomnessUnavailable is returned when the digest a term's randomness
	// derives from has left the beacon window before anyone read it.
	ErrTermRandomnessUnavailable = errors.New("term randomness unavailable")

	// ErrCannotDelayStartedCourt is returned when delaying the start of a court that already started.
	ErrCannotDelayStartedCourt = errors.New("cannot delay started court")

	// ErrCannotDelayPastStartTime is returned when the new start time is not in the future.
	ErrCannotDelayPastStartTime = errors.New("cannot delay to a past start time")
)
