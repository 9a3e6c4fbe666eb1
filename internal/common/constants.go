package common

const (
	// FinalRoundWeightPrecision scales final round weights so jurors holding less
	// than the minimum active balance multiple still get a fractional weight.
	FinalRoundWeightPrecision uint64 = 1000

	// MaxDraftIterations bounds the number of sortition searches a single draft call may run.
	MaxDraftIterations uint64 = 10

	// MaxAutoTermTransitions is the number of pending term transitions an
	// ordinary call is allowed to perform on its own before requiring a heartbeat.
	MaxAutoTermTransitions uint64 = 1

	// RandomnessWindow is the number of beacon heights during which a term seed can be read.
	RandomnessWindow uint64 = 256

	// MinRulingOptions and MaxRulingOptions bound the substantive rulings of a dispute.
	MinRulingOptions uint8 = 2
	MaxRulingOptions uint8 = 2
)
