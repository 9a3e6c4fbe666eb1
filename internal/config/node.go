package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Node gathers everything a tribunal node needs to start.
type Node struct {
	Log struct {
		Level string `mapstructure:"level"`
		Type  string `mapstructure:"type"`
	} `mapstructure:"log"`
	DataDir           string        `mapstructure:"data_dir"`
	HTTPAddr          string        `mapstructure:"http_addr"`
	TermDuration      time.Duration `mapstructure:"term_duration"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// StartUnix is the start of term 1 in unix seconds; 0 means one term from now.
	StartUnix int64 `mapstructure:"start_unix"`
	// BeaconSeed seeds the local hash chain randomness beacon.
	BeaconSeed string `mapstructure:"beacon_seed"`
	// Subjects are registered as arbitrable subjects at startup.
	Subjects []Subject   `mapstructure:"subjects"`
	Court    CourtConfig `mapstructure:"court"`
}

// Subject is an arbitrable subject the node serves, with the fee balance
// and subscription it starts with.
type Subject struct {
	Address   string `mapstructure:"address"`
	Fees      uint64 `mapstructure:"fees"`
	PaidUntil uint64 `mapstructure:"paid_until"`
}

// Load reads the node configuration from path (optional) and TRIBUNAL_*
// environment variables, on top of defaults, and validates the court part.
func Load(path string) (Node, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRIBUNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Node{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var n Node
	if err := v.Unmarshal(&n); err != nil {
		return Node{}, fmt.Errorf("decode config: %w", err)
	}
	if n.TermDuration <= 0 {
		return Node{}, errors.New("term duration must be positive")
	}
	if n.HeartbeatInterval <= 0 {
		return Node{}, errors.New("heartbeat interval must be positive")
	}
	for _, sub := range n.Subjects {
		if sub.Address == "" {
			return Node{}, errors.New("subject without address")
		}
	}
	if err := n.Court.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.type", "console")
	v.SetDefault("data_dir", "tribunal-data")
	v.SetDefault("http_addr", ":8645")
	v.SetDefault("term_duration", 8*time.Hour)
	v.SetDefault("heartbeat_interval", time.Minute)
	v.SetDefault("start_unix", 0)
	v.SetDefault("beacon_seed", "tribunal")

	v.SetDefault("court.fees.juror_fee", d.Fees.JurorFee)
	v.SetDefault("court.fees.draft_fee", d.Fees.DraftFee)
	v.SetDefault("court.fees.settle_fee", d.Fees.SettleFee)
	v.SetDefault("court.durations.evidence_terms", d.Durations.EvidenceTerms)
	v.SetDefault("court.durations.commit_terms", d.Durations.CommitTerms)
	v.SetDefault("court.durations.reveal_terms", d.Durations.RevealTerms)
	v.SetDefault("court.durations.appeal_terms", d.Durations.AppealTerms)
	v.SetDefault("court.durations.appeal_confirm_terms", d.Durations.AppealConfirmTerms)
	v.SetDefault("court.pcts.penalty_pct", d.Pcts.PenaltyPct)
	v.SetDefault("court.pcts.final_round_reduction", d.Pcts.FinalRoundReduction)
	v.SetDefault("court.round_params.first_round_jurors_number", d.RoundParams.FirstRoundJurorsNumber)
	v.SetDefault("court.round_params.appeal_step_factor", d.RoundParams.AppealStepFactor)
	v.SetDefault("court.round_params.max_regular_appeal_rounds", d.RoundParams.MaxRegularAppealRounds)
	v.SetDefault("court.round_params.final_round_lock_terms", d.RoundParams.FinalRoundLockTerms)
	v.SetDefault("court.appeal_collateral.appeal_collateral_factor", d.AppealCollateral.AppealCollateralFactor)
	v.SetDefault("court.appeal_collateral.appeal_confirm_collateral_factor", d.AppealCollateral.AppealConfirmCollateralFactor)
	v.SetDefault("court.min_active_balance", d.MinActiveBalance)
}
