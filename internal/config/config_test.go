package config_test

import (
	"strings"
	"testing"

	"skillpass/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Revenue.InvestorShareBps+cfg.Revenue.OwnerShareBps+cfg.Revenue.PlatformShareBps != 10000 {
		t.Fatalf("default shares do not sum to 10000")
	}
}

func TestShareSplitMustSumToTenThousand(t *testing.T) {
	cfg := config.Default()
	cfg.Revenue.InvestorShareBps = 6000
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "sum to 10000") {
		t.Fatalf("expected share sum error, got %v", err)
	}
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero min investment", `
economy: {min_investment: 0, min_stake: 1, max_supply: 1}
revenue: {job_fee_bps: 1000, investor_share_bps: 7000, owner_share_bps: 2000, platform_share_bps: 1000, yield_period_secs: 60}
challenge: {period_secs: 60, reputation_threshold: 1, slash_rate_pct: 50, reward_rate_pct: 10}
verification: {min_stake: 1, min_endorsements: 1}
`},
		{"fee over 100 percent", `
economy: {min_investment: 1, min_stake: 1, max_supply: 1}
revenue: {job_fee_bps: 10001, investor_share_bps: 7000, owner_share_bps: 2000, platform_share_bps: 1000, yield_period_secs: 60}
challenge: {period_secs: 60, reputation_threshold: 1, slash_rate_pct: 50, reward_rate_pct: 10}
verification: {min_stake: 1, min_endorsements: 1}
`},
		{"slash rate over 100", `
economy: {min_investment: 1, min_stake: 1, max_supply: 1}
revenue: {job_fee_bps: 1000, investor_share_bps: 7000, owner_share_bps: 2000, platform_share_bps: 1000, yield_period_secs: 60}
challenge: {period_secs: 60, reputation_threshold: 1, slash_rate_pct: 101, reward_rate_pct: 10}
verification: {min_stake: 1, min_endorsements: 1}
`},
	}
	for _, tc := range cases {
		if _, err := config.FromYAML([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
