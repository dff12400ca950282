package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models skillpass.yml: every tunable of the reputation economy.
// Amounts are base token units, rates are basis points unless noted.
type Config struct {
	Economy struct {
		MinInvestment uint64 `yaml:"min_investment"`
		MinStake      uint64 `yaml:"min_stake"`
		MaxSupply     uint64 `yaml:"max_supply"`
	} `yaml:"economy"`
	Revenue struct {
		JobFeeBps        uint64 `yaml:"job_fee_bps"`
		InvestorShareBps uint64 `yaml:"investor_share_bps"`
		OwnerShareBps    uint64 `yaml:"owner_share_bps"`
		PlatformShareBps uint64 `yaml:"platform_share_bps"`
		YieldPeriodSecs  int64  `yaml:"yield_period_secs"`
	} `yaml:"revenue"`
	Challenge struct {
		PeriodSecs          int64  `yaml:"period_secs"`
		ReputationThreshold uint64 `yaml:"reputation_threshold"`
		SlashRatePct        uint64 `yaml:"slash_rate_pct"`
		RewardRatePct       uint64 `yaml:"reward_rate_pct"`
	} `yaml:"challenge"`
	Verification struct {
		MinStake        uint64 `yaml:"min_stake"`
		MinEndorsements uint64 `yaml:"min_endorsements"`
	} `yaml:"verification"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig describes an event delivery target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run sp init or copy the default", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Economy.MinInvestment == 0 {
		return fmt.Errorf("config.economy.min_investment must be positive")
	}
	if c.Economy.MinStake == 0 {
		return fmt.Errorf("config.economy.min_stake must be positive")
	}
	if c.Economy.MaxSupply == 0 {
		return fmt.Errorf("config.economy.max_supply must be positive")
	}
	if c.Revenue.JobFeeBps == 0 || c.Revenue.JobFeeBps > 10000 {
		return fmt.Errorf("config.revenue.job_fee_bps must be in 1..10000")
	}
	split := c.Revenue.InvestorShareBps + c.Revenue.OwnerShareBps + c.Revenue.PlatformShareBps
	if split != 10000 {
		return fmt.Errorf("config.revenue shares must sum to 10000 bps, got %d", split)
	}
	if c.Revenue.YieldPeriodSecs <= 0 {
		return fmt.Errorf("config.revenue.yield_period_secs must be positive")
	}
	if c.Challenge.PeriodSecs <= 0 {
		return fmt.Errorf("config.challenge.period_secs must be positive")
	}
	if c.Challenge.SlashRatePct > 100 {
		return fmt.Errorf("config.challenge.slash_rate_pct must be at most 100")
	}
	if c.Challenge.RewardRatePct > 100 {
		return fmt.Errorf("config.challenge.reward_rate_pct must be at most 100")
	}
	if c.Verification.MinEndorsements == 0 {
		return fmt.Errorf("config.verification.min_endorsements must be positive")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "skillpass.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `economy:
  # 50,000 base units minimum investment, 10,000 minimum endorsement stake.
  min_investment: 50000
  min_stake: 10000
  max_supply: 100000000

revenue:
  # 10% of job revenue is taken as the distributable fee, then split
  # 70/20/10 between investors, the skill owner and the platform.
  job_fee_bps: 1000
  investor_share_bps: 7000
  owner_share_bps: 2000
  platform_share_bps: 1000
  yield_period_secs: 2592000 # 30 days

challenge:
  period_secs: 604800 # 7 days
  reputation_threshold: 1000
  slash_rate_pct: 50
  reward_rate_pct: 10

verification:
  min_stake: 1000
  min_endorsements: 5
`
