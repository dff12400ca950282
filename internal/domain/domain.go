package domain

// ProgramState is the singleton root record created at bootstrap.
type ProgramState struct {
	Authority        string `json:"authority"`
	TotalSkills      uint64 `json:"total_skills"`
	TotalInvestments uint64 `json:"total_investments"`
	TotalRevenue     uint64 `json:"total_revenue"`
	CreatedAt        int64  `json:"created_at"`
}

// Treasury aggregates platform fee and distribution counters. The matching
// ledger account custodies every staked, invested or slashed token.
type Treasury struct {
	Authority        string `json:"authority"`
	TotalFees        uint64 `json:"total_fees"`
	TotalDistributed uint64 `json:"total_distributed"`
}

// ReputationState tracks a user's earned/slashed history independently of
// the raw token balance held by the ledger.
type ReputationState struct {
	User            string `json:"user"`
	ReputationScore uint64 `json:"reputation_score"`
	TotalEarned     uint64 `json:"total_earned"`
	TotalSlashed    uint64 `json:"total_slashed"`
	LastActivity    int64  `json:"last_activity"`
}

type Skill struct {
	SkillID          uint64 `json:"skill_id"`
	Owner            string `json:"owner"`
	Category         string `json:"category"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	MetadataURI      string `json:"metadata_uri,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	TotalStaked      uint64 `json:"total_staked"`
	EndorsementCount uint64 `json:"endorsement_count"`
	Verified         bool   `json:"verified"`
}

type InvestmentPool struct {
	SkillID            uint64 `json:"skill_id"`
	TotalInvested      uint64 `json:"total_invested"`
	MonthlyRevenue     uint64 `json:"monthly_revenue"`
	TotalRevenueEarned uint64 `json:"total_revenue_earned"`
	InvestorCount      uint64 `json:"investor_count"`
	SkillOwnerEarnings uint64 `json:"skill_owner_earnings"`
	CurrentAPY         uint64 `json:"current_apy"`
	LastDistribution   int64  `json:"last_distribution"`
}

// Investment is the single record per (investor, skill) pair.
type Investment struct {
	Investor      string `json:"investor"`
	SkillID       uint64 `json:"skill_id"`
	Amount        uint64 `json:"amount"`
	LastClaimTime int64  `json:"last_claim_time"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

type RevenueBreakdown struct {
	SkillID          uint64 `json:"skill_id"`
	JobCompletions   uint64 `json:"job_completions"`
	PlatformFees     uint64 `json:"platform_fees"`
	SubscriptionFees uint64 `json:"subscription_fees"`
	VerificationFees uint64 `json:"verification_fees"`
}

type StakeInfo struct {
	SkillID          uint64 `json:"skill_id"`
	TotalStaked      uint64 `json:"total_staked"`
	EndorsementCount uint64 `json:"endorsement_count"`
	AverageStake     uint64 `json:"average_stake"`
	Challenged       bool   `json:"challenged"`
	ChallengeEndTime int64  `json:"challenge_end_time"`
}

type Endorsement struct {
	Endorser     string `json:"endorser"`
	SkillID      uint64 `json:"skill_id"`
	StakedAmount uint64 `json:"staked_amount"`
	Timestamp    int64  `json:"timestamp"`
	Active       bool   `json:"active"`
	Evidence     string `json:"evidence"`
}

type StakerRewards struct {
	Staker        string `json:"staker"`
	TotalRewards  uint64 `json:"total_rewards"`
	LastClaimTime int64  `json:"last_claim_time"`
}

// Event is one row of the append-only operation log.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	SkillID uint64 `json:"skill_id,omitempty"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
