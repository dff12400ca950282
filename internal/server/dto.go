package server

import (
	"encoding/json"

	"skillpass/internal/domain"
	"skillpass/internal/engine"
)

// Request payloads

type InitializeRequest struct {
	Authority string `json:"authority"`
}

type MintRequest struct {
	User   string `json:"user"`
	Amount uint64 `json:"amount" minimum:"1"`
	Reason string `json:"reason,omitempty"`
}

type SlashRequest struct {
	User   string `json:"user"`
	Amount uint64 `json:"amount" minimum:"1"`
	Reason string `json:"reason,omitempty"`
}

type CreateSkillRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MetadataURI string `json:"metadata_uri"`
}

type UpdateSkillMetricsRequest struct {
	TotalStaked      uint64 `json:"total_staked"`
	EndorsementCount uint64 `json:"endorsement_count"`
}

type InvestRequest struct {
	Amount uint64 `json:"amount" minimum:"1"`
}

type JobCompletionRequest struct {
	Revenue uint64 `json:"revenue" minimum:"1"`
	Title   string `json:"title"`
}

type FlatRevenueRequest struct {
	Amount uint64 `json:"amount" minimum:"1"`
}

type EndorseRequest struct {
	StakeAmount uint64 `json:"stake_amount" minimum:"1"`
	Evidence    string `json:"evidence"`
}

type ResolveChallengeRequest struct {
	SkillIsValid bool `json:"skill_is_valid"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type ProgramStateResponse struct {
	Authority        string `json:"authority"`
	TotalSkills      uint64 `json:"total_skills"`
	TotalInvestments uint64 `json:"total_investments"`
	TotalRevenue     uint64 `json:"total_revenue"`
	CreatedAt        int64  `json:"created_at"`
}

type TreasuryResponse struct {
	Authority        string `json:"authority"`
	TotalFees        uint64 `json:"total_fees"`
	TotalDistributed uint64 `json:"total_distributed"`
}

type OverviewResponse struct {
	State           ProgramStateResponse `json:"state"`
	Treasury        TreasuryResponse     `json:"treasury"`
	TreasuryBalance uint64               `json:"treasury_balance"`
	TotalSupply     uint64               `json:"total_supply"`
}

type ReputationResponse struct {
	User            string `json:"user"`
	ReputationScore uint64 `json:"reputation_score"`
	TotalEarned     uint64 `json:"total_earned"`
	TotalSlashed    uint64 `json:"total_slashed"`
	LastActivity    int64  `json:"last_activity"`
}

type SkillResponse struct {
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

type PoolResponse struct {
	SkillID            uint64 `json:"skill_id"`
	TotalInvested      uint64 `json:"total_invested"`
	MonthlyRevenue     uint64 `json:"monthly_revenue"`
	TotalRevenueEarned uint64 `json:"total_revenue_earned"`
	InvestorCount      uint64 `json:"investor_count"`
	SkillOwnerEarnings uint64 `json:"skill_owner_earnings"`
	CurrentAPY         uint64 `json:"current_apy"`
	LastDistribution   int64  `json:"last_distribution"`
}

type BreakdownResponse struct {
	SkillID          uint64 `json:"skill_id"`
	JobCompletions   uint64 `json:"job_completions"`
	PlatformFees     uint64 `json:"platform_fees"`
	SubscriptionFees uint64 `json:"subscription_fees"`
	VerificationFees uint64 `json:"verification_fees"`
}

type StakeInfoResponse struct {
	SkillID          uint64 `json:"skill_id"`
	TotalStaked      uint64 `json:"total_staked"`
	EndorsementCount uint64 `json:"endorsement_count"`
	AverageStake     uint64 `json:"average_stake"`
	Challenged       bool   `json:"challenged"`
	ChallengeEndTime int64  `json:"challenge_end_time,omitempty"`
}

type EndorsementResponse struct {
	Endorser     string `json:"endorser"`
	SkillID      uint64 `json:"skill_id"`
	StakedAmount uint64 `json:"staked_amount"`
	Timestamp    int64  `json:"timestamp"`
	Active       bool   `json:"active"`
	Evidence     string `json:"evidence,omitempty"`
}

type SkillDetailResponse struct {
	Skill        SkillResponse         `json:"skill"`
	Pool         PoolResponse          `json:"pool"`
	Breakdown    BreakdownResponse     `json:"breakdown"`
	StakeInfo    StakeInfoResponse     `json:"stake_info"`
	Endorsements []EndorsementResponse `json:"endorsements"`
}

type InvestmentResponse struct {
	Investor      string `json:"investor"`
	SkillID       uint64 `json:"skill_id"`
	Amount        uint64 `json:"amount"`
	LastClaimTime int64  `json:"last_claim_time"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

type RevenueSplitResponse struct {
	Revenue       uint64 `json:"revenue"`
	PlatformFee   uint64 `json:"platform_fee"`
	InvestorShare uint64 `json:"investor_share"`
	OwnerShare    uint64 `json:"owner_share"`
	PlatformShare uint64 `json:"platform_share"`
	CurrentAPY    uint64 `json:"current_apy"`
}

type YieldClaimResponse struct {
	SkillID       uint64 `json:"skill_id"`
	YieldAmount   uint64 `json:"yield_amount"`
	MonthsClaimed int64  `json:"months_claimed"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

type ChallengeResolutionResponse struct {
	SkillID       uint64 `json:"skill_id"`
	SkillIsValid  bool   `json:"skill_is_valid"`
	RewardPool    uint64 `json:"reward_pool"`
	SlashedAmount uint64 `json:"slashed_amount"`
	Endorsers     int    `json:"endorsers"`
}

type StakerRewardsResponse struct {
	Staker        string `json:"staker"`
	TotalRewards  uint64 `json:"total_rewards"`
	LastClaimTime int64  `json:"last_claim_time"`
}

type PortfolioResponse struct {
	User        string                `json:"user"`
	Balance     uint64                `json:"balance"`
	Reputation  ReputationResponse    `json:"reputation"`
	Investments []InvestmentResponse  `json:"investments"`
	Rewards     StakerRewardsResponse `json:"rewards"`
}

type EventResponse struct {
	ID      int64           `json:"id"`
	TS      string          `json:"ts" format:"date-time"`
	Type    string          `json:"type"`
	SkillID uint64          `json:"skill_id,omitempty"`
	ActorID string          `json:"actor_id"`
	Payload json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Mappers

func programStateResponse(s domain.ProgramState) ProgramStateResponse {
	return ProgramStateResponse{
		Authority:        s.Authority,
		TotalSkills:      s.TotalSkills,
		TotalInvestments: s.TotalInvestments,
		TotalRevenue:     s.TotalRevenue,
		CreatedAt:        s.CreatedAt,
	}
}

func treasuryResponse(t domain.Treasury) TreasuryResponse {
	return TreasuryResponse{
		Authority:        t.Authority,
		TotalFees:        t.TotalFees,
		TotalDistributed: t.TotalDistributed,
	}
}

func reputationResponse(r domain.ReputationState) ReputationResponse {
	return ReputationResponse{
		User:            r.User,
		ReputationScore: r.ReputationScore,
		TotalEarned:     r.TotalEarned,
		TotalSlashed:    r.TotalSlashed,
		LastActivity:    r.LastActivity,
	}
}

func skillResponse(s domain.Skill) SkillResponse {
	return SkillResponse{
		SkillID:          s.SkillID,
		Owner:            s.Owner,
		Category:         s.Category,
		Name:             s.Name,
		Description:      s.Description,
		MetadataURI:      s.MetadataURI,
		CreatedAt:        s.CreatedAt,
		TotalStaked:      s.TotalStaked,
		EndorsementCount: s.EndorsementCount,
		Verified:         s.Verified,
	}
}

func poolResponse(p domain.InvestmentPool) PoolResponse {
	return PoolResponse{
		SkillID:            p.SkillID,
		TotalInvested:      p.TotalInvested,
		MonthlyRevenue:     p.MonthlyRevenue,
		TotalRevenueEarned: p.TotalRevenueEarned,
		InvestorCount:      p.InvestorCount,
		SkillOwnerEarnings: p.SkillOwnerEarnings,
		CurrentAPY:         p.CurrentAPY,
		LastDistribution:   p.LastDistribution,
	}
}

func breakdownResponse(b domain.RevenueBreakdown) BreakdownResponse {
	return BreakdownResponse{
		SkillID:          b.SkillID,
		JobCompletions:   b.JobCompletions,
		PlatformFees:     b.PlatformFees,
		SubscriptionFees: b.SubscriptionFees,
		VerificationFees: b.VerificationFees,
	}
}

func stakeInfoResponse(s domain.StakeInfo) StakeInfoResponse {
	return StakeInfoResponse{
		SkillID:          s.SkillID,
		TotalStaked:      s.TotalStaked,
		EndorsementCount: s.EndorsementCount,
		AverageStake:     s.AverageStake,
		Challenged:       s.Challenged,
		ChallengeEndTime: s.ChallengeEndTime,
	}
}

func endorsementResponse(e domain.Endorsement) EndorsementResponse {
	return EndorsementResponse{
		Endorser:     e.Endorser,
		SkillID:      e.SkillID,
		StakedAmount: e.StakedAmount,
		Timestamp:    e.Timestamp,
		Active:       e.Active,
		Evidence:     e.Evidence,
	}
}

func skillDetailResponse(d engine.SkillDetail) SkillDetailResponse {
	resp := SkillDetailResponse{
		Skill:        skillResponse(d.Skill),
		Pool:         poolResponse(d.Pool),
		Breakdown:    breakdownResponse(d.Breakdown),
		StakeInfo:    stakeInfoResponse(d.StakeInfo),
		Endorsements: []EndorsementResponse{},
	}
	for _, e := range d.Endorsements {
		resp.Endorsements = append(resp.Endorsements, endorsementResponse(e))
	}
	return resp
}

func investmentResponse(inv domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		Investor:      inv.Investor,
		SkillID:       inv.SkillID,
		Amount:        inv.Amount,
		LastClaimTime: inv.LastClaimTime,
		TotalClaimed:  inv.TotalClaimed,
	}
}

func rewardsResponse(r domain.StakerRewards) StakerRewardsResponse {
	return StakerRewardsResponse{
		Staker:        r.Staker,
		TotalRewards:  r.TotalRewards,
		LastClaimTime: r.LastClaimTime,
	}
}

func portfolioResponse(p engine.Portfolio) PortfolioResponse {
	resp := PortfolioResponse{
		User:        p.User,
		Balance:     p.Balance,
		Reputation:  reputationResponse(p.Reputation),
		Investments: []InvestmentResponse{},
		Rewards:     rewardsResponse(p.Rewards),
	}
	for _, inv := range p.Investments {
		resp.Investments = append(resp.Investments, investmentResponse(inv))
	}
	return resp
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage([]byte("{}"))
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage([]byte(evt.Payload))
	}
	return EventResponse{
		ID:      evt.ID,
		TS:      evt.TS,
		Type:    evt.Type,
		SkillID: evt.SkillID,
		ActorID: evt.ActorID,
		Payload: payload,
	}
}

func mapSkills(items []domain.Skill) []SkillResponse {
	res := make([]SkillResponse, 0, len(items))
	for _, s := range items {
		res = append(res, skillResponse(s))
	}
	return res
}
