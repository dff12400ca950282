package engine

import (
	"context"
	"errors"

	"skillpass/internal/domain"
	"skillpass/internal/ledger"
	"skillpass/internal/repo"
)

// Read paths run outside a transaction: each returns a point-in-time view.

// Overview is the platform-wide snapshot.
type Overview struct {
	State           domain.ProgramState `json:"state"`
	Treasury        domain.Treasury     `json:"treasury"`
	TreasuryBalance uint64              `json:"treasury_balance"`
	TotalSupply     uint64              `json:"total_supply"`
}

func (e Engine) Overview(ctx context.Context) (Overview, error) {
	state, err := e.Repo.GetProgramState(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return Overview{}, ErrNotInitialized
	}
	if err != nil {
		return Overview{}, err
	}
	treasury, err := e.Repo.GetTreasury(ctx)
	if err != nil {
		return Overview{}, err
	}
	bal, err := e.Ledger.BalanceOf(ctx, ledger.TreasuryAccount)
	if err != nil {
		return Overview{}, err
	}
	supply, err := e.Ledger.TotalSupply(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{State: state, Treasury: treasury, TreasuryBalance: bal, TotalSupply: supply}, nil
}

// SkillDetail joins a skill with its pool, revenue breakdown, stake record
// and endorsement history.
type SkillDetail struct {
	Skill        domain.Skill            `json:"skill"`
	Pool         domain.InvestmentPool   `json:"pool"`
	Breakdown    domain.RevenueBreakdown `json:"breakdown"`
	StakeInfo    domain.StakeInfo        `json:"stake_info"`
	Endorsements []domain.Endorsement    `json:"endorsements,omitempty"`
}

func (e Engine) SkillDetail(ctx context.Context, skillID uint64) (SkillDetail, error) {
	skill, err := e.Repo.GetSkill(ctx, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return SkillDetail{}, ErrSkillNotFound
	}
	if err != nil {
		return SkillDetail{}, err
	}
	pool, err := e.Repo.GetPool(ctx, skillID)
	if err != nil {
		return SkillDetail{}, err
	}
	breakdown, err := e.Repo.GetBreakdown(ctx, skillID)
	if err != nil {
		return SkillDetail{}, err
	}
	info, err := e.Repo.GetStakeInfo(ctx, skillID)
	if err != nil {
		return SkillDetail{}, err
	}
	endorsements, err := e.Repo.ListEndorsementsBySkill(ctx, skillID)
	if err != nil {
		return SkillDetail{}, err
	}
	return SkillDetail{Skill: skill, Pool: pool, Breakdown: breakdown, StakeInfo: info, Endorsements: endorsements}, nil
}

// Portfolio is one user's position across the economy.
type Portfolio struct {
	User        string                 `json:"user"`
	Balance     uint64                 `json:"balance"`
	Reputation  domain.ReputationState `json:"reputation"`
	Investments []domain.Investment    `json:"investments,omitempty"`
	Rewards     domain.StakerRewards   `json:"rewards"`
}

func (e Engine) Portfolio(ctx context.Context, user string) (Portfolio, error) {
	bal, err := e.Ledger.BalanceOf(ctx, user)
	if err != nil {
		return Portfolio{}, err
	}
	rep, err := e.Repo.GetReputation(ctx, user)
	if errors.Is(err, repo.ErrNotFound) {
		rep = domain.ReputationState{User: user}
	} else if err != nil {
		return Portfolio{}, err
	}
	investments, err := e.Repo.ListInvestmentsByInvestor(ctx, user)
	if err != nil {
		return Portfolio{}, err
	}
	rewards, err := e.Repo.GetStakerRewards(ctx, user)
	if errors.Is(err, repo.ErrNotFound) {
		rewards = domain.StakerRewards{Staker: user}
	} else if err != nil {
		return Portfolio{}, err
	}
	return Portfolio{User: user, Balance: bal, Reputation: rep, Investments: investments, Rewards: rewards}, nil
}
