package engine

import (
	"context"
	"errors"

	"skillpass/internal/domain"
	"skillpass/internal/events"
	"skillpass/internal/ledger"
	"skillpass/internal/repo"
)

// Invest moves tokens from the investor to the treasury and grows the pool.
// The yield clock starts on the first contribution only; top-ups keep the
// existing last_claim_time so accrued-but-unclaimed yield carries forward.
func (e Engine) Invest(ctx context.Context, investor string, skillID, amount uint64) (domain.Investment, error) {
	if e.Config == nil {
		return domain.Investment{}, errors.New("config not loaded")
	}
	if amount < e.Config.Economy.MinInvestment {
		return domain.Investment{}, ErrBelowMinimumInvestment
	}
	if amount == 0 {
		return domain.Investment{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Investment{}, err
	}
	defer tx.Rollback()

	skill, err := e.getSkillTx(ctx, tx, skillID)
	if err != nil {
		return domain.Investment{}, err
	}
	bal, err := e.Ledger.BalanceOfTx(ctx, tx, investor)
	if err != nil {
		return domain.Investment{}, err
	}
	if bal < amount {
		return domain.Investment{}, ErrInsufficientFunds
	}
	if skill.Owner == investor {
		return domain.Investment{}, ErrCannotInvestInOwnSkill
	}
	pool, err := e.getPoolTx(ctx, tx, skillID)
	if err != nil {
		return domain.Investment{}, err
	}
	inv, err := e.Repo.GetInvestmentTx(ctx, tx, investor, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		inv = domain.Investment{Investor: investor, SkillID: skillID}
	} else if err != nil {
		return domain.Investment{}, err
	}
	if err := e.Ledger.Transfer(ctx, tx, investor, ledger.TreasuryAccount, amount); err != nil {
		return domain.Investment{}, err
	}
	if inv.Amount == 0 {
		pool.InvestorCount++
		inv.LastClaimTime = e.now().Unix()
	}
	if inv.Amount, err = addU64(inv.Amount, amount); err != nil {
		return domain.Investment{}, err
	}
	if pool.TotalInvested, err = addU64(pool.TotalInvested, amount); err != nil {
		return domain.Investment{}, err
	}
	if err := e.Repo.UpsertInvestmentTx(ctx, tx, inv); err != nil {
		return domain.Investment{}, err
	}
	if err := e.Repo.UpdatePoolTx(ctx, tx, pool); err != nil {
		return domain.Investment{}, err
	}
	state, err := e.Repo.GetProgramStateTx(ctx, tx)
	if err != nil {
		return domain.Investment{}, err
	}
	state.TotalInvestments++
	if err := e.Repo.UpdateProgramStateTx(ctx, tx, state); err != nil {
		return domain.Investment{}, err
	}
	if err := e.writer().Append(ctx, tx, "investment.made", skillID, investor, events.EventPayload{
		"amount":         amount,
		"total_invested": pool.TotalInvested,
	}); err != nil {
		return domain.Investment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Investment{}, err
	}
	return inv, nil
}

// RevenueSplit reports how one revenue event was divided.
type RevenueSplit struct {
	Revenue       uint64 `json:"revenue"`
	PlatformFee   uint64 `json:"platform_fee"`
	InvestorShare uint64 `json:"investor_share"`
	OwnerShare    uint64 `json:"owner_share"`
	PlatformShare uint64 `json:"platform_share"`
	CurrentAPY    uint64 `json:"current_apy"`
}

// RecordJobCompletion takes the platform fee from a completed job and splits
// it between the investor pool, the skill owner and the platform. The fee is
// computed first and every share multiplies before dividing, so truncation
// dust stays unallocated instead of compounding.
func (e Engine) RecordJobCompletion(ctx context.Context, actorID string, skillID, revenue uint64, title string) (RevenueSplit, error) {
	if e.Config == nil {
		return RevenueSplit{}, errors.New("config not loaded")
	}
	if revenue == 0 || title == "" {
		return RevenueSplit{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return RevenueSplit{}, err
	}
	defer tx.Rollback()

	state, err := e.requireAuthorityTx(ctx, tx, actorID)
	if err != nil {
		return RevenueSplit{}, err
	}
	if _, err := e.getSkillTx(ctx, tx, skillID); err != nil {
		return RevenueSplit{}, err
	}
	pool, err := e.getPoolTx(ctx, tx, skillID)
	if err != nil {
		return RevenueSplit{}, err
	}
	breakdown, err := e.getBreakdownTx(ctx, tx, skillID)
	if err != nil {
		return RevenueSplit{}, err
	}
	cfg := e.Config.Revenue
	split := RevenueSplit{Revenue: revenue}
	if split.PlatformFee, err = mulDiv(revenue, cfg.JobFeeBps, 10000); err != nil {
		return RevenueSplit{}, err
	}
	if split.InvestorShare, err = mulDiv(split.PlatformFee, cfg.InvestorShareBps, 10000); err != nil {
		return RevenueSplit{}, err
	}
	if split.OwnerShare, err = mulDiv(split.PlatformFee, cfg.OwnerShareBps, 10000); err != nil {
		return RevenueSplit{}, err
	}
	if split.PlatformShare, err = mulDiv(split.PlatformFee, cfg.PlatformShareBps, 10000); err != nil {
		return RevenueSplit{}, err
	}

	if pool.MonthlyRevenue, err = addU64(pool.MonthlyRevenue, split.InvestorShare); err != nil {
		return RevenueSplit{}, err
	}
	if pool.TotalRevenueEarned, err = addU64(pool.TotalRevenueEarned, split.InvestorShare); err != nil {
		return RevenueSplit{}, err
	}
	if pool.SkillOwnerEarnings, err = addU64(pool.SkillOwnerEarnings, split.OwnerShare); err != nil {
		return RevenueSplit{}, err
	}
	if pool.TotalInvested > 0 {
		annual, err := mulU64(pool.MonthlyRevenue, 12)
		if err != nil {
			return RevenueSplit{}, err
		}
		if pool.CurrentAPY, err = mulDiv(annual, 10000, pool.TotalInvested); err != nil {
			return RevenueSplit{}, err
		}
	}
	split.CurrentAPY = pool.CurrentAPY
	if breakdown.JobCompletions, err = addU64(breakdown.JobCompletions, split.InvestorShare); err != nil {
		return RevenueSplit{}, err
	}

	// The collected fee settles into the treasury account so later yield and
	// reward claims are covered by real balance.
	if err := e.Ledger.Mint(ctx, tx, ledger.TreasuryAccount, split.PlatformFee); err != nil {
		return RevenueSplit{}, err
	}
	treasury, err := e.Repo.GetTreasuryTx(ctx, tx)
	if err != nil {
		return RevenueSplit{}, err
	}
	if treasury.TotalFees, err = addU64(treasury.TotalFees, split.PlatformShare); err != nil {
		return RevenueSplit{}, err
	}
	if state.TotalRevenue, err = addU64(state.TotalRevenue, revenue); err != nil {
		return RevenueSplit{}, err
	}
	if err := e.Repo.UpdatePoolTx(ctx, tx, pool); err != nil {
		return RevenueSplit{}, err
	}
	if err := e.Repo.UpdateBreakdownTx(ctx, tx, breakdown); err != nil {
		return RevenueSplit{}, err
	}
	if err := e.Repo.UpdateTreasuryTx(ctx, tx, treasury); err != nil {
		return RevenueSplit{}, err
	}
	if err := e.Repo.UpdateProgramStateTx(ctx, tx, state); err != nil {
		return RevenueSplit{}, err
	}
	if err := e.writer().Append(ctx, tx, "revenue.job_recorded", skillID, actorID, events.EventPayload{
		"title":          title,
		"revenue":        revenue,
		"platform_fee":   split.PlatformFee,
		"investor_share": split.InvestorShare,
		"owner_share":    split.OwnerShare,
		"platform_share": split.PlatformShare,
	}); err != nil {
		return RevenueSplit{}, err
	}
	if err := tx.Commit(); err != nil {
		return RevenueSplit{}, err
	}
	return split, nil
}

// RecordSubscriptionRevenue books subscription income for a skill. The full
// amount lands in the treasury; no pool split applies.
func (e Engine) RecordSubscriptionRevenue(ctx context.Context, actorID string, skillID, amount uint64) (domain.RevenueBreakdown, error) {
	return e.recordFlatRevenue(ctx, actorID, skillID, amount, "revenue.subscription_recorded", func(b *domain.RevenueBreakdown) *uint64 {
		return &b.SubscriptionFees
	})
}

// RecordVerificationFee books a verification fee for a skill.
func (e Engine) RecordVerificationFee(ctx context.Context, actorID string, skillID, amount uint64) (domain.RevenueBreakdown, error) {
	return e.recordFlatRevenue(ctx, actorID, skillID, amount, "revenue.verification_recorded", func(b *domain.RevenueBreakdown) *uint64 {
		return &b.VerificationFees
	})
}

func (e Engine) recordFlatRevenue(ctx context.Context, actorID string, skillID, amount uint64, evtType string, field func(*domain.RevenueBreakdown) *uint64) (domain.RevenueBreakdown, error) {
	if e.Config == nil {
		return domain.RevenueBreakdown{}, errors.New("config not loaded")
	}
	if amount == 0 {
		return domain.RevenueBreakdown{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	defer tx.Rollback()

	state, err := e.requireAuthorityTx(ctx, tx, actorID)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if _, err := e.getSkillTx(ctx, tx, skillID); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	breakdown, err := e.getBreakdownTx(ctx, tx, skillID)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	slot := field(&breakdown)
	if *slot, err = addU64(*slot, amount); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := e.Ledger.Mint(ctx, tx, ledger.TreasuryAccount, amount); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	treasury, err := e.Repo.GetTreasuryTx(ctx, tx)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if treasury.TotalFees, err = addU64(treasury.TotalFees, amount); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if state.TotalRevenue, err = addU64(state.TotalRevenue, amount); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := e.Repo.UpdateBreakdownTx(ctx, tx, breakdown); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := e.Repo.UpdateTreasuryTx(ctx, tx, treasury); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := e.Repo.UpdateProgramStateTx(ctx, tx, state); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := e.writer().Append(ctx, tx, evtType, skillID, actorID, events.EventPayload{"amount": amount}); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RevenueBreakdown{}, err
	}
	return breakdown, nil
}

// YieldClaim reports the outcome of a successful yield claim.
type YieldClaim struct {
	SkillID       uint64 `json:"skill_id"`
	YieldAmount   uint64 `json:"yield_amount"`
	MonthsClaimed int64  `json:"months_claimed"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

// ClaimYield pays the investor their proportional share of the pool's monthly
// revenue for every whole yield period elapsed since the last claim. The full
// window is claimed atomically and the clock jumps to now.
func (e Engine) ClaimYield(ctx context.Context, investor string, skillID uint64) (YieldClaim, error) {
	if e.Config == nil {
		return YieldClaim{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return YieldClaim{}, err
	}
	defer tx.Rollback()

	inv, err := e.Repo.GetInvestmentTx(ctx, tx, investor, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return YieldClaim{}, ErrNoInvestmentFound
	}
	if err != nil {
		return YieldClaim{}, err
	}
	if inv.Amount == 0 {
		return YieldClaim{}, ErrNoInvestmentFound
	}
	pool, err := e.getPoolTx(ctx, tx, skillID)
	if err != nil {
		return YieldClaim{}, err
	}
	now := e.now().Unix()
	months := (now - inv.LastClaimTime) / e.Config.Revenue.YieldPeriodSecs
	if months <= 0 {
		return YieldClaim{}, ErrNoYieldToClaim
	}
	if pool.TotalInvested == 0 {
		return YieldClaim{}, ErrNoYieldToClaim
	}
	shareBps, err := mulDiv(inv.Amount, 10000, pool.TotalInvested)
	if err != nil {
		return YieldClaim{}, err
	}
	monthlyYield, err := mulDiv(pool.MonthlyRevenue, shareBps, 10000)
	if err != nil {
		return YieldClaim{}, err
	}
	yieldAmount, err := mulU64(monthlyYield, uint64(months))
	if err != nil {
		return YieldClaim{}, err
	}
	if yieldAmount == 0 {
		return YieldClaim{}, ErrNoYieldToClaim
	}
	treasuryBal, err := e.Ledger.BalanceOfTx(ctx, tx, ledger.TreasuryAccount)
	if err != nil {
		return YieldClaim{}, err
	}
	if treasuryBal < yieldAmount {
		return YieldClaim{}, ErrInsufficientFunds
	}
	if err := e.Ledger.Transfer(ctx, tx, ledger.TreasuryAccount, investor, yieldAmount); err != nil {
		return YieldClaim{}, err
	}
	inv.LastClaimTime = now
	if inv.TotalClaimed, err = addU64(inv.TotalClaimed, yieldAmount); err != nil {
		return YieldClaim{}, err
	}
	if err := e.Repo.UpsertInvestmentTx(ctx, tx, inv); err != nil {
		return YieldClaim{}, err
	}
	treasury, err := e.Repo.GetTreasuryTx(ctx, tx)
	if err != nil {
		return YieldClaim{}, err
	}
	if treasury.TotalDistributed, err = addU64(treasury.TotalDistributed, yieldAmount); err != nil {
		return YieldClaim{}, err
	}
	if err := e.Repo.UpdateTreasuryTx(ctx, tx, treasury); err != nil {
		return YieldClaim{}, err
	}
	if err := e.writer().Append(ctx, tx, "yield.claimed", skillID, investor, events.EventPayload{
		"yield_amount":   yieldAmount,
		"months_claimed": months,
	}); err != nil {
		return YieldClaim{}, err
	}
	if err := tx.Commit(); err != nil {
		return YieldClaim{}, err
	}
	return YieldClaim{
		SkillID:       skillID,
		YieldAmount:   yieldAmount,
		MonthsClaimed: months,
		TotalClaimed:  inv.TotalClaimed,
	}, nil
}
