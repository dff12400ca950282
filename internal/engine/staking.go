package engine

import (
	"context"
	"errors"

	"skillpass/internal/domain"
	"skillpass/internal/events"
	"skillpass/internal/ledger"
	"skillpass/internal/repo"
)

// Endorse stakes tokens behind a skill. One active endorsement per
// (endorser, skill); the stake is custodied by the treasury until a challenge
// resolves it.
func (e Engine) Endorse(ctx context.Context, endorser string, skillID, stakeAmount uint64, evidence string) (domain.Endorsement, error) {
	if e.Config == nil {
		return domain.Endorsement{}, errors.New("config not loaded")
	}
	if stakeAmount < e.Config.Economy.MinStake {
		return domain.Endorsement{}, ErrBelowMinimumStake
	}
	if stakeAmount == 0 || evidence == "" {
		return domain.Endorsement{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Endorsement{}, err
	}
	defer tx.Rollback()

	skill, err := e.getSkillTx(ctx, tx, skillID)
	if err != nil {
		return domain.Endorsement{}, err
	}
	if skill.Owner == endorser {
		return domain.Endorsement{}, ErrCannotEndorseOwnSkill
	}
	bal, err := e.Ledger.BalanceOfTx(ctx, tx, endorser)
	if err != nil {
		return domain.Endorsement{}, err
	}
	if bal < stakeAmount {
		return domain.Endorsement{}, ErrInsufficientFunds
	}
	existing, err := e.Repo.GetEndorsementTx(ctx, tx, endorser, skillID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Endorsement{}, err
	}
	if err == nil && existing.Active {
		return domain.Endorsement{}, ErrAlreadyEndorsed
	}
	if err := e.Ledger.Transfer(ctx, tx, endorser, ledger.TreasuryAccount, stakeAmount); err != nil {
		return domain.Endorsement{}, err
	}
	info, err := e.getStakeInfoTx(ctx, tx, skillID)
	if err != nil {
		return domain.Endorsement{}, err
	}
	end := domain.Endorsement{
		Endorser:     endorser,
		SkillID:      skillID,
		StakedAmount: stakeAmount,
		Timestamp:    e.now().Unix(),
		Active:       true,
		Evidence:     evidence,
	}
	if err := e.Repo.UpsertEndorsementTx(ctx, tx, end); err != nil {
		return domain.Endorsement{}, err
	}
	if info.TotalStaked, err = addU64(info.TotalStaked, stakeAmount); err != nil {
		return domain.Endorsement{}, err
	}
	info.EndorsementCount++
	info.AverageStake = info.TotalStaked / info.EndorsementCount
	if err := e.Repo.UpdateStakeInfoTx(ctx, tx, info); err != nil {
		return domain.Endorsement{}, err
	}
	skill.TotalStaked = info.TotalStaked
	skill.EndorsementCount = info.EndorsementCount
	// Monotonic: once set, verification never clears automatically.
	if info.TotalStaked >= e.Config.Verification.MinStake && info.EndorsementCount >= e.Config.Verification.MinEndorsements {
		skill.Verified = true
	}
	if err := e.Repo.UpdateSkillMetricsTx(ctx, tx, skill); err != nil {
		return domain.Endorsement{}, err
	}
	if err := e.writer().Append(ctx, tx, "skill.endorsed", skillID, endorser, events.EventPayload{
		"stake_amount": stakeAmount,
		"total_staked": info.TotalStaked,
		"verified":     skill.Verified,
	}); err != nil {
		return domain.Endorsement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Endorsement{}, err
	}
	return end, nil
}

// Challenge opens a dispute window over a skill's endorsements.
func (e Engine) Challenge(ctx context.Context, challenger string, skillID uint64) (domain.StakeInfo, error) {
	if e.Config == nil {
		return domain.StakeInfo{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StakeInfo{}, err
	}
	defer tx.Rollback()

	if _, err := e.getSkillTx(ctx, tx, skillID); err != nil {
		return domain.StakeInfo{}, err
	}
	info, err := e.getStakeInfoTx(ctx, tx, skillID)
	if err != nil {
		return domain.StakeInfo{}, err
	}
	if info.TotalStaked == 0 {
		return domain.StakeInfo{}, ErrNothingToChallenge
	}
	if info.Challenged {
		return domain.StakeInfo{}, ErrAlreadyChallenged
	}
	rep, err := e.reputationOrZeroTx(ctx, tx, challenger)
	if err != nil {
		return domain.StakeInfo{}, err
	}
	if rep.ReputationScore < e.Config.Challenge.ReputationThreshold {
		return domain.StakeInfo{}, ErrInsufficientReputationToChallenge
	}
	info.Challenged = true
	info.ChallengeEndTime = e.now().Unix() + e.Config.Challenge.PeriodSecs
	if err := e.Repo.UpdateStakeInfoTx(ctx, tx, info); err != nil {
		return domain.StakeInfo{}, err
	}
	if err := e.writer().Append(ctx, tx, "skill.challenged", skillID, challenger, events.EventPayload{
		"challenge_end_time": info.ChallengeEndTime,
	}); err != nil {
		return domain.StakeInfo{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StakeInfo{}, err
	}
	return info, nil
}

// ChallengeResolution reports the outcome of a resolved challenge.
type ChallengeResolution struct {
	SkillID       uint64 `json:"skill_id"`
	SkillIsValid  bool   `json:"skill_is_valid"`
	RewardPool    uint64 `json:"reward_pool,omitempty"`
	SlashedAmount uint64 `json:"slashed_amount,omitempty"`
	Endorsers     int    `json:"endorsers"`
}

// ResolveChallenge settles a challenge after its window closes. A valid skill
// credits each active endorser a proportional reward; an invalid one books the
// slash against the already-custodied stakes. Both branches retire every
// endorsement and zero the stake record: each challenge cycle is a clean
// slate.
func (e Engine) ResolveChallenge(ctx context.Context, actorID string, skillID uint64, skillIsValid bool) (ChallengeResolution, error) {
	if e.Config == nil {
		return ChallengeResolution{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ChallengeResolution{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireAuthorityTx(ctx, tx, actorID); err != nil {
		return ChallengeResolution{}, err
	}
	info, err := e.getStakeInfoTx(ctx, tx, skillID)
	if err != nil {
		return ChallengeResolution{}, err
	}
	if !info.Challenged {
		return ChallengeResolution{}, ErrSkillNotChallenged
	}
	now := e.now().Unix()
	if now < info.ChallengeEndTime {
		return ChallengeResolution{}, ErrChallengePeriodNotEnded
	}
	treasury, err := e.Repo.GetTreasuryTx(ctx, tx)
	if err != nil {
		return ChallengeResolution{}, err
	}
	res := ChallengeResolution{SkillID: skillID, SkillIsValid: skillIsValid}
	if skillIsValid {
		if res.RewardPool, err = mulDiv(info.TotalStaked, e.Config.Challenge.RewardRatePct, 100); err != nil {
			return ChallengeResolution{}, err
		}
		if treasury.TotalFees, err = addU64(treasury.TotalFees, res.RewardPool); err != nil {
			return ChallengeResolution{}, err
		}
		endorsers, err := e.Repo.ListActiveEndorsementsTx(ctx, tx, skillID)
		if err != nil {
			return ChallengeResolution{}, err
		}
		res.Endorsers = len(endorsers)
		for _, end := range endorsers {
			reward, err := mulDiv(end.StakedAmount, e.Config.Challenge.RewardRatePct, 100)
			if err != nil {
				return ChallengeResolution{}, err
			}
			if reward == 0 {
				continue
			}
			rewards, err := e.Repo.GetStakerRewardsTx(ctx, tx, end.Endorser)
			if errors.Is(err, repo.ErrNotFound) {
				rewards = domain.StakerRewards{Staker: end.Endorser}
			} else if err != nil {
				return ChallengeResolution{}, err
			}
			if rewards.TotalRewards, err = addU64(rewards.TotalRewards, reward); err != nil {
				return ChallengeResolution{}, err
			}
			if err := e.Repo.UpsertStakerRewardsTx(ctx, tx, rewards); err != nil {
				return ChallengeResolution{}, err
			}
		}
	} else {
		// Stakes are already custodied by the treasury; slashing is a
		// bookkeeping reassignment, not a transfer.
		if res.SlashedAmount, err = mulDiv(info.TotalStaked, e.Config.Challenge.SlashRatePct, 100); err != nil {
			return ChallengeResolution{}, err
		}
		if treasury.TotalFees, err = addU64(treasury.TotalFees, res.SlashedAmount); err != nil {
			return ChallengeResolution{}, err
		}
	}
	if err := e.Repo.UpdateTreasuryTx(ctx, tx, treasury); err != nil {
		return ChallengeResolution{}, err
	}
	if err := e.Repo.DeactivateEndorsementsTx(ctx, tx, skillID); err != nil {
		return ChallengeResolution{}, err
	}
	info.Challenged = false
	info.ChallengeEndTime = 0
	info.TotalStaked = 0
	info.EndorsementCount = 0
	info.AverageStake = 0
	if err := e.Repo.UpdateStakeInfoTx(ctx, tx, info); err != nil {
		return ChallengeResolution{}, err
	}
	if err := e.writer().Append(ctx, tx, "challenge.resolved", skillID, actorID, events.EventPayload{
		"skill_is_valid": skillIsValid,
		"reward_pool":    res.RewardPool,
		"slashed_amount": res.SlashedAmount,
	}); err != nil {
		return ChallengeResolution{}, err
	}
	if err := tx.Commit(); err != nil {
		return ChallengeResolution{}, err
	}
	return res, nil
}

// ClaimStakingRewards pays out and zeroes the staker's accrued rewards.
func (e Engine) ClaimStakingRewards(ctx context.Context, staker string) (domain.StakerRewards, error) {
	if e.Config == nil {
		return domain.StakerRewards{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StakerRewards{}, err
	}
	defer tx.Rollback()

	rewards, err := e.Repo.GetStakerRewardsTx(ctx, tx, staker)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StakerRewards{}, ErrNoRewardsToClaim
	}
	if err != nil {
		return domain.StakerRewards{}, err
	}
	if rewards.TotalRewards == 0 {
		return domain.StakerRewards{}, ErrNoRewardsToClaim
	}
	amount := rewards.TotalRewards
	treasuryBal, err := e.Ledger.BalanceOfTx(ctx, tx, ledger.TreasuryAccount)
	if err != nil {
		return domain.StakerRewards{}, err
	}
	if treasuryBal < amount {
		return domain.StakerRewards{}, ErrInsufficientFunds
	}
	if err := e.Ledger.Transfer(ctx, tx, ledger.TreasuryAccount, staker, amount); err != nil {
		return domain.StakerRewards{}, err
	}
	rewards.TotalRewards = 0
	rewards.LastClaimTime = e.now().Unix()
	if err := e.Repo.UpsertStakerRewardsTx(ctx, tx, rewards); err != nil {
		return domain.StakerRewards{}, err
	}
	treasury, err := e.Repo.GetTreasuryTx(ctx, tx)
	if err != nil {
		return domain.StakerRewards{}, err
	}
	if treasury.TotalDistributed, err = addU64(treasury.TotalDistributed, amount); err != nil {
		return domain.StakerRewards{}, err
	}
	if err := e.Repo.UpdateTreasuryTx(ctx, tx, treasury); err != nil {
		return domain.StakerRewards{}, err
	}
	if err := e.writer().Append(ctx, tx, "rewards.claimed", 0, staker, events.EventPayload{
		"amount": amount,
	}); err != nil {
		return domain.StakerRewards{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StakerRewards{}, err
	}
	return rewards, nil
}
