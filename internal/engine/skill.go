package engine

import (
	"context"
	"database/sql"
	"errors"

	"skillpass/internal/domain"
	"skillpass/internal/events"
	"skillpass/internal/repo"
)

// SkillCreateOptions are parameters for registering a skill.
type SkillCreateOptions struct {
	Owner       string
	Category    string
	Name        string
	Description string
	MetadataURI string
}

// CreateSkill registers a skill under the next sequential id along with its
// empty pool, revenue breakdown and stake record.
func (e Engine) CreateSkill(ctx context.Context, opts SkillCreateOptions) (domain.Skill, error) {
	if e.Config == nil {
		return domain.Skill{}, errors.New("config not loaded")
	}
	if opts.Owner == "" {
		return domain.Skill{}, errors.New("owner is required")
	}
	if opts.Category == "" || opts.Name == "" || opts.Description == "" || opts.MetadataURI == "" {
		return domain.Skill{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Skill{}, err
	}
	defer tx.Rollback()

	state, err := e.Repo.GetProgramStateTx(ctx, tx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Skill{}, ErrNotInitialized
	}
	if err != nil {
		return domain.Skill{}, err
	}
	now := e.now().Unix()
	skill := domain.Skill{
		SkillID:     state.TotalSkills + 1,
		Owner:       opts.Owner,
		Category:    opts.Category,
		Name:        opts.Name,
		Description: opts.Description,
		MetadataURI: opts.MetadataURI,
		CreatedAt:   now,
	}
	if err := e.Repo.InsertSkillTx(ctx, tx, skill); err != nil {
		return domain.Skill{}, err
	}
	if err := e.Repo.InsertPoolTx(ctx, tx, domain.InvestmentPool{SkillID: skill.SkillID, LastDistribution: now}); err != nil {
		return domain.Skill{}, err
	}
	if err := e.Repo.InsertBreakdownTx(ctx, tx, domain.RevenueBreakdown{SkillID: skill.SkillID}); err != nil {
		return domain.Skill{}, err
	}
	if err := e.Repo.InsertStakeInfoTx(ctx, tx, domain.StakeInfo{SkillID: skill.SkillID}); err != nil {
		return domain.Skill{}, err
	}
	state.TotalSkills = skill.SkillID
	if err := e.Repo.UpdateProgramStateTx(ctx, tx, state); err != nil {
		return domain.Skill{}, err
	}
	if err := e.writer().Append(ctx, tx, "skill.created", skill.SkillID, opts.Owner, events.EventPayload{
		"category": skill.Category,
		"name":     skill.Name,
	}); err != nil {
		return domain.Skill{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Skill{}, err
	}
	return skill, nil
}

// UpdateSkillMetrics lets the authority reconcile the public skill metrics
// with the stake record, re-running the auto-verification rule.
func (e Engine) UpdateSkillMetrics(ctx context.Context, actorID string, skillID, totalStaked, endorsementCount uint64) (domain.Skill, error) {
	if e.Config == nil {
		return domain.Skill{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Skill{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireAuthorityTx(ctx, tx, actorID); err != nil {
		return domain.Skill{}, err
	}
	skill, err := e.getSkillTx(ctx, tx, skillID)
	if err != nil {
		return domain.Skill{}, err
	}
	info, err := e.getStakeInfoTx(ctx, tx, skillID)
	if err != nil {
		return domain.Skill{}, err
	}
	skill.TotalStaked = totalStaked
	skill.EndorsementCount = endorsementCount
	info.TotalStaked = totalStaked
	info.EndorsementCount = endorsementCount
	if endorsementCount > 0 {
		info.AverageStake = totalStaked / endorsementCount
	}
	// Verification is monotonic: the rule can set it but never clears it.
	if totalStaked >= e.Config.Verification.MinStake && endorsementCount >= e.Config.Verification.MinEndorsements {
		skill.Verified = true
	}
	if err := e.Repo.UpdateSkillMetricsTx(ctx, tx, skill); err != nil {
		return domain.Skill{}, err
	}
	if err := e.Repo.UpdateStakeInfoTx(ctx, tx, info); err != nil {
		return domain.Skill{}, err
	}
	if err := e.writer().Append(ctx, tx, "skill.metrics_updated", skillID, actorID, events.EventPayload{
		"total_staked":      totalStaked,
		"endorsement_count": endorsementCount,
		"verified":          skill.Verified,
	}); err != nil {
		return domain.Skill{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Skill{}, err
	}
	return skill, nil
}

func (e Engine) getSkillTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.Skill, error) {
	skill, err := e.Repo.GetSkillTx(ctx, tx, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return skill, ErrSkillNotFound
	}
	return skill, err
}

// Pool, breakdown and stake rows are seeded at skill creation, so a missing
// row means the skill itself does not exist.
func (e Engine) getStakeInfoTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.StakeInfo, error) {
	info, err := e.Repo.GetStakeInfoTx(ctx, tx, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return info, ErrSkillNotFound
	}
	return info, err
}

func (e Engine) getPoolTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.InvestmentPool, error) {
	pool, err := e.Repo.GetPoolTx(ctx, tx, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return pool, ErrSkillNotFound
	}
	return pool, err
}

func (e Engine) getBreakdownTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.RevenueBreakdown, error) {
	b, err := e.Repo.GetBreakdownTx(ctx, tx, skillID)
	if errors.Is(err, repo.ErrNotFound) {
		return b, ErrSkillNotFound
	}
	return b, err
}
