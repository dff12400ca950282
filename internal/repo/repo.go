package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"skillpass/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- program state ---

func (r Repo) InsertProgramStateTx(ctx context.Context, tx *sql.Tx, s domain.ProgramState) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO program_state(id,authority,total_skills,total_investments,total_revenue,created_at) VALUES (1,?,?,?,?,?)`,
		s.Authority, int64(s.TotalSkills), int64(s.TotalInvestments), int64(s.TotalRevenue), s.CreatedAt)
	return err
}

func (r Repo) GetProgramState(ctx context.Context) (domain.ProgramState, error) {
	return scanProgramState(r.DB.QueryRowContext(ctx, `SELECT authority,total_skills,total_investments,total_revenue,created_at FROM program_state WHERE id=1`))
}

func (r Repo) GetProgramStateTx(ctx context.Context, tx *sql.Tx) (domain.ProgramState, error) {
	return scanProgramState(tx.QueryRowContext(ctx, `SELECT authority,total_skills,total_investments,total_revenue,created_at FROM program_state WHERE id=1`))
}

func scanProgramState(row *sql.Row) (domain.ProgramState, error) {
	var s domain.ProgramState
	var skills, investments, revenue int64
	err := row.Scan(&s.Authority, &skills, &investments, &revenue, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.TotalSkills = uint64(skills)
	s.TotalInvestments = uint64(investments)
	s.TotalRevenue = uint64(revenue)
	return s, nil
}

func (r Repo) UpdateProgramStateTx(ctx context.Context, tx *sql.Tx, s domain.ProgramState) error {
	res, err := tx.ExecContext(ctx, `UPDATE program_state SET authority=?, total_skills=?, total_investments=?, total_revenue=? WHERE id=1`,
		s.Authority, int64(s.TotalSkills), int64(s.TotalInvestments), int64(s.TotalRevenue))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- treasury ---

func (r Repo) InsertTreasuryTx(ctx context.Context, tx *sql.Tx, t domain.Treasury) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO treasury(id,authority,total_fees,total_distributed) VALUES (1,?,?,?)`,
		t.Authority, int64(t.TotalFees), int64(t.TotalDistributed))
	return err
}

func (r Repo) GetTreasury(ctx context.Context) (domain.Treasury, error) {
	return scanTreasury(r.DB.QueryRowContext(ctx, `SELECT authority,total_fees,total_distributed FROM treasury WHERE id=1`))
}

func (r Repo) GetTreasuryTx(ctx context.Context, tx *sql.Tx) (domain.Treasury, error) {
	return scanTreasury(tx.QueryRowContext(ctx, `SELECT authority,total_fees,total_distributed FROM treasury WHERE id=1`))
}

func scanTreasury(row *sql.Row) (domain.Treasury, error) {
	var t domain.Treasury
	var fees, distributed int64
	err := row.Scan(&t.Authority, &fees, &distributed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.TotalFees = uint64(fees)
	t.TotalDistributed = uint64(distributed)
	return t, nil
}

func (r Repo) UpdateTreasuryTx(ctx context.Context, tx *sql.Tx, t domain.Treasury) error {
	res, err := tx.ExecContext(ctx, `UPDATE treasury SET total_fees=?, total_distributed=? WHERE id=1`,
		int64(t.TotalFees), int64(t.TotalDistributed))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- reputation ---

func (r Repo) GetReputation(ctx context.Context, user string) (domain.ReputationState, error) {
	return scanReputation(r.DB.QueryRowContext(ctx, `SELECT user,reputation_score,total_earned,total_slashed,last_activity FROM reputation_states WHERE user=?`, user))
}

func (r Repo) GetReputationTx(ctx context.Context, tx *sql.Tx, user string) (domain.ReputationState, error) {
	return scanReputation(tx.QueryRowContext(ctx, `SELECT user,reputation_score,total_earned,total_slashed,last_activity FROM reputation_states WHERE user=?`, user))
}

func scanReputation(row *sql.Row) (domain.ReputationState, error) {
	var s domain.ReputationState
	var score, earned, slashed int64
	err := row.Scan(&s.User, &score, &earned, &slashed, &s.LastActivity)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.ReputationScore = uint64(score)
	s.TotalEarned = uint64(earned)
	s.TotalSlashed = uint64(slashed)
	return s, nil
}

func (r Repo) UpsertReputationTx(ctx context.Context, tx *sql.Tx, s domain.ReputationState) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reputation_states(user,reputation_score,total_earned,total_slashed,last_activity) VALUES (?,?,?,?,?)
ON CONFLICT(user) DO UPDATE SET reputation_score=excluded.reputation_score, total_earned=excluded.total_earned, total_slashed=excluded.total_slashed, last_activity=excluded.last_activity`,
		s.User, int64(s.ReputationScore), int64(s.TotalEarned), int64(s.TotalSlashed), s.LastActivity)
	return err
}

// --- skills ---

const skillCols = `skill_id,owner,category,name,description,COALESCE(metadata_uri,''),created_at,total_staked,endorsement_count,verified`

func (r Repo) InsertSkillTx(ctx context.Context, tx *sql.Tx, s domain.Skill) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO skills(skill_id,owner,category,name,description,metadata_uri,created_at,total_staked,endorsement_count,verified) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		int64(s.SkillID), s.Owner, s.Category, s.Name, s.Description, nullable(s.MetadataURI), s.CreatedAt,
		int64(s.TotalStaked), int64(s.EndorsementCount), s.Verified)
	return err
}

func (r Repo) GetSkill(ctx context.Context, skillID uint64) (domain.Skill, error) {
	return scanSkillRow(r.DB.QueryRowContext(ctx, `SELECT `+skillCols+` FROM skills WHERE skill_id=?`, int64(skillID)))
}

func (r Repo) GetSkillTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.Skill, error) {
	return scanSkillRow(tx.QueryRowContext(ctx, `SELECT `+skillCols+` FROM skills WHERE skill_id=?`, int64(skillID)))
}

func scanSkillRow(row *sql.Row) (domain.Skill, error) {
	var s domain.Skill
	var id, staked, count int64
	err := row.Scan(&id, &s.Owner, &s.Category, &s.Name, &s.Description, &s.MetadataURI, &s.CreatedAt, &staked, &count, &s.Verified)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.SkillID = uint64(id)
	s.TotalStaked = uint64(staked)
	s.EndorsementCount = uint64(count)
	return s, nil
}

func (r Repo) UpdateSkillMetricsTx(ctx context.Context, tx *sql.Tx, s domain.Skill) error {
	res, err := tx.ExecContext(ctx, `UPDATE skills SET total_staked=?, endorsement_count=?, verified=? WHERE skill_id=?`,
		int64(s.TotalStaked), int64(s.EndorsementCount), s.Verified, int64(s.SkillID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type SkillFilters struct {
	Owner    string
	Category string
	Verified *bool
	Limit    int
}

func (r Repo) ListSkills(ctx context.Context, f SkillFilters) ([]domain.Skill, error) {
	var clauses []string
	var args []any
	if f.Owner != "" {
		clauses = append(clauses, "owner=?")
		args = append(args, f.Owner)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Verified != nil {
		clauses = append(clauses, "verified=?")
		args = append(args, *f.Verified)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + skillCols + ` FROM skills ` + where + ` ORDER BY skill_id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.querySkills(ctx, query, args...)
}

// Leaderboard returns skills ordered by total stake.
func (r Repo) Leaderboard(ctx context.Context, limit int) ([]domain.Skill, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.querySkills(ctx, `SELECT `+skillCols+` FROM skills ORDER BY total_staked DESC, skill_id ASC LIMIT ?`, limit)
}

func (r Repo) querySkills(ctx context.Context, query string, args ...any) ([]domain.Skill, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Skill
	for rows.Next() {
		var s domain.Skill
		var id, staked, count int64
		if err := rows.Scan(&id, &s.Owner, &s.Category, &s.Name, &s.Description, &s.MetadataURI, &s.CreatedAt, &staked, &count, &s.Verified); err != nil {
			return nil, err
		}
		s.SkillID = uint64(id)
		s.TotalStaked = uint64(staked)
		s.EndorsementCount = uint64(count)
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- investment pools ---

func (r Repo) InsertPoolTx(ctx context.Context, tx *sql.Tx, p domain.InvestmentPool) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO investment_pools(skill_id,total_invested,monthly_revenue,total_revenue_earned,investor_count,skill_owner_earnings,current_apy,last_distribution) VALUES (?,?,?,?,?,?,?,?)`,
		int64(p.SkillID), int64(p.TotalInvested), int64(p.MonthlyRevenue), int64(p.TotalRevenueEarned),
		int64(p.InvestorCount), int64(p.SkillOwnerEarnings), int64(p.CurrentAPY), p.LastDistribution)
	return err
}

func (r Repo) GetPool(ctx context.Context, skillID uint64) (domain.InvestmentPool, error) {
	return scanPool(r.DB.QueryRowContext(ctx, `SELECT skill_id,total_invested,monthly_revenue,total_revenue_earned,investor_count,skill_owner_earnings,current_apy,last_distribution FROM investment_pools WHERE skill_id=?`, int64(skillID)))
}

func (r Repo) GetPoolTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.InvestmentPool, error) {
	return scanPool(tx.QueryRowContext(ctx, `SELECT skill_id,total_invested,monthly_revenue,total_revenue_earned,investor_count,skill_owner_earnings,current_apy,last_distribution FROM investment_pools WHERE skill_id=?`, int64(skillID)))
}

func scanPool(row *sql.Row) (domain.InvestmentPool, error) {
	var p domain.InvestmentPool
	var id, invested, monthly, earned, investors, owner, apy int64
	err := row.Scan(&id, &invested, &monthly, &earned, &investors, &owner, &apy, &p.LastDistribution)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.SkillID = uint64(id)
	p.TotalInvested = uint64(invested)
	p.MonthlyRevenue = uint64(monthly)
	p.TotalRevenueEarned = uint64(earned)
	p.InvestorCount = uint64(investors)
	p.SkillOwnerEarnings = uint64(owner)
	p.CurrentAPY = uint64(apy)
	return p, nil
}

func (r Repo) UpdatePoolTx(ctx context.Context, tx *sql.Tx, p domain.InvestmentPool) error {
	res, err := tx.ExecContext(ctx, `UPDATE investment_pools SET total_invested=?, monthly_revenue=?, total_revenue_earned=?, investor_count=?, skill_owner_earnings=?, current_apy=?, last_distribution=? WHERE skill_id=?`,
		int64(p.TotalInvested), int64(p.MonthlyRevenue), int64(p.TotalRevenueEarned), int64(p.InvestorCount),
		int64(p.SkillOwnerEarnings), int64(p.CurrentAPY), p.LastDistribution, int64(p.SkillID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- investments ---

func (r Repo) GetInvestment(ctx context.Context, investor string, skillID uint64) (domain.Investment, error) {
	return scanInvestment(r.DB.QueryRowContext(ctx, `SELECT investor,skill_id,amount,last_claim_time,total_claimed FROM investments WHERE investor=? AND skill_id=?`, investor, int64(skillID)))
}

func (r Repo) GetInvestmentTx(ctx context.Context, tx *sql.Tx, investor string, skillID uint64) (domain.Investment, error) {
	return scanInvestment(tx.QueryRowContext(ctx, `SELECT investor,skill_id,amount,last_claim_time,total_claimed FROM investments WHERE investor=? AND skill_id=?`, investor, int64(skillID)))
}

func scanInvestment(row *sql.Row) (domain.Investment, error) {
	var inv domain.Investment
	var id, amount, claimed int64
	err := row.Scan(&inv.Investor, &id, &amount, &inv.LastClaimTime, &claimed)
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	if err != nil {
		return inv, err
	}
	inv.SkillID = uint64(id)
	inv.Amount = uint64(amount)
	inv.TotalClaimed = uint64(claimed)
	return inv, nil
}

func (r Repo) UpsertInvestmentTx(ctx context.Context, tx *sql.Tx, inv domain.Investment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO investments(investor,skill_id,amount,last_claim_time,total_claimed) VALUES (?,?,?,?,?)
ON CONFLICT(investor,skill_id) DO UPDATE SET amount=excluded.amount, last_claim_time=excluded.last_claim_time, total_claimed=excluded.total_claimed`,
		inv.Investor, int64(inv.SkillID), int64(inv.Amount), inv.LastClaimTime, int64(inv.TotalClaimed))
	return err
}

// ListInvestmentsByInvestor returns an investor's open positions.
func (r Repo) ListInvestmentsByInvestor(ctx context.Context, investor string) ([]domain.Investment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT investor,skill_id,amount,last_claim_time,total_claimed FROM investments WHERE investor=? AND amount>0 ORDER BY skill_id ASC`, investor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Investment
	for rows.Next() {
		var inv domain.Investment
		var id, amount, claimed int64
		if err := rows.Scan(&inv.Investor, &id, &amount, &inv.LastClaimTime, &claimed); err != nil {
			return nil, err
		}
		inv.SkillID = uint64(id)
		inv.Amount = uint64(amount)
		inv.TotalClaimed = uint64(claimed)
		res = append(res, inv)
	}
	return res, rows.Err()
}

// --- revenue breakdowns ---

func (r Repo) InsertBreakdownTx(ctx context.Context, tx *sql.Tx, b domain.RevenueBreakdown) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO revenue_breakdowns(skill_id,job_completions,platform_fees,subscription_fees,verification_fees) VALUES (?,?,?,?,?)`,
		int64(b.SkillID), int64(b.JobCompletions), int64(b.PlatformFees), int64(b.SubscriptionFees), int64(b.VerificationFees))
	return err
}

func (r Repo) GetBreakdown(ctx context.Context, skillID uint64) (domain.RevenueBreakdown, error) {
	return scanBreakdown(r.DB.QueryRowContext(ctx, `SELECT skill_id,job_completions,platform_fees,subscription_fees,verification_fees FROM revenue_breakdowns WHERE skill_id=?`, int64(skillID)))
}

func (r Repo) GetBreakdownTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.RevenueBreakdown, error) {
	return scanBreakdown(tx.QueryRowContext(ctx, `SELECT skill_id,job_completions,platform_fees,subscription_fees,verification_fees FROM revenue_breakdowns WHERE skill_id=?`, int64(skillID)))
}

func scanBreakdown(row *sql.Row) (domain.RevenueBreakdown, error) {
	var b domain.RevenueBreakdown
	var id, jobs, platform, subs, verification int64
	err := row.Scan(&id, &jobs, &platform, &subs, &verification)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	b.SkillID = uint64(id)
	b.JobCompletions = uint64(jobs)
	b.PlatformFees = uint64(platform)
	b.SubscriptionFees = uint64(subs)
	b.VerificationFees = uint64(verification)
	return b, nil
}

func (r Repo) UpdateBreakdownTx(ctx context.Context, tx *sql.Tx, b domain.RevenueBreakdown) error {
	res, err := tx.ExecContext(ctx, `UPDATE revenue_breakdowns SET job_completions=?, platform_fees=?, subscription_fees=?, verification_fees=? WHERE skill_id=?`,
		int64(b.JobCompletions), int64(b.PlatformFees), int64(b.SubscriptionFees), int64(b.VerificationFees), int64(b.SkillID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- stake info ---

func (r Repo) InsertStakeInfoTx(ctx context.Context, tx *sql.Tx, s domain.StakeInfo) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stake_infos(skill_id,total_staked,endorsement_count,average_stake,challenged,challenge_end_time) VALUES (?,?,?,?,?,?)`,
		int64(s.SkillID), int64(s.TotalStaked), int64(s.EndorsementCount), int64(s.AverageStake), s.Challenged, s.ChallengeEndTime)
	return err
}

func (r Repo) GetStakeInfo(ctx context.Context, skillID uint64) (domain.StakeInfo, error) {
	return scanStakeInfo(r.DB.QueryRowContext(ctx, `SELECT skill_id,total_staked,endorsement_count,average_stake,challenged,challenge_end_time FROM stake_infos WHERE skill_id=?`, int64(skillID)))
}

func (r Repo) GetStakeInfoTx(ctx context.Context, tx *sql.Tx, skillID uint64) (domain.StakeInfo, error) {
	return scanStakeInfo(tx.QueryRowContext(ctx, `SELECT skill_id,total_staked,endorsement_count,average_stake,challenged,challenge_end_time FROM stake_infos WHERE skill_id=?`, int64(skillID)))
}

func scanStakeInfo(row *sql.Row) (domain.StakeInfo, error) {
	var s domain.StakeInfo
	var id, staked, count, average int64
	err := row.Scan(&id, &staked, &count, &average, &s.Challenged, &s.ChallengeEndTime)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.SkillID = uint64(id)
	s.TotalStaked = uint64(staked)
	s.EndorsementCount = uint64(count)
	s.AverageStake = uint64(average)
	return s, nil
}

func (r Repo) UpdateStakeInfoTx(ctx context.Context, tx *sql.Tx, s domain.StakeInfo) error {
	res, err := tx.ExecContext(ctx, `UPDATE stake_infos SET total_staked=?, endorsement_count=?, average_stake=?, challenged=?, challenge_end_time=? WHERE skill_id=?`,
		int64(s.TotalStaked), int64(s.EndorsementCount), int64(s.AverageStake), s.Challenged, s.ChallengeEndTime, int64(s.SkillID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- endorsements ---

func (r Repo) GetEndorsementTx(ctx context.Context, tx *sql.Tx, endorser string, skillID uint64) (domain.Endorsement, error) {
	var e domain.Endorsement
	var id, staked int64
	err := tx.QueryRowContext(ctx, `SELECT endorser,skill_id,staked_amount,ts,active,evidence FROM endorsements WHERE endorser=? AND skill_id=?`, endorser, int64(skillID)).
		Scan(&e.Endorser, &id, &staked, &e.Timestamp, &e.Active, &e.Evidence)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.SkillID = uint64(id)
	e.StakedAmount = uint64(staked)
	return e, nil
}

func (r Repo) UpsertEndorsementTx(ctx context.Context, tx *sql.Tx, e domain.Endorsement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO endorsements(endorser,skill_id,staked_amount,ts,active,evidence) VALUES (?,?,?,?,?,?)
ON CONFLICT(endorser,skill_id) DO UPDATE SET staked_amount=excluded.staked_amount, ts=excluded.ts, active=excluded.active, evidence=excluded.evidence`,
		e.Endorser, int64(e.SkillID), int64(e.StakedAmount), e.Timestamp, e.Active, e.Evidence)
	return err
}

// ListActiveEndorsementsTx returns the endorsements still backing a skill.
func (r Repo) ListActiveEndorsementsTx(ctx context.Context, tx *sql.Tx, skillID uint64) ([]domain.Endorsement, error) {
	rows, err := tx.QueryContext(ctx, `SELECT endorser,skill_id,staked_amount,ts,active,evidence FROM endorsements WHERE skill_id=? AND active=1 ORDER BY ts ASC, endorser ASC`, int64(skillID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEndorsements(rows)
}

func (r Repo) ListEndorsementsBySkill(ctx context.Context, skillID uint64) ([]domain.Endorsement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT endorser,skill_id,staked_amount,ts,active,evidence FROM endorsements WHERE skill_id=? ORDER BY ts ASC, endorser ASC`, int64(skillID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEndorsements(rows)
}

func collectEndorsements(rows *sql.Rows) ([]domain.Endorsement, error) {
	var res []domain.Endorsement
	for rows.Next() {
		var e domain.Endorsement
		var id, staked int64
		if err := rows.Scan(&e.Endorser, &id, &staked, &e.Timestamp, &e.Active, &e.Evidence); err != nil {
			return nil, err
		}
		e.SkillID = uint64(id)
		e.StakedAmount = uint64(staked)
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) DeactivateEndorsementsTx(ctx context.Context, tx *sql.Tx, skillID uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE endorsements SET active=0 WHERE skill_id=? AND active=1`, int64(skillID))
	return err
}

// --- staker rewards ---

func (r Repo) GetStakerRewards(ctx context.Context, staker string) (domain.StakerRewards, error) {
	return scanStakerRewards(r.DB.QueryRowContext(ctx, `SELECT staker,total_rewards,last_claim_time FROM staker_rewards WHERE staker=?`, staker))
}

func (r Repo) GetStakerRewardsTx(ctx context.Context, tx *sql.Tx, staker string) (domain.StakerRewards, error) {
	return scanStakerRewards(tx.QueryRowContext(ctx, `SELECT staker,total_rewards,last_claim_time FROM staker_rewards WHERE staker=?`, staker))
}

func scanStakerRewards(row *sql.Row) (domain.StakerRewards, error) {
	var s domain.StakerRewards
	var rewards int64
	err := row.Scan(&s.Staker, &rewards, &s.LastClaimTime)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.TotalRewards = uint64(rewards)
	return s, nil
}

func (r Repo) UpsertStakerRewardsTx(ctx context.Context, tx *sql.Tx, s domain.StakerRewards) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO staker_rewards(staker,total_rewards,last_claim_time) VALUES (?,?,?)
ON CONFLICT(staker) DO UPDATE SET total_rewards=excluded.total_rewards, last_claim_time=excluded.last_claim_time`,
		s.Staker, int64(s.TotalRewards), s.LastClaimTime)
	return err
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType string, skillID uint64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if skillID > 0 {
		clauses = append(clauses, "skill_id=?")
		args = append(args, int64(skillID))
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(skill_id,0),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// LatestEventID returns the newest event id, or 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

// EventsAfter returns events past the cursor in ascending id order.
func (r Repo) EventsAfter(ctx context.Context, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,COALESCE(skill_id,0),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var skillID int64
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &skillID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.SkillID = uint64(skillID)
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
