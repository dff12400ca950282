package engine_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"skillpass/internal/config"
	"skillpass/internal/db"
	"skillpass/internal/domain"
	"skillpass/internal/engine"
	"skillpass/internal/migrate"
)

const authority = "authority"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	clock  *time.Time
}

func (env *testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	ctx := context.Background()
	if _, err := eng.Initialize(ctx, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx, clock: &clock}
}

func mint(t *testing.T, env *testEnv, user string, amount uint64) {
	t.Helper()
	if _, err := env.Engine.MintReputation(env.Ctx, authority, user, amount, "test"); err != nil {
		t.Fatalf("mint %d to %s: %v", amount, user, err)
	}
}

func createSkill(t *testing.T, env *testEnv, owner string) domain.Skill {
	t.Helper()
	skill, err := env.Engine.CreateSkill(env.Ctx, engine.SkillCreateOptions{
		Owner:       owner,
		Category:    "engineering",
		Name:        "Rust Development",
		Description: "Systems programming",
		MetadataURI: "ipfs://QmSkillMeta",
	})
	if err != nil {
		t.Fatalf("create skill: %v", err)
	}
	return skill
}

func TestInitializeOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Initialize(env.Ctx, "someone-else")
	if !errors.Is(err, engine.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestMintRequiresAuthority(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.MintReputation(env.Ctx, "mallory", "bob", 100, "")
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMintRespectsMaxSupply(t *testing.T) {
	env := newTestEnv(t)
	max := env.Engine.Config.Economy.MaxSupply
	mint(t, env, "bob", max)
	_, err := env.Engine.MintReputation(env.Ctx, authority, "carol", 1, "")
	if !errors.Is(err, engine.ErrMaxSupplyExceeded) {
		t.Fatalf("expected ErrMaxSupplyExceeded, got %v", err)
	}
}

func TestSlashRequiresBalance(t *testing.T) {
	env := newTestEnv(t)
	mint(t, env, "bob", 100)
	_, err := env.Engine.SlashReputation(env.Ctx, authority, "bob", 101, "")
	if !errors.Is(err, engine.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	rep, err := env.Engine.SlashReputation(env.Ctx, authority, "bob", 100, "bad work")
	if err != nil {
		t.Fatalf("slash: %v", err)
	}
	if rep.ReputationScore != 0 || rep.TotalSlashed != 100 {
		t.Fatalf("unexpected reputation after slash: %+v", rep)
	}
}

// A slash can exceed the score when the balance includes yield that never
// counted toward reputation; the score floors at zero instead of wrapping.
func TestSlashFloorsReputationScore(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 50_000)
	mint(t, env, "carol", 50_000)
	if _, err := env.Engine.Invest(env.Ctx, "bob", 1, 50_000); err != nil {
		t.Fatalf("invest bob: %v", err)
	}
	if _, err := env.Engine.Invest(env.Ctx, "carol", 1, 50_000); err != nil {
		t.Fatalf("invest carol: %v", err)
	}
	if _, err := env.Engine.RecordJobCompletion(env.Ctx, authority, 1, 10_000_000, "big contract"); err != nil {
		t.Fatalf("record job: %v", err)
	}
	env.advance(31 * 24 * time.Hour)
	claim, err := env.Engine.ClaimYield(env.Ctx, "bob", 1)
	if err != nil {
		t.Fatalf("claim yield: %v", err)
	}
	// bob now holds 350,000 in yield against a 50,000 score
	if claim.YieldAmount != 350_000 {
		t.Fatalf("expected 350000 yield, got %d", claim.YieldAmount)
	}
	rep, err := env.Engine.SlashReputation(env.Ctx, authority, "bob", 100_000, "fraud")
	if err != nil {
		t.Fatalf("slash: %v", err)
	}
	if rep.ReputationScore != 0 {
		t.Fatalf("expected score floored at 0, got %d", rep.ReputationScore)
	}
	if rep.TotalSlashed != 100_000 {
		t.Fatalf("expected total slashed 100000, got %d", rep.TotalSlashed)
	}
}

func TestInvestBelowMinimumFailsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 100_000)
	_, err := env.Engine.Invest(env.Ctx, "bob", 1, env.Engine.Config.Economy.MinInvestment-1)
	if !errors.Is(err, engine.ErrBelowMinimumInvestment) {
		t.Fatalf("expected ErrBelowMinimumInvestment, got %v", err)
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.Pool.TotalInvested != 0 || detail.Pool.InvestorCount != 0 {
		t.Fatalf("pool mutated by failed invest: %+v", detail.Pool)
	}
	bal, err := env.Engine.Ledger.BalanceOf(env.Ctx, "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 100_000 {
		t.Fatalf("balance mutated by failed invest: %d", bal)
	}
}

func TestInvestAccumulatesPool(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 200_000)
	mint(t, env, "carol", 300_000)
	amounts := []struct {
		investor string
		amount   uint64
	}{
		{"bob", 50_000},
		{"carol", 300_000},
		{"bob", 150_000},
	}
	var sum uint64
	for _, a := range amounts {
		if _, err := env.Engine.Invest(env.Ctx, a.investor, 1, a.amount); err != nil {
			t.Fatalf("invest %s %d: %v", a.investor, a.amount, err)
		}
		sum += a.amount
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.Pool.TotalInvested != sum {
		t.Fatalf("pool total %d, want sum of invests %d", detail.Pool.TotalInvested, sum)
	}
	if detail.Pool.InvestorCount != 2 {
		t.Fatalf("investor count %d, want 2", detail.Pool.InvestorCount)
	}
	ov, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.State.TotalInvestments != 3 {
		t.Fatalf("total investments %d, want 3", ov.State.TotalInvestments)
	}
}

// Top-ups deliberately keep the original claim clock so investors cannot
// game the yield timer by re-investing just before a period boundary.
func TestInvestTopUpKeepsClaimClock(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 200_000)
	first, err := env.Engine.Invest(env.Ctx, "bob", 1, 50_000)
	if err != nil {
		t.Fatalf("first invest: %v", err)
	}
	env.advance(10 * 24 * time.Hour)
	topUp, err := env.Engine.Invest(env.Ctx, "bob", 1, 50_000)
	if err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if topUp.LastClaimTime != first.LastClaimTime {
		t.Fatalf("top-up reset claim clock: %d != %d", topUp.LastClaimTime, first.LastClaimTime)
	}
	if topUp.Amount != 100_000 {
		t.Fatalf("expected combined amount 100000, got %d", topUp.Amount)
	}
}

func TestCannotInvestOrEndorseOwnSkill(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "alice", 100_000)
	if _, err := env.Engine.Invest(env.Ctx, "alice", 1, 50_000); !errors.Is(err, engine.ErrCannotInvestInOwnSkill) {
		t.Fatalf("expected ErrCannotInvestInOwnSkill, got %v", err)
	}
	if _, err := env.Engine.Endorse(env.Ctx, "alice", 1, 10_000, "self praise"); !errors.Is(err, engine.ErrCannotEndorseOwnSkill) {
		t.Fatalf("expected ErrCannotEndorseOwnSkill, got %v", err)
	}
}

func TestJobRevenueSplit(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	split, err := env.Engine.RecordJobCompletion(env.Ctx, authority, 1, 1_000_000, "api integration")
	if err != nil {
		t.Fatalf("record job: %v", err)
	}
	if split.PlatformFee != 100_000 {
		t.Fatalf("platform fee %d, want 100000", split.PlatformFee)
	}
	if split.InvestorShare != 70_000 || split.OwnerShare != 20_000 || split.PlatformShare != 10_000 {
		t.Fatalf("unexpected split: %+v", split)
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.Pool.MonthlyRevenue != 70_000 || detail.Pool.SkillOwnerEarnings != 20_000 {
		t.Fatalf("pool not credited: %+v", detail.Pool)
	}
	if detail.Breakdown.JobCompletions != 70_000 {
		t.Fatalf("breakdown job completions %d, want 70000", detail.Breakdown.JobCompletions)
	}
	ov, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Treasury.TotalFees != 10_000 {
		t.Fatalf("treasury fees %d, want 10000", ov.Treasury.TotalFees)
	}
	if ov.State.TotalRevenue != 1_000_000 {
		t.Fatalf("total revenue %d, want 1000000", ov.State.TotalRevenue)
	}
}

func TestJobRevenueRequiresAuthority(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	_, err := env.Engine.RecordJobCompletion(env.Ctx, "mallory", 1, 1_000_000, "contract")
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestJobRevenueOverflowAborts(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	_, err := env.Engine.RecordJobCompletion(env.Ctx, authority, 1, math.MaxUint64, "contract")
	if !errors.Is(err, engine.ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	ov, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.State.TotalRevenue != 0 || ov.Treasury.TotalFees != 0 {
		t.Fatalf("state mutated on overflow: revenue=%d fees=%d", ov.State.TotalRevenue, ov.Treasury.TotalFees)
	}
	pool, err := env.Engine.Repo.GetPool(env.Ctx, 1)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.MonthlyRevenue != 0 || pool.TotalRevenueEarned != 0 {
		t.Fatalf("pool mutated on overflow: %+v", pool)
	}
}

func TestFlatRevenueBooked(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	b, err := env.Engine.RecordSubscriptionRevenue(env.Ctx, authority, 1, 5_000)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if b.SubscriptionFees != 5_000 {
		t.Fatalf("subscription fees %d, want 5000", b.SubscriptionFees)
	}
	b, err = env.Engine.RecordVerificationFee(env.Ctx, authority, 1, 2_500)
	if err != nil {
		t.Fatalf("verification: %v", err)
	}
	if b.VerificationFees != 2_500 {
		t.Fatalf("verification fees %d, want 2500", b.VerificationFees)
	}
	ov, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Treasury.TotalFees != 7_500 || ov.State.TotalRevenue != 7_500 {
		t.Fatalf("treasury/state not credited: fees=%d revenue=%d", ov.Treasury.TotalFees, ov.State.TotalRevenue)
	}
}

// A 100,000 position in a 1,000,000 pool with 100,000 monthly revenue pays
// exactly 10,000 after one whole period.
func TestYieldProportionalShare(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 100_000)
	mint(t, env, "carol", 900_000)
	if _, err := env.Engine.Invest(env.Ctx, "bob", 1, 100_000); err != nil {
		t.Fatalf("invest bob: %v", err)
	}
	if _, err := env.Engine.Invest(env.Ctx, "carol", 1, 900_000); err != nil {
		t.Fatalf("invest carol: %v", err)
	}
	// 1,428,586 gross -> 142,858 fee -> 100,000 investor share.
	if _, err := env.Engine.RecordJobCompletion(env.Ctx, authority, 1, 1_428_586, "migration"); err != nil {
		t.Fatalf("record job: %v", err)
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.Pool.MonthlyRevenue != 100_000 {
		t.Fatalf("monthly revenue %d, want 100000", detail.Pool.MonthlyRevenue)
	}

	env.advance(30 * 24 * time.Hour)
	claim, err := env.Engine.ClaimYield(env.Ctx, "bob", 1)
	if err != nil {
		t.Fatalf("claim yield: %v", err)
	}
	if claim.YieldAmount != 10_000 {
		t.Fatalf("yield %d, want exactly 10000", claim.YieldAmount)
	}
	if claim.MonthsClaimed != 1 {
		t.Fatalf("months claimed %d, want 1", claim.MonthsClaimed)
	}
	bal, err := env.Engine.Ledger.BalanceOf(env.Ctx, "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 10_000 {
		t.Fatalf("bob balance %d, want 10000", bal)
	}
	// claiming again inside the same window accrues nothing
	_, err = env.Engine.ClaimYield(env.Ctx, "bob", 1)
	if !errors.Is(err, engine.ErrNoYieldToClaim) {
		t.Fatalf("expected ErrNoYieldToClaim on double claim, got %v", err)
	}
}

func TestYieldMultipleWholeMonths(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 100_000)
	mint(t, env, "carol", 900_000)
	if _, err := env.Engine.Invest(env.Ctx, "bob", 1, 100_000); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Invest(env.Ctx, "carol", 1, 900_000); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecordJobCompletion(env.Ctx, authority, 1, 1_428_586, "retainer"); err != nil {
		t.Fatal(err)
	}
	// 75 days is two whole periods; the partial third does not pay
	env.advance(75 * 24 * time.Hour)
	claim, err := env.Engine.ClaimYield(env.Ctx, "bob", 1)
	if err != nil {
		t.Fatalf("claim yield: %v", err)
	}
	if claim.MonthsClaimed != 2 || claim.YieldAmount != 20_000 {
		t.Fatalf("expected 2 months / 20000, got %d / %d", claim.MonthsClaimed, claim.YieldAmount)
	}
}

func TestClaimYieldWithoutInvestment(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	_, err := env.Engine.ClaimYield(env.Ctx, "bob", 1)
	if !errors.Is(err, engine.ErrNoInvestmentFound) {
		t.Fatalf("expected ErrNoInvestmentFound, got %v", err)
	}
}

func TestEndorseAutoVerifies(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	endorsers := []string{"bob", "carol", "dave", "erin", "frank"}
	for i, endorser := range endorsers {
		mint(t, env, endorser, 10_000)
		if _, err := env.Engine.Endorse(env.Ctx, endorser, 1, 10_000, "worked with alice"); err != nil {
			t.Fatalf("endorse %s: %v", endorser, err)
		}
		detail, err := env.Engine.SkillDetail(env.Ctx, 1)
		if err != nil {
			t.Fatalf("skill detail: %v", err)
		}
		wantVerified := i == len(endorsers)-1
		if detail.Skill.Verified != wantVerified {
			t.Fatalf("after %d endorsements verified=%v, want %v", i+1, detail.Skill.Verified, wantVerified)
		}
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.StakeInfo.TotalStaked != 50_000 || detail.StakeInfo.EndorsementCount != 5 {
		t.Fatalf("unexpected stake info: %+v", detail.StakeInfo)
	}
	if detail.StakeInfo.AverageStake != 10_000 {
		t.Fatalf("average stake %d, want 10000", detail.StakeInfo.AverageStake)
	}
}

func TestEndorseTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 50_000)
	if _, err := env.Engine.Endorse(env.Ctx, "bob", 1, 10_000, "solid work"); err != nil {
		t.Fatalf("endorse: %v", err)
	}
	_, err := env.Engine.Endorse(env.Ctx, "bob", 1, 10_000, "again")
	if !errors.Is(err, engine.ErrAlreadyEndorsed) {
		t.Fatalf("expected ErrAlreadyEndorsed, got %v", err)
	}
}

func TestEndorseBelowMinimumStake(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 50_000)
	_, err := env.Engine.Endorse(env.Ctx, "bob", 1, env.Engine.Config.Economy.MinStake-1, "cheap")
	if !errors.Is(err, engine.ErrBelowMinimumStake) {
		t.Fatalf("expected ErrBelowMinimumStake, got %v", err)
	}
}

func TestChallengeGuards(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "challenger", 2_000)

	// nothing staked yet
	_, err := env.Engine.Challenge(env.Ctx, "challenger", 1)
	if !errors.Is(err, engine.ErrNothingToChallenge) {
		t.Fatalf("expected ErrNothingToChallenge, got %v", err)
	}

	mint(t, env, "bob", 10_000)
	if _, err := env.Engine.Endorse(env.Ctx, "bob", 1, 10_000, "evidence"); err != nil {
		t.Fatalf("endorse: %v", err)
	}

	// challenger below the reputation threshold
	_, err = env.Engine.Challenge(env.Ctx, "nobody", 1)
	if !errors.Is(err, engine.ErrInsufficientReputationToChallenge) {
		t.Fatalf("expected ErrInsufficientReputationToChallenge, got %v", err)
	}

	if _, err := env.Engine.Challenge(env.Ctx, "challenger", 1); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	_, err = env.Engine.Challenge(env.Ctx, "challenger", 1)
	if !errors.Is(err, engine.ErrAlreadyChallenged) {
		t.Fatalf("expected ErrAlreadyChallenged, got %v", err)
	}
}

func TestResolveChallengeValid(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "challenger", 2_000)
	mint(t, env, "bob", 30_000)
	mint(t, env, "carol", 10_000)
	if _, err := env.Engine.Endorse(env.Ctx, "bob", 1, 30_000, "evidence"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Endorse(env.Ctx, "carol", 1, 10_000, "evidence"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Challenge(env.Ctx, "challenger", 1); err != nil {
		t.Fatal(err)
	}

	// the window has not closed yet
	_, err := env.Engine.ResolveChallenge(env.Ctx, authority, 1, true)
	if !errors.Is(err, engine.ErrChallengePeriodNotEnded) {
		t.Fatalf("expected ErrChallengePeriodNotEnded, got %v", err)
	}

	env.advance(8 * 24 * time.Hour)
	res, err := env.Engine.ResolveChallenge(env.Ctx, authority, 1, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.RewardPool != 4_000 {
		t.Fatalf("reward pool %d, want 10%% of 40000", res.RewardPool)
	}
	if res.Endorsers != 2 {
		t.Fatalf("endorsers %d, want 2", res.Endorsers)
	}

	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatalf("skill detail: %v", err)
	}
	if detail.StakeInfo.TotalStaked != 0 || detail.StakeInfo.EndorsementCount != 0 || detail.StakeInfo.Challenged {
		t.Fatalf("stake info not reset: %+v", detail.StakeInfo)
	}
	for _, end := range detail.Endorsements {
		if end.Active {
			t.Fatalf("endorsement still active after resolution: %+v", end)
		}
	}

	// rewards are proportional to each endorser's stake
	bobRewards, err := env.Engine.ClaimStakingRewards(env.Ctx, "bob")
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	_ = bobRewards
	bal, err := env.Engine.Ledger.BalanceOf(env.Ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 3_000 {
		t.Fatalf("bob reward payout %d, want 3000", bal)
	}
	if _, err := env.Engine.ClaimStakingRewards(env.Ctx, "carol"); err != nil {
		t.Fatalf("carol claim: %v", err)
	}
	carolBal, err := env.Engine.Ledger.BalanceOf(env.Ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if carolBal != 1_000 {
		t.Fatalf("carol reward payout %d, want 1000", carolBal)
	}
}

func TestResolveChallengeInvalidSlashes(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "challenger", 2_000)
	mint(t, env, "bob", 40_000)
	if _, err := env.Engine.Endorse(env.Ctx, "bob", 1, 40_000, "evidence"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Challenge(env.Ctx, "challenger", 1); err != nil {
		t.Fatal(err)
	}
	env.advance(8 * 24 * time.Hour)

	before, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.ResolveChallenge(env.Ctx, authority, 1, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.SlashedAmount != 20_000 {
		t.Fatalf("slashed %d, want 50%% of 40000", res.SlashedAmount)
	}
	after, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if after.Treasury.TotalFees != before.Treasury.TotalFees+20_000 {
		t.Fatalf("treasury fees %d, want +20000 over %d", after.Treasury.TotalFees, before.Treasury.TotalFees)
	}
	detail, err := env.Engine.SkillDetail(env.Ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if detail.StakeInfo.TotalStaked != 0 || detail.StakeInfo.Challenged {
		t.Fatalf("stake info not reset: %+v", detail.StakeInfo)
	}

	// no rewards accrue on the invalid branch
	_, err = env.Engine.ClaimStakingRewards(env.Ctx, "bob")
	if !errors.Is(err, engine.ErrNoRewardsToClaim) {
		t.Fatalf("expected ErrNoRewardsToClaim, got %v", err)
	}
}

func TestResolveUnchallengedSkill(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	_, err := env.Engine.ResolveChallenge(env.Ctx, authority, 1, true)
	if !errors.Is(err, engine.ErrSkillNotChallenged) {
		t.Fatalf("expected ErrSkillNotChallenged, got %v", err)
	}
}

func TestClaimStakingRewardsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "challenger", 2_000)
	mint(t, env, "bob", 10_000)
	if _, err := env.Engine.Endorse(env.Ctx, "bob", 1, 10_000, "evidence"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Challenge(env.Ctx, "challenger", 1); err != nil {
		t.Fatal(err)
	}
	env.advance(8 * 24 * time.Hour)
	if _, err := env.Engine.ResolveChallenge(env.Ctx, authority, 1, true); err != nil {
		t.Fatal(err)
	}

	first, err := env.Engine.ClaimStakingRewards(env.Ctx, "bob")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first.TotalRewards != 0 {
		t.Fatalf("rewards not zeroed after claim: %+v", first)
	}
	balAfterFirst, err := env.Engine.Ledger.BalanceOf(env.Ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.ClaimStakingRewards(env.Ctx, "bob")
	if !errors.Is(err, engine.ErrNoRewardsToClaim) {
		t.Fatalf("expected ErrNoRewardsToClaim on second claim, got %v", err)
	}
	balAfterSecond, err := env.Engine.Ledger.BalanceOf(env.Ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if balAfterFirst != balAfterSecond {
		t.Fatalf("second claim moved tokens: %d != %d", balAfterFirst, balAfterSecond)
	}
}

func TestSequentialSkillIDs(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 3; i++ {
		s := createSkill(t, env, "alice")
		if s.SkillID != uint64(i) {
			t.Fatalf("skill id %d, want %d", s.SkillID, i)
		}
	}
	ov, err := env.Engine.Overview(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ov.State.TotalSkills != 3 {
		t.Fatalf("total skills %d, want 3", ov.State.TotalSkills)
	}
}

func TestUpdateSkillMetricsAuthorityOnly(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	_, err := env.Engine.UpdateSkillMetrics(env.Ctx, "alice", 1, 5_000, 2)
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	s, err := env.Engine.UpdateSkillMetrics(env.Ctx, authority, 1, 5_000, 3)
	if err != nil {
		t.Fatalf("update metrics: %v", err)
	}
	if s.TotalStaked != 5_000 || s.EndorsementCount != 3 {
		t.Fatalf("metrics not applied: %+v", s)
	}
	if s.Verified {
		t.Fatalf("5000 staked over 3 endorsers should not verify")
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	createSkill(t, env, "alice")
	mint(t, env, "bob", 100_000)
	if _, err := env.Engine.Invest(env.Ctx, "bob", 1, 50_000); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, "", 0)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range events {
		types[evt.Type] = true
	}
	for _, want := range []string{"program.initialized", "skill.created", "reputation.minted", "investment.made"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
	events, err = env.Engine.Repo.LatestEvents(env.Ctx, 50, "investment.made", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("filtered events %d, want 1", len(events))
	}
}
