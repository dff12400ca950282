package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"skillpass/internal/config"
	"skillpass/internal/domain"
	"skillpass/internal/events"
	"skillpass/internal/ledger"
	"skillpass/internal/repo"
)

// Engine executes every economy operation as one all-or-nothing sqlite
// transaction: validations, record mutations, ledger movement and the event
// row commit together or not at all.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Ledger ledger.Ledger
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Ledger: ledger.Ledger{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

// requireAuthorityTx loads program state and checks the caller against the
// recorded platform authority.
func (e Engine) requireAuthorityTx(ctx context.Context, tx *sql.Tx, actorID string) (domain.ProgramState, error) {
	state, err := e.Repo.GetProgramStateTx(ctx, tx)
	if errors.Is(err, repo.ErrNotFound) {
		return state, ErrNotInitialized
	}
	if err != nil {
		return state, err
	}
	if actorID != state.Authority {
		return state, ErrUnauthorized
	}
	return state, nil
}

// Initialize creates the program state and treasury singletons.
func (e Engine) Initialize(ctx context.Context, authority string) (domain.ProgramState, error) {
	if e.Config == nil {
		return domain.ProgramState{}, errors.New("config not loaded")
	}
	if authority == "" {
		return domain.ProgramState{}, errors.New("authority is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProgramState{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProgramStateTx(ctx, tx); err == nil {
		return domain.ProgramState{}, ErrAlreadyInitialized
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.ProgramState{}, err
	}
	state := domain.ProgramState{
		Authority: authority,
		CreatedAt: e.now().Unix(),
	}
	if err := e.Repo.InsertProgramStateTx(ctx, tx, state); err != nil {
		return domain.ProgramState{}, err
	}
	if err := e.Repo.InsertTreasuryTx(ctx, tx, domain.Treasury{Authority: authority}); err != nil {
		return domain.ProgramState{}, err
	}
	if err := e.writer().Append(ctx, tx, "program.initialized", 0, authority, events.EventPayload{
		"authority": authority,
	}); err != nil {
		return domain.ProgramState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProgramState{}, err
	}
	return state, nil
}

// MintReputation credits new reputation tokens to a user, capped by max supply.
func (e Engine) MintReputation(ctx context.Context, actorID, user string, amount uint64, reason string) (domain.ReputationState, error) {
	if e.Config == nil {
		return domain.ReputationState{}, errors.New("config not loaded")
	}
	if amount == 0 {
		return domain.ReputationState{}, ErrInvalidAmount
	}
	if user == "" {
		return domain.ReputationState{}, errors.New("user is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReputationState{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireAuthorityTx(ctx, tx, actorID); err != nil {
		return domain.ReputationState{}, err
	}
	supply, err := e.Ledger.TotalSupplyTx(ctx, tx)
	if err != nil {
		return domain.ReputationState{}, err
	}
	next, err := addU64(supply, amount)
	if err != nil {
		return domain.ReputationState{}, err
	}
	if next > e.Config.Economy.MaxSupply {
		return domain.ReputationState{}, ErrMaxSupplyExceeded
	}
	if err := e.Ledger.Mint(ctx, tx, user, amount); err != nil {
		return domain.ReputationState{}, err
	}
	rep, err := e.reputationOrZeroTx(ctx, tx, user)
	if err != nil {
		return domain.ReputationState{}, err
	}
	if rep.ReputationScore, err = addU64(rep.ReputationScore, amount); err != nil {
		return domain.ReputationState{}, err
	}
	if rep.TotalEarned, err = addU64(rep.TotalEarned, amount); err != nil {
		return domain.ReputationState{}, err
	}
	rep.LastActivity = e.now().Unix()
	if err := e.Repo.UpsertReputationTx(ctx, tx, rep); err != nil {
		return domain.ReputationState{}, err
	}
	if err := e.writer().Append(ctx, tx, "reputation.minted", 0, actorID, events.EventPayload{
		"user":   user,
		"amount": amount,
		"reason": reason,
	}); err != nil {
		return domain.ReputationState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ReputationState{}, err
	}
	return rep, nil
}

// SlashReputation moves tokens from the user to the treasury and lowers the
// score, floored at zero. The full amount is always taken from the balance.
func (e Engine) SlashReputation(ctx context.Context, actorID, user string, amount uint64, reason string) (domain.ReputationState, error) {
	if e.Config == nil {
		return domain.ReputationState{}, errors.New("config not loaded")
	}
	if amount == 0 {
		return domain.ReputationState{}, ErrInvalidAmount
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReputationState{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireAuthorityTx(ctx, tx, actorID); err != nil {
		return domain.ReputationState{}, err
	}
	bal, err := e.Ledger.BalanceOfTx(ctx, tx, user)
	if err != nil {
		return domain.ReputationState{}, err
	}
	if bal < amount {
		return domain.ReputationState{}, ErrInsufficientFunds
	}
	if err := e.Ledger.Transfer(ctx, tx, user, ledger.TreasuryAccount, amount); err != nil {
		return domain.ReputationState{}, err
	}
	rep, err := e.reputationOrZeroTx(ctx, tx, user)
	if err != nil {
		return domain.ReputationState{}, err
	}
	rep.ReputationScore = subFloor(rep.ReputationScore, amount)
	if rep.TotalSlashed, err = addU64(rep.TotalSlashed, amount); err != nil {
		return domain.ReputationState{}, err
	}
	rep.LastActivity = e.now().Unix()
	if err := e.Repo.UpsertReputationTx(ctx, tx, rep); err != nil {
		return domain.ReputationState{}, err
	}
	if err := e.writer().Append(ctx, tx, "reputation.slashed", 0, actorID, events.EventPayload{
		"user":   user,
		"amount": amount,
		"reason": reason,
	}); err != nil {
		return domain.ReputationState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ReputationState{}, err
	}
	return rep, nil
}

func (e Engine) reputationOrZeroTx(ctx context.Context, tx *sql.Tx, user string) (domain.ReputationState, error) {
	rep, err := e.Repo.GetReputationTx(ctx, tx, user)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ReputationState{User: user}, nil
	}
	return rep, err
}
