package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TreasuryAccount custodies every staked, invested or slashed token.
const TreasuryAccount = "treasury"

// ErrInsufficientBalance is returned when a transfer would overdraw an account.
var ErrInsufficientBalance = errors.New("insufficient ledger balance")

// Ledger is the fungible-value collaborator. All mutating calls are
// tx-scoped so token movement commits atomically with the calling operation.
type Ledger struct {
	DB *sql.DB
}

func (l Ledger) BalanceOf(ctx context.Context, account string) (uint64, error) {
	return balance(ctx, l.DB.QueryRowContext, account)
}

func (l Ledger) BalanceOfTx(ctx context.Context, tx *sql.Tx, account string) (uint64, error) {
	return balance(ctx, tx.QueryRowContext, account)
}

type rowQuerier func(ctx context.Context, query string, args ...any) *sql.Row

func balance(ctx context.Context, query rowQuerier, account string) (uint64, error) {
	var bal int64
	err := query(ctx, `SELECT balance FROM ledger_accounts WHERE account=?`, account).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(bal), nil
}

// TotalSupply returns the sum of all account balances.
func (l Ledger) TotalSupply(ctx context.Context) (uint64, error) {
	return supply(ctx, l.DB.QueryRowContext)
}

func (l Ledger) TotalSupplyTx(ctx context.Context, tx *sql.Tx) (uint64, error) {
	return supply(ctx, tx.QueryRowContext)
}

func supply(ctx context.Context, query rowQuerier) (uint64, error) {
	var total int64
	if err := query(ctx, `SELECT COALESCE(SUM(balance),0) FROM ledger_accounts`).Scan(&total); err != nil {
		return 0, err
	}
	return uint64(total), nil
}

// Transfer moves amount from one account to another inside the caller's
// transaction. The debit fails with ErrInsufficientBalance before any row
// is touched.
func (l Ledger) Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount uint64) error {
	if from == to {
		return fmt.Errorf("transfer from %s to itself", from)
	}
	bal, err := balance(ctx, tx.QueryRowContext, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientBalance
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_accounts SET balance=balance-? WHERE account=?`, int64(amount), from); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	return credit(ctx, tx, to, amount)
}

// Mint creates amount new tokens on the target account. Supply-cap policy
// belongs to the caller; the ledger only moves value.
func (l Ledger) Mint(ctx context.Context, tx *sql.Tx, to string, amount uint64) error {
	return credit(ctx, tx, to, amount)
}

func credit(ctx context.Context, tx *sql.Tx, account string, amount uint64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_accounts(account, balance) VALUES (?,?)
ON CONFLICT(account) DO UPDATE SET balance=balance+excluded.balance`, account, int64(amount))
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}
