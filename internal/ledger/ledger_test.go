package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"skillpass/internal/db"
	"skillpass/internal/ledger"
	"skillpass/internal/migrate"
)

func newTestLedger(t *testing.T) (ledger.Ledger, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ledger.Ledger{DB: conn}, conn
}

func inTx(t *testing.T, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := conn.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return nil
}

func TestMintAndTransferConserveSupply(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()

	err := inTx(t, conn, func(tx *sql.Tx) error {
		return l.Mint(ctx, tx, "alice", 1000)
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	err = inTx(t, conn, func(tx *sql.Tx) error {
		return l.Transfer(ctx, tx, "alice", "bob", 300)
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	alice, _ := l.BalanceOf(ctx, "alice")
	bob, _ := l.BalanceOf(ctx, "bob")
	if alice != 700 || bob != 300 {
		t.Fatalf("balances alice=%d bob=%d, want 700/300", alice, bob)
	}
	supply, err := l.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 1000 {
		t.Fatalf("supply %d, want 1000", supply)
	}
}

func TestTransferOverdrawFailsCleanly(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()

	err := inTx(t, conn, func(tx *sql.Tx) error {
		return l.Mint(ctx, tx, "alice", 100)
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	err = inTx(t, conn, func(tx *sql.Tx) error {
		return l.Transfer(ctx, tx, "alice", "bob", 101)
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	alice, _ := l.BalanceOf(ctx, "alice")
	bob, _ := l.BalanceOf(ctx, "bob")
	if alice != 100 || bob != 0 {
		t.Fatalf("balances changed on failed transfer: alice=%d bob=%d", alice, bob)
	}
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	l, _ := newTestLedger(t)
	bal, err := l.BalanceOf(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("balance %d, want 0", bal)
	}
}
