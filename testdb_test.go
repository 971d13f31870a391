package escrow_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-escrow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = escrow.Migrate(context.Background(), bunDB)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

// tickingClock returns a clock that advances one second per call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func seedEscrow(t *testing.T, repo escrow.RepositoryManager, status escrow.EscrowStatus, seller uuid.UUID, buyer *uuid.UUID) *escrow.Escrow {
	t.Helper()

	code, err := escrow.GenerateJoinCode()
	require.NoError(t, err)

	record, err := repo.Escrows().Create(context.Background(), &escrow.Escrow{
		Title:    "Vintage camera",
		Amount:   125000,
		Currency: "usd",
		SellerID: seller,
		BuyerID:  buyer,
		JoinCode: code,
		Status:   status,
	})
	require.NoError(t, err)
	return record
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
