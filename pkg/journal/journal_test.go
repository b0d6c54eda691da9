package journal

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/manager"
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantonlabs/vault/pkg/vault"
)

func testDB(t *testing.T) database.Database {
	t.Helper()
	db, err := manager.NewManager(t.TempDir(), nil).New(manager.DefaultMemoryConfig())
	require.NoError(t, err)
	return db
}

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

func depositEvent(party string, amount int64) vault.Event {
	return vault.Event{
		Kind:    "deposit",
		VaultID: "vault-1",
		Party:   party,
		Assets:  decimal.NewFromInt(amount),
		Shares:  decimal.NewFromInt(amount),
		At:      time.Now().UTC(),
	}
}

func TestJournalAppendsInOrder(t *testing.T) {
	j, err := Open(testDB(t), testLogger())
	require.NoError(t, err)
	require.Zero(t, j.LastSeq())

	ctx := context.Background()
	j.Accepted(ctx, depositEvent("alice", 100))
	j.Accepted(ctx, depositEvent("bob", 50))
	assert.Equal(t, uint64(2), j.LastSeq())

	first, err := j.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, "alice", first.Party)
	assert.True(t, first.Assets.Equal(decimal.NewFromInt(100)))

	second, err := j.Entry(2)
	require.NoError(t, err)
	assert.Equal(t, "bob", second.Party)
}

func TestJournalCursorSurvivesReopen(t *testing.T) {
	db := testDB(t)

	j, err := Open(db, testLogger())
	require.NoError(t, err)
	j.Accepted(context.Background(), depositEvent("alice", 10))
	j.Accepted(context.Background(), depositEvent("alice", 20))

	reopened, err := Open(db, testLogger())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reopened.LastSeq())

	reopened.Accepted(context.Background(), depositEvent("alice", 30))
	e, err := reopened.Entry(3)
	require.NoError(t, err)
	assert.True(t, e.Assets.Equal(decimal.NewFromInt(30)))
}

func TestJournalMissingEntry(t *testing.T) {
	j, err := Open(testDB(t), testLogger())
	require.NoError(t, err)

	_, err = j.Entry(99)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
