package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
	"github.com/matchnote/matchnote/pkg/store/storetest"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithDialector(sqlite.Open(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_onSQLite(t *testing.T) {
	storetest.RunRemote(t, func(t *testing.T) store.Remote {
		return newSQLiteStore(t)
	})
}

// Set POSTGRES_DSN to run against a live server.
func TestStore_onPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	storetest.RunRemote(t, func(t *testing.T) store.Remote {
		s, err := New(dsn, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		require.NoError(t, s.Migrate(context.Background()))
		return s
	})
}

func TestGetAll_skipsUndecodableDocuments(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	good := storetest.Stamp(&models.Group{Title: "ok"}, "owner", storetest.At(1))
	require.NoError(t, s.Save(ctx, good))
	require.NoError(t, s.DB().Create(&document{
		Collection: "groups",
		DocID:      "owner_broken",
		OwnerID:    "owner",
		UpdatedAt:  storetest.At(1),
		Body:       []byte(`{"group_id": 7}`),
	}).Error)

	got, err := s.GetAll(ctx, models.KindGroup, "owner")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, good.ID, got[0].RecordID())
}

func TestSave_rejectsInvalidRecord(t *testing.T) {
	s := newSQLiteStore(t)
	err := s.Save(context.Background(), &models.Task{ID: "t"})
	require.ErrorIs(t, err, models.ErrInvalidRecord)
}
