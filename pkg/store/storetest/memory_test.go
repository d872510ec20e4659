package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

func TestMemoryRemote(t *testing.T) {
	RunRemote(t, func(t *testing.T) store.Remote {
		return NewMemoryRemote()
	})
}

func TestMemoryRemote_failureInjection(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()
	boom := errors.New("unavailable")

	r.FailWrites(models.KindNote, boom)
	err := r.Save(ctx, Stamp(&models.Note{}, "owner", At(1)))
	require.ErrorIs(t, err, boom)
	require.NoError(t, r.Save(ctx, Stamp(&models.Group{}, "owner", At(1))))
	assert.Equal(t, 1, r.Writes())

	r.FailFetch(models.KindGroup, boom)
	_, err = r.GetAll(ctx, models.KindGroup, "owner")
	require.ErrorIs(t, err, boom)

	r.FailFetch(models.KindGroup, nil)
	got, err := r.GetAll(ctx, models.KindGroup, "owner")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
