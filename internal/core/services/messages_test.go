package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/core/domain"
	"supportdesk/internal/plugins/memory"
)

func msg(id, content string) domain.Message {
	return domain.Message{ID: id, User: "Ann", Role: domain.RoleUser, Content: content, UserType: domain.UserTypeCustomer}
}

func TestMessageStore_UpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore(discardLogger(), "lobby", memory.NewMessageRepo())

	isNew, err := store.Append(ctx, msg("m1", "hello"))
	require.NoError(t, err)
	assert.True(t, isNew)
	_, err = store.Append(ctx, msg("m2", "second"))
	require.NoError(t, err)

	updated := msg("m1", "hello, updated")
	updated.UserType = domain.UserTypeAgent
	isNew, err = store.Append(ctx, updated)
	require.NoError(t, err)
	assert.False(t, isNew)

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "m1", snap[0].ID)
	assert.Equal(t, "hello, updated", snap[0].Content)
	assert.Equal(t, domain.UserTypeAgent, snap[0].UserType)
	assert.Equal(t, "m2", snap[1].ID)
}

func TestMessageStore_RehydratesInPersistedOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMessageRepo()
	first := NewMessageStore(discardLogger(), "lobby", repo)
	for _, m := range []domain.Message{msg("a", "1"), msg("b", "2"), msg("a", "1'"), msg("c", "3")} {
		_, err := first.Append(ctx, m)
		require.NoError(t, err)
	}

	second := NewMessageStore(discardLogger(), "lobby", repo)
	require.NoError(t, second.Load(ctx))

	assert.Equal(t, first.Snapshot(), second.Snapshot())
	got, ok := second.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1'", got.Content)

	_, err := second.Append(ctx, msg("d", "4"))
	require.NoError(t, err)
	third := NewMessageStore(discardLogger(), "lobby", repo)
	require.NoError(t, third.Load(ctx))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(third.Snapshot()))
}

func TestMessageStore_PersistenceFailureLeavesMemoryUntouched(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMessageRepo()
	store := NewMessageStore(discardLogger(), "lobby", repo)
	_, err := store.Append(ctx, msg("m1", "kept"))
	require.NoError(t, err)

	repo.FailWith(errors.New("disk full"))
	_, err = store.Append(ctx, msg("m1", "lost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	_, err = store.Append(ctx, msg("m2", "lost"))
	require.Error(t, err)

	assert.Equal(t, []domain.Message{msg("m1", "kept")}, store.Snapshot())
}

func TestMessageStore_RejectsInvalid(t *testing.T) {
	store := NewMessageStore(discardLogger(), "lobby", memory.NewMessageRepo())
	_, err := store.Append(context.Background(), domain.Message{ID: "", User: "x", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	assert.Equal(t, 0, store.Len())
}

// ackLostRepo commits every write but can report the next one as failed,
// like a database whose connection drops after commit.
type ackLostRepo struct {
	*memory.MessageRepo
	seqs     []int64
	loseNext bool
}

func (r *ackLostRepo) Upsert(ctx context.Context, roomID string, seq int64, m domain.Message) error {
	if err := r.MessageRepo.Upsert(ctx, roomID, seq, m); err != nil {
		return err
	}
	r.seqs = append(r.seqs, seq)
	if r.loseNext {
		r.loseNext = false
		return errors.New("connection reset")
	}
	return nil
}

func TestMessageStore_SeqNeverReusedAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	repo := &ackLostRepo{MessageRepo: memory.NewMessageRepo()}
	store := NewMessageStore(discardLogger(), "lobby", repo)

	_, err := store.Append(ctx, msg("m1", "one"))
	require.NoError(t, err)
	repo.loseNext = true
	_, err = store.Append(ctx, msg("m2", "two"))
	require.ErrorIs(t, err, domain.ErrPersistence)
	_, err = store.Append(ctx, msg("m3", "three"))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, repo.seqs)
	assert.Equal(t, []string{"m1", "m3"}, ids(store.Snapshot()))

	reloaded := NewMessageStore(discardLogger(), "lobby", repo)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(reloaded.Snapshot()))
}

func TestMessageStore_LoadResumesAfterHighestSeq(t *testing.T) {
	ctx := context.Background()
	repo := &ackLostRepo{MessageRepo: memory.NewMessageRepo()}
	store := NewMessageStore(discardLogger(), "lobby", repo)

	_, err := store.Append(ctx, msg("m1", "one"))
	require.NoError(t, err)
	repo.FailWith(errors.New("disk full"))
	_, err = store.Append(ctx, msg("m2", "never stored"))
	require.Error(t, err)
	repo.FailWith(nil)
	_, err = store.Append(ctx, msg("m3", "three"))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, repo.seqs)

	reloaded := NewMessageStore(discardLogger(), "lobby", repo)
	require.NoError(t, reloaded.Load(ctx))
	_, err = reloaded.Append(ctx, msg("m4", "four"))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 4}, repo.seqs)
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
