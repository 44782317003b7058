package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
)

func TestStore_CreateGetDelete(t *testing.T) {
	st := NewStore(0)
	assert.Equal(t, DefaultSessionTTL, st.ttl)

	s := st.Create()
	assert.Equal(t, 1, st.Len())

	got, err := st.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = st.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, st.Delete(s.ID()))
	assert.Equal(t, 0, st.Len())
	assert.ErrorIs(t, st.Delete(s.ID()), ErrSessionNotFound)
}

func TestStore_DeleteZeroesDocument(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	st := NewStore(time.Hour)
	s := st.Create()

	doc := sampleDocument()
	require.NoError(t, c.Process(context.Background(), s, doc, nil))
	require.NoError(t, st.Delete(s.ID()))

	for _, b := range doc.Data {
		require.Zero(t, b)
	}
	state := s.Snapshot()
	assert.False(t, state.Analyzed)
	assert.Zero(t, state.TextLength)
}

func TestStore_Prune(t *testing.T) {
	st := NewStore(time.Hour)
	now := time.Now()
	st.now = func() time.Time { return now }

	idle := st.Create()
	fresh := st.Create()
	busy := st.Create()

	idle.mu.Lock()
	idle.updatedAt = now.Add(-2 * time.Hour)
	idle.mu.Unlock()

	busy.mu.Lock()
	busy.updatedAt = now.Add(-2 * time.Hour)
	busy.steps[0].Status = steps.StatusProcessing
	busy.mu.Unlock()

	assert.Equal(t, 1, st.Prune())
	assert.Equal(t, 2, st.Len())

	_, err := st.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.Get(fresh.ID())
	assert.NoError(t, err)
	_, err = st.Get(busy.ID())
	assert.NoError(t, err)
}

func TestStore_RunStopsWithContext(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
