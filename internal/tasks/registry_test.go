package tasks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID_Deterministic(t *testing.T) {
	a := ID("https://open.spotify.com/track/abc")
	b := ID("https://open.spotify.com/track/abc")
	c := ID("https://open.spotify.com/track/xyz")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestStart_RejectsDuplicateRunning(t *testing.T) {
	r := NewRegistry()
	id := ID("u")

	require.NoError(t, r.Start(id, "u", "Song"))
	require.ErrorIs(t, r.Start(id, "u", "Song"), ErrAlreadyRunning)

	// A finished task with the same id is replaced.
	r.End(id, "done")
	require.NoError(t, r.Start(id, "u", "Song"))
}

func TestUpdateProgress(t *testing.T) {
	r := NewRegistry()
	id := ID("u")
	require.NoError(t, r.Start(id, "u", "Song"))

	r.UpdateProgress(id, 42.5, "Downloading: 42.5%")
	got, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, 42.5, got.Progress)
	require.Equal(t, "Downloading: 42.5%", got.LastLine)

	// Clamped to the 0-100 range.
	r.UpdateProgress(id, 250, "")
	got, _ = r.Get(id)
	require.Equal(t, 100.0, got.Progress)
	require.Equal(t, "Downloading: 42.5%", got.LastLine)

	r.UpdateProgress(id, -3, "")
	got, _ = r.Get(id)
	require.Equal(t, 0.0, got.Progress)
}

func TestUpdateProgress_IgnoresFinishedTasks(t *testing.T) {
	r := NewRegistry()
	id := ID("u")
	require.NoError(t, r.Start(id, "u", "Song"))
	r.Fail(id, "boom")

	// A late progress callback must not resurrect the task.
	r.UpdateProgress(id, 50, "late line")
	got, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, 0.0, got.Progress)
	require.Equal(t, "boom", got.Error)
}

func TestEndAndFail(t *testing.T) {
	r := NewRegistry()
	id := ID("u")
	require.NoError(t, r.Start(id, "u", "Song"))

	r.End(id, "Downloaded \"Song\"")
	got, _ := r.Get(id)
	require.Equal(t, StateSucceeded, got.State)
	require.Equal(t, 100.0, got.Progress)
	require.Equal(t, "Downloaded \"Song\"", got.LastLine)
}

func TestDrop(t *testing.T) {
	r := NewRegistry()
	id := ID("u")
	require.NoError(t, r.Start(id, "u", "Song"))

	r.Drop(id)
	_, ok := r.Get(id)
	require.False(t, ok)
	require.Empty(t, r.List())
}

func TestList_SortedByURL(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Start(ID("b"), "b", ""))
	require.NoError(t, r.Start(ID("a"), "a", ""))
	require.NoError(t, r.Start(ID("c"), "c", ""))

	list := r.List()
	require.Len(t, list, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{list[0].URL, list[1].URL, list[2].URL})
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	r := NewRegistry()

	const updates = 100

	idA := ID("https://open.spotify.com/track/aaa")
	idB := ID("https://open.spotify.com/track/bbb")
	require.NoError(t, r.Start(idA, "https://open.spotify.com/track/aaa", "A"))
	require.NoError(t, r.Start(idB, "https://open.spotify.com/track/bbb", "B"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= updates; i++ {
			r.UpdateProgress(idA, float64(i)/2, fmt.Sprintf("a:%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 1; i <= updates; i++ {
			r.UpdateProgress(idB, float64(i), fmt.Sprintf("b:%d", i))
		}
	}()
	wg.Wait()

	// Each task carries only its own final update.
	a, ok := r.Get(idA)
	require.True(t, ok)
	require.Equal(t, 50.0, a.Progress)
	require.Equal(t, "a:100", a.LastLine)

	b, ok := r.Get(idB)
	require.True(t, ok)
	require.Equal(t, 100.0, b.Progress)
	require.Equal(t, "b:100", b.LastLine)
}
