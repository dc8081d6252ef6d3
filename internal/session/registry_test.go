package session

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
)

var errFull = stderrors.New("buffer full")

func fixedListing(names ...string) ListFunc {
	return func(dir string) ([]types.EntryDescriptor, error) {
		entries := make([]types.EntryDescriptor, 0, len(names))
		for _, n := range names {
			entries = append(entries, types.EntryDescriptor{Name: n, Kind: types.KindFile, Size: 1})
		}
		return entries, nil
	}
}

// collectAll drains the session page by page, with each page holding at
// most pageSize entries, and returns the names in emission order along
// with the number of pages it took.
func collectAll(t *testing.T, r *Registry, id uuid.UUID, list ListFunc, pageSize int) ([]string, int) {
	t.Helper()

	var names []string
	pages := 0
	for {
		inPage := 0
		n, err := r.Advance(id, AdvanceOptions{}, list, func(e *types.EntryDescriptor) error {
			if inPage == pageSize {
				return errFull
			}
			inPage++
			names = append(names, e.Name)
			return nil
		})
		if err != nil && !stderrors.Is(err, errFull) {
			t.Fatalf("Advance: %v", err)
		}
		if n == 0 && err == nil {
			return names, pages
		}
		pages++
	}
}

func TestBeginDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()

	require.NoError(t, r.Begin(id, "docs"))
	err := r.Begin(id, "docs")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyActive))
	assert.Equal(t, 1, r.Count())
}

func TestEndIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()

	require.NoError(t, r.Begin(id, ""))
	assert.True(t, r.End(id))
	assert.False(t, r.End(id))
	assert.Equal(t, 0, r.Count())
}

func TestAdvanceUnknownSession(t *testing.T) {
	r := NewRegistry(nil)

	n, err := r.Advance(uuid.New(), AdvanceOptions{}, fixedListing("a"), func(e *types.EntryDescriptor) error {
		t.Fatal("emit should not be called for an unknown session")
		return nil
	})
	assert.Equal(t, 0, n)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionNotFound))
}

func TestAdvancePagingExactlyOnce(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	list := fixedListing("j", "c", "a", "h", "b", "f", "d", "i", "e", "g")
	require.NoError(t, r.Begin(id, ""))

	names, pages := collectAll(t, r, id, list, 3)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, names)
	assert.Equal(t, 4, pages, "10 entries at 3 per page should take 4 pages")
}

func TestAdvanceSingleEntry(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	list := fixedListing("b", "a")
	require.NoError(t, r.Begin(id, ""))

	n, err := r.Advance(id, AdvanceOptions{SingleEntry: true}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "a", e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Advance(id, AdvanceOptions{SingleEntry: true}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "b", e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdvanceRejectedEntryReoffered(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	list := fixedListing("a", "b")
	require.NoError(t, r.Begin(id, ""))

	n, err := r.Advance(id, AdvanceOptions{}, list, func(e *types.EntryDescriptor) error {
		if e.Name == "b" {
			return errFull
		}
		return nil
	})
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, errFull)

	// The rejected entry leads the next page.
	n, err = r.Advance(id, AdvanceOptions{}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "b", e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdvanceRestart(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	list := fixedListing("a", "b", "c")
	require.NoError(t, r.Begin(id, ""))

	_, err := r.Advance(id, AdvanceOptions{SingleEntry: true}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "a", e.Name)
		return nil
	})
	require.NoError(t, err)
	_, err = r.Advance(id, AdvanceOptions{SingleEntry: true}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "b", e.Name)
		return nil
	})
	require.NoError(t, err)

	// Restart rewinds to the beginning without end/begin.
	var names []string
	n, err := r.Advance(id, AdvanceOptions{Restart: true}, list, func(e *types.EntryDescriptor) error {
		names = append(names, e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestAdvanceFilterCapturedOnDerive(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	list := fixedListing("a.txt", "b.dat", "c.txt")
	require.NoError(t, r.Begin(id, ""))

	n, err := r.Advance(id, AdvanceOptions{SingleEntry: true, Filter: "*.txt"}, list,
		func(e *types.EntryDescriptor) error {
			assert.Equal(t, "a.txt", e.Name)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A different filter on a plain continuation is ignored.
	n, err = r.Advance(id, AdvanceOptions{Filter: "*.dat"}, list, func(e *types.EntryDescriptor) error {
		assert.Equal(t, "c.txt", e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A restart re-captures the filter.
	var names []string
	n, err = r.Advance(id, AdvanceOptions{Restart: true, Filter: "*.dat"}, list,
		func(e *types.EntryDescriptor) error {
			names = append(names, e.Name)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b.dat"}, names)
}

func TestAdvanceListErrorPropagates(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	require.NoError(t, r.Begin(id, "gone"))

	listErr := errors.New(errors.ErrCodeNotFound, "directory does not exist")
	n, err := r.Advance(id, AdvanceOptions{}, func(dir string) ([]types.EntryDescriptor, error) {
		return nil, listErr
	}, func(e *types.EntryDescriptor) error { return nil })
	assert.Equal(t, 0, n)
	assert.True(t, errors.IsNotFound(err))

	// The session stays underived, so a later continuation retries the
	// listing.
	n, err = r.Advance(id, AdvanceOptions{}, fixedListing("a"), func(e *types.EntryDescriptor) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdvanceDropsInvalidEntries(t *testing.T) {
	r := NewRegistry(nil)
	id := uuid.New()
	require.NoError(t, r.Begin(id, ""))

	list := func(dir string) ([]types.EntryDescriptor, error) {
		return []types.EntryDescriptor{
			{Name: "ok.txt", Kind: types.KindFile, Size: 1},
			{Name: "", Kind: types.KindFile},
			{Name: `bad\name`, Kind: types.KindFile},
		}, nil
	}

	var names []string
	n, err := r.Advance(id, AdvanceOptions{}, list, func(e *types.EntryDescriptor) error {
		names = append(names, e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok.txt"}, names)
}

func TestSessionIsolation(t *testing.T) {
	r := NewRegistry(nil)
	first, second := uuid.New(), uuid.New()
	list := fixedListing("a", "b", "c")

	require.NoError(t, r.Begin(first, "docs"))
	require.NoError(t, r.Begin(second, "docs"))
	assert.Equal(t, 2, r.Count())

	// Interleaved single-entry advances keep independent cursors.
	for _, want := range []string{"a", "b", "c"} {
		for _, id := range []uuid.UUID{first, second} {
			n, err := r.Advance(id, AdvanceOptions{SingleEntry: true}, list,
				func(e *types.EntryDescriptor) error {
					assert.Equal(t, want, e.Name)
					return nil
				})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		}
	}

	r.End(first)
	assert.Equal(t, 1, r.Count())
}

func TestConcurrentSessions(t *testing.T) {
	r := NewRegistry(nil)
	list := fixedListing("e", "d", "c", "b", "a")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			if err := r.Begin(id, ""); err != nil {
				t.Error(err)
				return
			}
			names, _ := collectAll(t, r, id, list, 2)
			if len(names) != 5 || names[0] != "a" || names[4] != "e" {
				t.Errorf("unexpected listing: %v", names)
			}
			r.End(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Begin(uuid.New(), ""))
	}

	assert.Equal(t, 3, r.CloseAll())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.CloseAll())
}
