// Package session tracks active directory enumeration sessions keyed by the
// driver-assigned enumeration ID. Each session owns a snapshot of the
// directory listing and a cursor into it, so paged continuation callbacks
// resume exactly where the previous page stopped.
package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// ListFunc produces the raw directory listing for a session. The registry
// calls it lazily on the first continuation and again after a restart.
type ListFunc func(dir string) ([]types.EntryDescriptor, error)

// EmitFunc serializes one entry into the driver's output buffer. A non-nil
// error stops the page; the rejected entry stays at the cursor and is
// re-offered on the next continuation.
type EmitFunc func(entry *types.EntryDescriptor) error

// AdvanceOptions carries the per-callback flags the driver sets on a
// continuation request.
type AdvanceOptions struct {
	// Restart discards the session's listing and cursor and re-derives
	// the listing before emitting.
	Restart bool

	// SingleEntry caps the page at one entry.
	SingleEntry bool

	// Filter is the DOS wildcard search expression. It is captured when
	// the listing is derived and ignored on plain continuations, matching
	// the driver contract that the search expression of the first scan
	// callback wins.
	Filter string
}

// state is one live enumeration. The mutex serializes continuations for the
// same enumeration ID; the driver may retry or restart concurrently with a
// slow provider listing.
type state struct {
	mu      sync.Mutex
	dir     string
	filter  string
	entries []types.EntryDescriptor
	cursor  int
	derived bool
}

// Registry maps enumeration IDs to session state. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*state
	log      *utils.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *utils.Logger) *Registry {
	if log == nil {
		log = utils.Default()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*state),
		log:      log.WithComponent("session"),
	}
}

// Begin registers a new enumeration session for the given directory. The
// listing is not derived here; the first Advance does that, so a session
// that is begun and immediately ended never touches the provider.
func (r *Registry) Begin(id uuid.UUID, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return errors.Newf(errors.ErrCodeAlreadyActive,
			"enumeration %s is already active", id).
			WithComponent("session").WithPath(dir)
	}

	r.sessions[id] = &state{dir: dir}
	r.log.Debugf("begin enumeration %s dir=%q (%d active)", id, dir, len(r.sessions))
	return nil
}

// Advance emits the next page of entries for the session. It returns the
// number of entries accepted by emit and the error that stopped the page,
// if any. A return of (0, nil) means the listing is exhausted.
//
// The session's internal mutex is held for the whole call, including the
// provider listing, so continuations for one enumeration ID are strictly
// serialized while distinct sessions proceed in parallel.
func (r *Registry) Advance(id uuid.UUID, opts AdvanceOptions, list ListFunc, emit EmitFunc) (int, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return 0, errors.Newf(errors.ErrCodeSessionNotFound,
			"enumeration %s is not active", id).
			WithComponent("session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Restart || !s.derived {
		if err := s.derive(opts.Filter, list, r.log); err != nil {
			return 0, err
		}
	}

	var n int
	for s.cursor < len(s.entries) {
		if err := emit(&s.entries[s.cursor]); err != nil {
			return n, err
		}
		s.cursor++
		n++
		if opts.SingleEntry {
			break
		}
	}
	return n, nil
}

// derive snapshots the directory listing: list, drop invalid entries, apply
// the wildcard filter, sort with the driver's name collation, reset cursor.
func (s *state) derive(filter string, list ListFunc, log *utils.Logger) error {
	raw, err := list(s.dir)
	if err != nil {
		return err
	}

	entries := make([]types.EntryDescriptor, 0, len(raw))
	for i := range raw {
		e := raw[i]
		if verr := e.Validate(); verr != nil {
			log.Warnf("dropping invalid entry in %q: %v", s.dir, verr)
			continue
		}
		if !utils.MatchesWildcard(e.Name, filter) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return utils.CompareFileNames(entries[i].Name, entries[j].Name) < 0
	})

	s.filter = filter
	s.entries = entries
	s.cursor = 0
	s.derived = true
	return nil
}

// End removes the session. Ending an unknown session is not an error; the
// driver may deliver an end callback for an enumeration the registry never
// saw, and the only sane answer is to shrug.
func (r *Registry) End(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		r.log.Warnf("end for unknown enumeration %s", id)
		return false
	}
	delete(r.sessions, id)
	r.log.Debugf("end enumeration %s (%d active)", id, len(r.sessions))
	return true
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll drops every session and returns how many were dropped. Used on
// instance stop so a restart begins with a clean registry.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	if n > 0 {
		r.log.Infof("closing %d enumeration session(s)", n)
	}
	r.sessions = make(map[uuid.UUID]*state)
	return n
}
