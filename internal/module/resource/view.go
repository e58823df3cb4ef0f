package resource

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/simp-lee/backoffice/internal/listing"
)

// Status is the lifecycle state of a View.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// ErrSuperseded is returned by View.Load when a newer load started before
// this one finished. The superseded result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer request")

// FetchFunc loads the full collection of a view.
type FetchFunc func(ctx context.Context) ([]listing.Row, error)

// Snapshot is a consistent copy of a View's state.
type Snapshot struct {
	Status   Status
	Rows     []listing.Row
	State    listing.PageState
	Err      error
	Seq      uint64
	LoadedAt time.Time
}

// View is one list page instance: the rows last fetched for a session and
// entity plus the page state they are shown with.
//
// Idle -> Loading -> Ready on the first load; Ready -> Loading -> Ready on
// every reload; Loading -> Error on a failed fetch, keeping the previous rows;
// Error -> Loading on retry. Starting a load cancels the one in flight and
// only the most recently started load may commit.
type View struct {
	mu       sync.Mutex
	status   Status
	rows     []listing.Row
	state    listing.PageState
	err      error
	seq      uint64
	cancel   context.CancelFunc
	loadedAt time.Time
}

// NewView returns an idle view with the default state for pageSize.
func NewView(pageSize int) *View {
	return &View{status: StatusIdle, state: listing.NewPageState(pageSize)}
}

// Load fetches the collection for state. A failed fetch moves the view to
// Error and keeps the previous rows; the returned snapshot carries them.
func (v *View) Load(ctx context.Context, state listing.PageState, fetch FetchFunc) (Snapshot, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.seq++
	seq := v.seq
	loadCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.status = StatusLoading
	v.state = state
	v.mu.Unlock()

	rows, err := fetch(loadCtx)
	cancel()

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		return v.snapshotLocked(), ErrSuperseded
	}
	v.cancel = nil
	if errors.Is(err, context.Canceled) {
		// The caller went away; nothing was learned about the backend.
		switch {
		case v.err != nil:
			v.status = StatusError
		case !v.loadedAt.IsZero():
			v.status = StatusReady
		default:
			v.status = StatusIdle
		}
		return v.snapshotLocked(), err
	}
	if err != nil {
		v.status = StatusError
		v.err = err
		return v.snapshotLocked(), err
	}
	v.status = StatusReady
	v.err = nil
	v.rows = rows
	v.loadedAt = time.Now()
	return v.snapshotLocked(), nil
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// State returns the page state of the last load.
func (v *View) State() listing.PageState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Row returns a copy of the row with the given id.
func (v *View) Row(id string) (listing.Row, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.rows {
		if r.ID() == id {
			return r.Clone(), true
		}
	}
	return nil, false
}

// SetField replaces the value of key in the row with the given id. Rows are
// copied on write so earlier snapshots are unaffected. It reports whether the
// row was found.
func (v *View) SetField(id, key string, value any) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.rows {
		if r.ID() != id {
			continue
		}
		rows := slices.Clone(v.rows)
		updated := r.Clone()
		updated[key] = value
		rows[i] = updated
		v.rows = rows
		return true
	}
	return false
}

// SwapField sets key to value in the row with the given id only while it
// still holds expect. It reports whether the swap happened.
func (v *View) SwapField(id, key string, expect, value any) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.rows {
		if r.ID() != id {
			continue
		}
		if current, ok := r[key]; !ok || !sameValue(current, expect) {
			return false
		}
		rows := slices.Clone(v.rows)
		updated := r.Clone()
		updated[key] = value
		rows[i] = updated
		v.rows = rows
		return true
	}
	return false
}

// sameValue compares JSON scalars without panicking on maps and slices.
func sameValue(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	return a == b
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Status:   v.status,
		Rows:     v.rows,
		State:    v.state,
		Err:      v.err,
		Seq:      v.seq,
		LoadedAt: v.loadedAt,
	}
}

// ViewStore keeps one View per session and entity. Views not touched for the
// TTL are evicted.
type ViewStore struct {
	views *cache.Cache
}

// NewViewStore creates a store whose views expire after ttl of inactivity.
func NewViewStore(ttl time.Duration) *ViewStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ViewStore{views: cache.New(ttl, ttl/2)}
}

// Get returns the view of session for entity, creating it on first use.
func (s *ViewStore) Get(session, entity string, pageSize int) *View {
	key := session + "|" + entity
	if v, ok := s.views.Get(key); ok {
		view := v.(*View)
		s.views.SetDefault(key, view)
		return view
	}
	view := NewView(pageSize)
	if err := s.views.Add(key, view, cache.DefaultExpiration); err != nil {
		if v, ok := s.views.Get(key); ok {
			return v.(*View)
		}
	}
	return view
}

// Len returns the number of live views.
func (s *ViewStore) Len() int {
	return s.views.ItemCount()
}
