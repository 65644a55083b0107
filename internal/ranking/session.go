package ranking

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

// State is the lifecycle of an editing session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateMutating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateMutating:
		return "mutating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Loader fetches a list by either of its tokens, as seen by identity.
type Loader interface {
	Fetch(ctx context.Context, ref string, identity auth.Identity) (*models.ListView, error)
}

// Persister writes one mutation to the backing store. Implementations
// address the list by whichever field of list they need.
type Persister interface {
	RenameList(ctx context.Context, list models.List, name string) error
	DeleteList(ctx context.Context, list models.List) error
	AddItem(ctx context.Context, list models.List, item models.Item) error
	RemoveItem(ctx context.Context, list models.List, itemID string) error
	UpdateItemComment(ctx context.Context, list models.List, itemID, comment string) error
	ReorderItems(ctx context.Context, list models.List, mapping []models.RankUpdate) error
}

// Options wires a session to its collaborators.
type Options struct {
	Loader    Loader
	Persister Persister
	Logger    *log.Logger
}

// Result is what a mutation returns: the local state right after the
// optimistic apply, and the write that is now on its way. Pending is nil
// when the mutation changed nothing.
type Result struct {
	List    models.List
	Items   []models.Item
	Pending *Pending
}

// Wait blocks until the pending write finishes. A no-op result returns nil.
func (r Result) Wait(ctx context.Context) error {
	if r.Pending == nil {
		return nil
	}
	return r.Pending.Wait(ctx)
}

// Pending is one queued persistence request. Its payload is fixed when the
// mutation is applied, so Retry re-sends exactly the same write.
type Pending struct {
	op      string
	run     func(ctx context.Context) error
	session *Session
	done    chan struct{}
	err     error
}

// Op names the mutation, e.g. "reorder".
func (p *Pending) Op() string {
	return p.op
}

// Done is closed when the request has finished or was abandoned.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the outcome, or nil while still outstanding.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the request finishes or ctx ends. Ending ctx does not
// cancel the request.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry queues the same payload again on the owning session.
func (p *Pending) Retry() *Pending {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	return p.session.enqueueLocked(p.op, p.run)
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Session is one client's editing view of a list. Mutations are called from
// a single goroutine; persistence runs on the session's own dispatcher in
// the order mutations were applied.
type Session struct {
	opts     Options
	ref      string
	identity auth.Identity
	logger   *log.Logger

	mu          sync.Mutex
	state       State
	wc          *WorkingCopy
	owner       bool
	deleted     bool
	queue       []*Pending
	outstanding int
	last        *Pending

	wake   chan struct{}
	closed chan struct{}
}

// Open starts a session and performs the initial fetch. When the fetch
// fails the session is returned in StateLoading together with the error;
// call Reload to try again.
func Open(ctx context.Context, opts Options, ref string, identity auth.Identity) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	s := &Session{
		opts:     opts,
		ref:      ref,
		identity: identity,
		logger:   logger.With("ref", ref),
		state:    StateLoading,
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	go s.dispatch()

	return s, s.Reload(ctx)
}

// Reload replaces the working copy with a fresh fetch. Writes still queued
// are not affected.
func (s *Session) Reload(ctx context.Context) error {
	view, err := s.opts.Loader.Fetch(ctx, s.ref, s.identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return shared.ErrSessionClosed
	}
	s.wc = Load(view.List, view.Items)
	s.owner = view.IsOwner
	s.deleted = false
	if s.outstanding > 0 {
		s.state = StateMutating
	} else {
		s.state = StateReady
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsOwner reports the role the session was loaded with.
func (s *Session) IsOwner() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// List returns the list record of the working copy.
func (s *Session) List() models.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wc == nil {
		return models.List{}
	}
	return s.wc.List()
}

// Items returns the working copy in rank order.
func (s *Session) Items() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wc == nil || s.deleted {
		return nil
	}
	return s.wc.Items()
}

// Reorder moves the item at src to dst. Equal positions change nothing and
// send nothing. Otherwise the complete new mapping is queued.
func (s *Session) Reorder(src, dst int) (Result, error) {
	return s.mutate("reorder", func(wc *WorkingCopy) (func(context.Context) error, error) {
		changed, err := wc.Reorder(src, dst)
		if err != nil || !changed {
			return nil, err
		}
		return s.reorderWrite(wc), nil
	})
}

// SetOrder replaces the order with a complete mapping, as sent by a remote client.
func (s *Session) SetOrder(mapping []models.RankUpdate) (Result, error) {
	return s.mutate("reorder", func(wc *WorkingCopy) (func(context.Context) error, error) {
		if err := wc.ApplyMapping(mapping); err != nil {
			return nil, err
		}
		return s.reorderWrite(wc), nil
	})
}

func (s *Session) reorderWrite(wc *WorkingCopy) func(context.Context) error {
	list, mapping := wc.List(), wc.Mapping()
	return func(ctx context.Context) error {
		return s.opts.Persister.ReorderItems(ctx, list, mapping)
	}
}

// AddItem appends item at rank N+1. An empty item id is generated.
func (s *Session) AddItem(item models.Item) (Result, error) {
	return s.mutate("add item", func(wc *WorkingCopy) (func(context.Context) error, error) {
		if item.Movie.ID <= 0 {
			return nil, shared.Invalid("movie_id", "is required")
		}
		if item.ID == "" {
			item.ID = shared.GenerateID()
		}
		if wc.Position(item.ID) >= 0 {
			return nil, shared.Invalid("id", "already used in this list")
		}

		added := wc.Append(item)
		list := wc.List()
		return func(ctx context.Context) error {
			return s.opts.Persister.AddItem(ctx, list, added)
		}, nil
	})
}

// RemoveItem deletes itemID and renumbers the rest.
func (s *Session) RemoveItem(itemID string) (Result, error) {
	return s.mutate("remove item", func(wc *WorkingCopy) (func(context.Context) error, error) {
		if _, err := wc.Remove(itemID); err != nil {
			return nil, err
		}
		list := wc.List()
		return func(ctx context.Context) error {
			return s.opts.Persister.RemoveItem(ctx, list, itemID)
		}, nil
	})
}

// UpdateItemComment sets or clears a comment. nil and "" both clear it.
func (s *Session) UpdateItemComment(itemID string, comment *string) (Result, error) {
	return s.mutate("update item", func(wc *WorkingCopy) (func(context.Context) error, error) {
		text := ""
		if comment != nil {
			text = *comment
		}
		if _, err := wc.SetComment(itemID, text); err != nil {
			return nil, err
		}
		list := wc.List()
		return func(ctx context.Context) error {
			return s.opts.Persister.UpdateItemComment(ctx, list, itemID, text)
		}, nil
	})
}

// Rename changes the list name.
func (s *Session) Rename(name string) (Result, error) {
	return s.mutate("rename list", func(wc *WorkingCopy) (func(context.Context) error, error) {
		if err := wc.Rename(name); err != nil {
			return nil, err
		}
		list := wc.List()
		return func(ctx context.Context) error {
			return s.opts.Persister.RenameList(ctx, list, list.Name)
		}, nil
	})
}

// Delete removes the list with all of its items. Later mutations report
// the list as not found.
func (s *Session) Delete() (Result, error) {
	return s.mutate("delete list", func(wc *WorkingCopy) (func(context.Context) error, error) {
		list := wc.List()
		s.deleted = true
		return func(ctx context.Context) error {
			return s.opts.Persister.DeleteList(ctx, list)
		}, nil
	})
}

// Settle waits for every write queued so far and returns the last one's outcome.
func (s *Session) Settle(ctx context.Context) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return nil
	}
	return last.Wait(ctx)
}

// Close ends the session. A write already running completes; queued
// writes are abandoned with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	abandoned := s.queue
	s.queue = nil
	s.outstanding -= len(abandoned)
	s.mu.Unlock()

	close(s.closed)
	for _, p := range abandoned {
		p.finish(shared.ErrSessionClosed)
	}
}

// mutate gates and applies one mutation under the lock. apply returns a nil
// write when nothing changed.
func (s *Session) mutate(op string, apply func(*WorkingCopy) (func(context.Context) error, error)) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateClosed:
		return Result{}, shared.ErrSessionClosed
	case s.wc == nil:
		return Result{}, shared.ErrSessionNotReady
	case !s.owner:
		return Result{}, &shared.AuthorizationError{Op: op}
	case s.deleted:
		return Result{}, shared.NotFound("list", s.ref)
	}

	write, err := apply(s.wc)
	if err != nil {
		return Result{}, err
	}

	result := Result{List: s.wc.List()}
	if !s.deleted {
		result.Items = s.wc.Items()
	}
	if write != nil {
		result.Pending = s.enqueueLocked(op, write)
	}
	return result, nil
}

func (s *Session) enqueueLocked(op string, run func(context.Context) error) *Pending {
	p := &Pending{op: op, run: run, session: s, done: make(chan struct{})}
	if s.state == StateClosed {
		p.finish(shared.ErrSessionClosed)
		return p
	}

	s.queue = append(s.queue, p)
	s.outstanding++
	s.last = p
	s.state = StateMutating

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return p
}

func (s *Session) dispatch() {
	for {
		select {
		case <-s.wake:
		case <-s.closed:
			return
		}

		for {
			s.mu.Lock()
			if s.state == StateClosed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			p := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			// No caller context reaches an in-flight write.
			err := shared.Persistence(p.op, p.run(context.Background()))
			if err != nil {
				s.logger.Warn("write failed, local copy kept", "op", p.op, "err", err)
			}

			s.mu.Lock()
			s.outstanding--
			if s.outstanding == 0 && s.state == StateMutating {
				s.state = StateReady
			}
			s.mu.Unlock()
			p.finish(err)
		}
	}
}
