// Package controller holds the view state of the product and user screens:
// loading and error state, the full and filtered record sets, and the edit
// and delete modals. One generic Controller serves every entity through an
// Adapter.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/atinyakov/InventarisHub/internal/client/api"
	"github.com/atinyakov/InventarisHub/internal/client/search"
	"github.com/atinyakov/InventarisHub/internal/models"
)

var (
	// ErrBusy is returned when the same action is already in flight.
	ErrBusy = errors.New("action already in progress")
	// ErrNoSession is returned by Mount when no token is stored.
	ErrNoSession = errors.New("not logged in")
	// ErrNotReady is returned for record actions outside the Ready state.
	ErrNotReady = errors.New("records are not loaded")
	// ErrModalOpen is returned when a modal is opened over another one.
	ErrModalOpen = errors.New("another dialog is open")
	// ErrNoModal is returned when an action needs a modal that is not open.
	ErrNoModal = errors.New("no dialog is open")
	// ErrUnknownRecord is returned for an id missing from the loaded set.
	ErrUnknownRecord = errors.New("no such record")
	// ErrNoAttachment is returned by Attach for entities without a file field.
	ErrNoAttachment = errors.New("this record has no attachment field")
)

// State is the screen level state.
type State int

const (
	// StateUnmounted is the state before Mount and after a redirect to login.
	StateUnmounted State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unmounted"
	}
}

// Modal is the dialog open on top of a Ready screen.
type Modal int

const (
	ModalNone Modal = iota
	ModalEdit
	ModalDelete
)

// Draft is the scratch copy edited in the edit modal.
type Draft[T any] struct {
	Record T
	Image  *models.ImageUpload
}

// Adapter supplies everything entity specific.
type Adapter[T any] interface {
	// Entity is a display name such as "product".
	Entity() string
	ID(T) string
	// SearchText returns the fields matched by the search filter.
	SearchText(T) []string
	Fields() []Field
	// Value renders field name of rec for display.
	Value(rec T, name string) string
	// Set parses value into field name of rec and applies derived field
	// rules. value has already passed the field's input check.
	Set(rec *T, name, value string) error
	List(ctx context.Context) ([]T, error)
	// Update writes d and returns the record the server now holds.
	Update(ctx context.Context, id string, d Draft[T]) (T, error)
	Delete(ctx context.Context, id string) error
}

// Sessions is the part of the session store controllers need.
type Sessions interface {
	Token() (string, bool)
	Clear() error
}

// Redirector sends the operator to the login screen.
type Redirector interface {
	RedirectToLogin()
}

// View is a snapshot of controller state.
type View[T any] struct {
	State State
	// Err is the screen level fetch error in StateError.
	Err      error
	All      []T
	Filtered []T
	// Query is the query the filtered set currently reflects.
	Query string
	Modal Modal
	Draft Draft[T]
	// Target is the record of the delete modal.
	Target T
	// ModalErr is the inline error of the open modal.
	ModalErr   error
	IsLoading  bool
	IsUpdating bool
	IsDeleting bool
}

// Options configures a Controller.
type Options struct {
	Logger *zap.Logger
	// SearchDebounce is the search quiet period; zero applies queries at once.
	SearchDebounce time.Duration
	// Observer is called after every state change, outside any lock.
	Observer func()
}

// Controller is the view-state machine of one screen.
type Controller[T any] struct {
	adapter  Adapter[T]
	sessions Sessions
	nav      Redirector
	log      *zap.Logger
	observer func()
	debounce *search.Debouncer
	fetches  singleflight.Group

	mu sync.Mutex
	// mount increments on every Mount and redirect; fetches started under an
	// older mount are dropped.
	mount uint64
	// epoch increments whenever a modal opens or closes.
	epoch    uint64
	state    State
	err      error
	all      []T
	filtered []T
	query    string
	modal    Modal
	draft    Draft[T]
	target   T
	modalErr error
	loading  bool
	updating bool
	deleting bool
	// fetchSeq numbers list requests in start order; applied is the newest
	// one whose result is shown.
	fetchSeq uint64
	applied  uint64
	fetching int
}

// New returns an unmounted Controller.
func New[T any](adapter Adapter[T], sessions Sessions, nav Redirector, opts Options) *Controller[T] {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller[T]{
		adapter:  adapter,
		sessions: sessions,
		nav:      nav,
		log:      log.Named(adapter.Entity()),
		observer: opts.Observer,
		debounce: search.NewDebouncer(opts.SearchDebounce),
	}
}

// Adapter returns the entity adapter.
func (c *Controller[T]) Adapter() Adapter[T] { return c.adapter }

// View returns a snapshot of the current state.
func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View[T]{
		State:      c.state,
		Err:        c.err,
		All:        append([]T(nil), c.all...),
		Filtered:   append([]T(nil), c.filtered...),
		Query:      c.query,
		Modal:      c.modal,
		Draft:      c.draft,
		Target:     c.target,
		ModalErr:   c.modalErr,
		IsLoading:  c.loading,
		IsUpdating: c.updating,
		IsDeleting: c.deleting,
	}
}

// Mount enters the screen. Without a stored token it redirects to login and
// returns ErrNoSession; otherwise it loads the records.
func (c *Controller[T]) Mount(ctx context.Context) error {
	c.debounce.Stop()
	c.mu.Lock()
	c.mount++
	c.epoch++
	c.reset()
	if _, ok := c.sessions.Token(); !ok {
		c.mu.Unlock()
		c.log.Debug("no session, redirecting to login")
		c.nav.RedirectToLogin()
		c.notify()
		return ErrNoSession
	}
	c.state = StateLoading
	c.mu.Unlock()
	c.notify()
	return c.refresh(ctx, true)
}

// reset drops all records and dialogs. c.mu must be held.
func (c *Controller[T]) reset() {
	var zero T
	c.state = StateUnmounted
	c.err = nil
	c.all = nil
	c.filtered = nil
	c.query = ""
	c.modal = ModalNone
	c.draft = Draft[T]{}
	c.target = zero
	c.modalErr = nil
}

// Refresh refetches the full set. Concurrent calls share one request. The
// shared request runs detached from the caller's cancellation: a caller whose
// ctx ends returns ctx.Err() while the fetch still completes and is applied.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	return c.refresh(ctx, false)
}

// refresh loads the full set. With fresh set it never joins a fetch that is
// already running, so the result reflects every write finished before the
// call. Results are applied in start order; an older fetch finishing after a
// newer one is dropped.
func (c *Controller[T]) refresh(ctx context.Context, fresh bool) error {
	c.mu.Lock()
	if c.state == StateUnmounted {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.mu.Unlock()

	if fresh {
		c.fetches.Forget("list")
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan("list", func() (any, error) {
		return nil, c.fetch(fetchCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug("joined in-flight fetch")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch runs one list request and applies its result.
func (c *Controller[T]) fetch(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	seq, mount := c.fetchSeq, c.mount
	c.fetching++
	c.loading = true
	c.mu.Unlock()
	c.notify()

	records, err := c.adapter.List(ctx)

	c.mu.Lock()
	c.fetching--
	c.loading = c.fetching > 0
	if mount != c.mount || seq < c.applied {
		c.mu.Unlock()
		c.notify()
		if err == nil {
			c.log.Debug("dropped stale fetch", zap.Uint64("seq", seq))
		}
		return err
	}
	c.applied = seq
	if err != nil {
		if api.Classify(err) == api.KindUnauthorized {
			c.mu.Unlock()
			c.unauthorized(err)
			return err
		}
		c.log.Warn("fetch failed", zap.Error(err))
		c.state = StateError
		c.err = err
		c.closeModal()
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.all = append([]T(nil), records...)
	c.filtered = search.Filter(c.all, c.query, c.adapter.SearchText)
	c.state = StateReady
	c.err = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// unauthorized clears the session, drops all state and redirects.
func (c *Controller[T]) unauthorized(cause error) {
	c.log.Info("session rejected, redirecting to login", zap.Error(cause))
	if err := c.sessions.Clear(); err != nil {
		c.log.Error("failed to clear session", zap.Error(err))
	}
	c.debounce.Stop()
	c.mu.Lock()
	c.mount++
	c.epoch++
	c.reset()
	c.mu.Unlock()
	c.nav.RedirectToLogin()
	c.notify()
}

// Search applies query to the filtered set once the debounce period has
// passed without a newer query.
func (c *Controller[T]) Search(query string) {
	c.debounce.Trigger(func(seq uint64) {
		c.mu.Lock()
		if !c.debounce.IsCurrent(seq) {
			c.mu.Unlock()
			return
		}
		c.query = query
		c.filtered = search.Filter(c.all, query, c.adapter.SearchText)
		c.mu.Unlock()
		c.notify()
	})
}

// OpenEdit opens the edit modal with a draft copy of record id.
func (c *Controller[T]) OpenEdit(id string) error {
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	rec, err := c.openable(id)
	if err != nil {
		return err
	}
	c.epoch++
	c.modal = ModalEdit
	c.draft = Draft[T]{Record: rec}
	c.modalErr = nil
	return nil
}

// OpenDelete opens the delete confirmation for record id.
func (c *Controller[T]) OpenDelete(id string) error {
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	rec, err := c.openable(id)
	if err != nil {
		return err
	}
	c.epoch++
	c.modal = ModalDelete
	c.target = rec
	c.modalErr = nil
	return nil
}

// openable finds record id for a new modal. c.mu must be held.
func (c *Controller[T]) openable(id string) (T, error) {
	var zero T
	if c.state != StateReady {
		return zero, ErrNotReady
	}
	if c.modal != ModalNone {
		return zero, ErrModalOpen
	}
	for _, rec := range c.all {
		if c.adapter.ID(rec) == id {
			return rec, nil
		}
	}
	return zero, fmt.Errorf("%s %q: %w", c.adapter.Entity(), id, ErrUnknownRecord)
}

// SetField changes one draft field. The list is not touched.
func (c *Controller[T]) SetField(name, value string) error {
	f, err := lookup(c.adapter.Fields(), name)
	if err != nil {
		return err
	}
	if err := f.check(value); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	if c.modal != ModalEdit {
		return ErrNoModal
	}
	return c.adapter.Set(&c.draft.Record, f.Name, value)
}

// Attach sets the image uploaded with the draft.
func (c *Controller[T]) Attach(img *models.ImageUpload) error {
	hasFile := false
	for _, f := range c.adapter.Fields() {
		if f.Input == InputFile {
			hasFile = true
		}
	}
	if !hasFile {
		return ErrNoAttachment
	}
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	if c.modal != ModalEdit {
		return ErrNoModal
	}
	c.draft.Image = img
	return nil
}

// SubmitEdit writes the draft. On success the returned record is patched
// into both sets, the modal closes and the full set is refetched with a new
// request; the refetch result replaces the patch. On failure the modal stays open with
// the error inline.
func (c *Controller[T]) SubmitEdit(ctx context.Context) error {
	c.mu.Lock()
	if c.modal != ModalEdit {
		c.mu.Unlock()
		return ErrNoModal
	}
	if c.updating {
		c.mu.Unlock()
		return ErrBusy
	}
	c.updating = true
	epoch, mount := c.epoch, c.mount
	draft := c.draft
	c.modalErr = nil
	c.mu.Unlock()
	c.notify()

	id := c.adapter.ID(draft.Record)
	echo, err := c.adapter.Update(ctx, id, draft)
	patch := true
	if err != nil && api.Classify(err) == api.KindMalformed {
		c.log.Warn("update succeeded with an unreadable echo", zap.String("id", id), zap.Error(err))
		patch, err = false, nil
	}

	c.mu.Lock()
	c.updating = false
	if err != nil {
		if api.Classify(err) == api.KindUnauthorized {
			c.mu.Unlock()
			c.unauthorized(err)
			return err
		}
		if epoch == c.epoch {
			c.modalErr = err
		}
		c.mu.Unlock()
		c.notify()
		return err
	}
	if mount == c.mount && patch {
		c.all = c.replace(c.all, id, echo)
		c.filtered = c.replace(c.filtered, id, echo)
	}
	if epoch == c.epoch {
		c.closeModal()
	}
	c.mu.Unlock()
	c.notify()

	return c.refresh(ctx, true)
}

// ConfirmDelete deletes the record of the delete modal. On success the
// modal closes and the full set is refetched.
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.modal != ModalDelete {
		c.mu.Unlock()
		return ErrNoModal
	}
	if c.deleting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.deleting = true
	epoch := c.epoch
	id := c.adapter.ID(c.target)
	c.modalErr = nil
	c.mu.Unlock()
	c.notify()

	err := c.adapter.Delete(ctx, id)

	c.mu.Lock()
	c.deleting = false
	if err != nil {
		if api.Classify(err) == api.KindUnauthorized {
			c.mu.Unlock()
			c.unauthorized(err)
			return err
		}
		if epoch == c.epoch {
			c.modalErr = err
		}
		c.mu.Unlock()
		c.notify()
		return err
	}
	if epoch == c.epoch {
		c.closeModal()
	}
	c.mu.Unlock()
	c.notify()

	return c.refresh(ctx, true)
}

// Cancel closes whichever modal is open without calling the API.
func (c *Controller[T]) Cancel() {
	c.mu.Lock()
	c.closeModal()
	c.mu.Unlock()
	c.notify()
}

// closeModal discards the draft and target. c.mu must be held.
func (c *Controller[T]) closeModal() {
	var zero T
	if c.modal != ModalNone {
		c.epoch++
	}
	c.modal = ModalNone
	c.draft = Draft[T]{}
	c.target = zero
	c.modalErr = nil
}

// replace returns records with the entry for id swapped for rec.
func (c *Controller[T]) replace(records []T, id string, rec T) []T {
	out := make([]T, len(records))
	for i, r := range records {
		if c.adapter.ID(r) == id {
			r = rec
		}
		out[i] = r
	}
	return out
}

func (c *Controller[T]) notify() {
	if c.observer != nil {
		c.observer()
	}
}
