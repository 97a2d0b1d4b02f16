package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// Persister binds a store to a backend.
type Persister struct {
	store    *store.Store
	backend  Backend
	logger   *slog.Logger
	debounce time.Duration

	// storeMu serializes store access between callers of Do and the
	// auto-load goroutine.
	storeMu sync.Mutex
	loading atomic.Bool

	mu        sync.Mutex
	lastHash  string
	stats     Stats
	closed    bool
	autoSave  string
	saveCtx   context.Context
	saveTimer *time.Timer
	pending   *ir.Content
	stopLoad  context.CancelFunc
}

// Stats counts Persister activity.
type Stats struct {
	Loads        int
	Saves        int
	SkippedSaves int
	Errors       int
}

// Option configures a Persister.
type Option func(*Persister)

// WithDebounce delays auto-saves until no transaction has finished for d.
// Zero saves synchronously at the end of every transaction.
func WithDebounce(d time.Duration) Option {
	return func(p *Persister) {
		p.debounce = d
	}
}

// WithLogger sets the logger used for auto-save and auto-load failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) {
		p.logger = logger
	}
}

// New creates a Persister for st over backend.
func New(st *store.Store, backend Backend, opts ...Option) *Persister {
	p := &Persister{
		store:   st,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the bound store.
func (p *Persister) Store() *store.Store {
	return p.store
}

// Backend returns the bound backend.
func (p *Persister) Backend() Backend {
	return p.backend
}

// Do runs fn with exclusive access to the store.
func (p *Persister) Do(fn func(st *store.Store)) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	fn(p.store)
}

// Load replaces the store's content with the saved content. It reports
// false when the backend holds nothing yet, leaving the store unchanged.
func (p *Persister) Load(ctx context.Context) (bool, error) {
	return p.load(ctx, true)
}

// load reads the backend and applies it. Without force, content whose hash
// matches the last load or save is not reapplied.
func (p *Persister) load(ctx context.Context, force bool) (bool, error) {
	if err := p.checkOpen(); err != nil {
		return false, err
	}
	content, found, err := p.backend.Read(ctx)
	if err != nil {
		p.countError()
		return false, wrapError(ErrCodeLoadFailed, p.backend.Name(), err)
	}
	if !found {
		return false, nil
	}

	hash, err := ir.ContentHash(content)
	if err != nil {
		p.countError()
		return false, newError(ErrCodeDecodeFailed, p.backend.Name(), err)
	}
	p.mu.Lock()
	same := hash == p.lastHash
	p.mu.Unlock()
	if same && !force {
		return true, nil
	}

	p.Do(func(st *store.Store) {
		p.loading.Store(true)
		defer p.loading.Store(false)
		st.SetContent(content)
		content = st.GetContent()
	})

	applied, err := ir.ContentHash(content)
	if err != nil {
		return true, newError(ErrCodeDecodeFailed, p.backend.Name(), err)
	}
	p.mu.Lock()
	p.lastHash = applied
	p.stats.Loads++
	p.mu.Unlock()
	p.logger.Debug("content loaded", "backend", p.backend.Name(), "hash", applied)
	return true, nil
}

// Save writes the store's content to the backend unless it is unchanged
// since the last load or save.
func (p *Persister) Save(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	var content ir.Content
	p.Do(func(st *store.Store) { content = st.GetContent() })
	return p.write(ctx, content)
}

func (p *Persister) write(ctx context.Context, content ir.Content) error {
	hash, err := ir.ContentHash(content)
	if err != nil {
		p.countError()
		return newError(ErrCodeSaveFailed, p.backend.Name(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if hash == p.lastHash {
		p.stats.SkippedSaves++
		return nil
	}
	if err := p.backend.Write(ctx, content); err != nil {
		p.stats.Errors++
		return wrapError(ErrCodeSaveFailed, p.backend.Name(), err)
	}
	p.lastHash = hash
	p.stats.Saves++
	p.logger.Debug("content saved", "backend", p.backend.Name(), "hash", hash)
	return nil
}

// StartAutoSave saves after every store transaction, or after the debounce
// interval when WithDebounce was given. Failures are logged. ctx is used
// for every save until StopAutoSave.
func (p *Persister) StartAutoSave(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.StopAutoSave()
	if err := p.Save(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.saveCtx = ctx
	p.mu.Unlock()
	id := p.store.AddDidFinishTransactionListener(func(st *store.Store) {
		if p.loading.Load() {
			return
		}
		p.scheduleSave(st.GetContent())
	})
	p.mu.Lock()
	p.autoSave = id
	p.mu.Unlock()
	return nil
}

func (p *Persister) scheduleSave(content ir.Content) {
	p.mu.Lock()
	ctx := p.saveCtx
	if p.debounce <= 0 {
		p.mu.Unlock()
		if err := p.write(ctx, content); err != nil {
			p.logger.Error("auto-save failed", "backend", p.backend.Name(), "error", err)
		}
		return
	}
	p.pending = &content
	if p.saveTimer == nil {
		p.saveTimer = time.AfterFunc(p.debounce, p.flushPending)
	} else {
		p.saveTimer.Reset(p.debounce)
	}
	p.mu.Unlock()
}

func (p *Persister) flushPending() {
	p.mu.Lock()
	content, ctx := p.pending, p.saveCtx
	p.pending = nil
	p.mu.Unlock()
	if content == nil {
		return
	}
	if err := p.write(ctx, *content); err != nil {
		p.logger.Error("auto-save failed", "backend", p.backend.Name(), "error", err)
	}
}

// StopAutoSave stops auto-saving. A debounced save still pending is
// written first.
func (p *Persister) StopAutoSave() {
	p.mu.Lock()
	id := p.autoSave
	p.autoSave = ""
	if p.saveTimer != nil {
		p.saveTimer.Stop()
		p.saveTimer = nil
	}
	p.mu.Unlock()
	if id == "" {
		return
	}
	p.store.DelListener(id)
	p.flushPending()
}

// IsAutoSaving reports whether auto-save is running.
func (p *Persister) IsAutoSaving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoSave != ""
}

// StartAutoLoad loads now and again whenever the backend reports a change.
// The backend must implement Watcher. Once started, access the store only
// through Do.
func (p *Persister) StartAutoLoad(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	watcher, ok := p.backend.(Watcher)
	if !ok {
		return newError(ErrCodeLoadFailed, p.backend.Name(), errNotWatcher)
	}
	p.StopAutoLoad()
	if _, err := p.Load(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	if err := watcher.Watch(watchCtx, func() {
		if _, err := p.load(watchCtx, false); err != nil && watchCtx.Err() == nil {
			p.logger.Error("auto-load failed", "backend", p.backend.Name(), "error", err)
		}
	}); err != nil {
		cancel()
		return newError(ErrCodeLoadFailed, p.backend.Name(), err)
	}
	p.mu.Lock()
	p.stopLoad = cancel
	p.mu.Unlock()
	return nil
}

// StopAutoLoad stops watching the backend.
func (p *Persister) StopAutoLoad() {
	p.mu.Lock()
	cancel := p.stopLoad
	p.stopLoad = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsAutoLoading reports whether auto-load is running.
func (p *Persister) IsAutoLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLoad != nil
}

// Stats returns a copy of the activity counters.
func (p *Persister) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close stops auto-save and auto-load and closes the backend.
func (p *Persister) Close() error {
	p.StopAutoSave()
	p.StopAutoLoad()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	if err := p.backend.Close(); err != nil {
		return wrapError(ErrCodeClosed, p.backend.Name(), err)
	}
	return nil
}

func (p *Persister) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return newError(ErrCodeClosed, p.backend.Name(), nil)
	}
	return nil
}

func (p *Persister) countError() {
	p.mu.Lock()
	p.stats.Errors++
	p.mu.Unlock()
}
