// Package store persists projects behind a read-through TTL cache.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/logging"
	"github.com/zash3dit/zashedit/internal/timeline"
)

type Option func(*Store)

// WithCache replaces the default five minute cache.
func WithCache(c *Cache) Option {
	return func(s *Store) { s.cache = c }
}

type Store struct {
	backend Backend
	cache   *Cache
	logger  *slog.Logger

	mu       sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

func New(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		logger:   logging.WithComponent(logging.OrDiscard(logger), "store"),
		watchers: make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewCache(DefaultCacheTTL, time.Now)
	}
	return s
}

func (s *Store) Cache() *Cache {
	return s.cache
}

// GetAll lists every project, most recently modified first.
func (s *Store) GetAll(ctx context.Context) ([]*timeline.Project, error) {
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to list projects", err)
	}
	return projects, nil
}

// Watch emits the full project list immediately and again after every
// change, until ctx is done. Changes that land while the previous list is
// still unread are coalesced into one emission.
func (s *Store) Watch(ctx context.Context) <-chan []*timeline.Project {
	out := make(chan []*timeline.Project)
	signal := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = signal
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		}()

		for {
			projects, err := s.GetAll(ctx)
			if err != nil {
				s.logger.Warn("watch reload failed", "error", err)
			} else {
				select {
				case out <- projects:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// GetByID serves fresh cache entries without touching the backend and
// reloads the project with its three child collections otherwise.
func (s *Store) GetByID(ctx context.Context, id int64) (*timeline.Project, error) {
	if p, ok := s.cache.Get(id); ok {
		return p, nil
	}

	gen := s.cache.Generation(id)
	p, err := s.backend.LoadProject(ctx, id)
	if err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to load project", err)
	}
	if p == nil {
		return nil, apperr.NotFound(apperr.StageStore, "project %d not found", id)
	}
	s.cache.Put(p, gen)
	return p, nil
}

// Insert writes a new project and its children in one transaction and
// returns it with every id assigned. The cache is not populated.
func (s *Store) Insert(ctx context.Context, p *timeline.Project) (*timeline.Project, error) {
	if p.ID != 0 {
		return nil, apperr.Invalid(apperr.StageStore, "new project must not carry an id (got %d)", p.ID)
	}
	if err := timeline.Validate(p); err != nil {
		return nil, apperr.WithStage(err, apperr.StageStore)
	}

	saved := p.Clone()
	if err := s.backend.InsertProject(ctx, saved); err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to insert project", err)
	}
	s.logger.Debug("project inserted", "project_id", saved.ID)
	s.notify()
	return saved, nil
}

// Update replaces the project row and all of its children in one
// transaction, then invalidates the cached entry.
func (s *Store) Update(ctx context.Context, p *timeline.Project) (*timeline.Project, error) {
	if err := timeline.Validate(p); err != nil {
		return nil, apperr.WithStage(err, apperr.StageStore)
	}

	saved := p.Clone()
	found, err := s.backend.UpdateProject(ctx, saved)
	s.cache.Invalidate(p.ID)
	if err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to update project", err)
	}
	if !found {
		return nil, apperr.NotFound(apperr.StageStore, "project %d not found", p.ID)
	}
	s.logger.Debug("project updated", "project_id", saved.ID)
	s.notify()
	return saved, nil
}

// Delete removes the project; its children go with it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	found, err := s.backend.DeleteProject(ctx, id)
	s.cache.Invalidate(id)
	if err != nil {
		return apperr.Storage(apperr.StageStore, "failed to delete project", err)
	}
	if !found {
		return apperr.NotFound(apperr.StageStore, "project %d not found", id)
	}
	s.logger.Debug("project deleted", "project_id", id)
	s.notify()
	return nil
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
