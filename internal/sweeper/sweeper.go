// Package sweeper promotes due SCHEDULED articles to PUBLISHED on a timer.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/workflow"
)

// Sweeper periodically scans for SCHEDULED articles whose publish instant has
// elapsed and releases them through the same publish_now transition human
// actors use, attributed to the system actor. Per-article failures are logged
// and skipped; the compare-and-swap in the store makes overlapping sweeps and
// human publishes resolve to a single winner.
type Sweeper struct {
	cfg    *config.Config
	store  *articles.Store
	engine *workflow.Engine
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	lastSweep time.Time
	lastErr   error
}

// New constructs a sweeper over the given engine.
func New(cfg *config.Config, store *articles.Store, engine *workflow.Engine, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "sweeper"),
	}
}

// Start begins background sweeping.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("sweeper already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop terminates background sweeping and waits for completion.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the background loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastSweep returns the completion time of the most recent sweep and any
// error it recorded.
func (s *Sweeper) LastSweep() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSweep, s.lastErr
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.Workflow.SweepInterval) * time.Second
	retry := time.Duration(s.cfg.Workflow.ErrorRetryInterval) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, err := s.RunOnce(ctx)
		wait := interval
		if err != nil && !errors.Is(err, context.Canceled) {
			wait = retry
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// RunOnce performs a single sweep and returns the number of articles
// published. Only the due-article query itself can fail; per-article publish
// errors are logged and skipped so one bad article never aborts the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := s.store.DueScheduled(ctx, now)
	if err != nil {
		s.recordSweep(now, err)
		s.logger.Error("due article query failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "sweep_query_failed"),
		)
		return 0, err
	}
	if len(due) == 0 {
		s.recordSweep(now, nil)
		return 0, nil
	}

	actor := articles.SystemActor()
	published := 0
	for _, article := range due {
		if ctx.Err() != nil {
			s.recordSweep(now, ctx.Err())
			return published, ctx.Err()
		}
		if _, err := s.engine.PublishNow(ctx, actor, article.ID); err != nil {
			// A concurrent manual transition racing ahead is expected; it
			// surfaces as InvalidTransition and the article is skipped.
			s.logger.Warn("due article skipped",
				logging.Int64(logging.FieldArticleID, article.ID),
				logging.String("kind", string(articles.KindOf(err))),
				logging.Error(err),
			)
			continue
		}
		published++
		s.logger.Info("scheduled article published",
			logging.Int64(logging.FieldArticleID, article.ID),
			logging.String("slug", article.Slug),
		)
	}

	s.recordSweep(now, nil)
	return published, nil
}

func (s *Sweeper) recordSweep(at time.Time, err error) {
	s.mu.Lock()
	s.lastSweep = at
	s.lastErr = err
	s.mu.Unlock()
}
