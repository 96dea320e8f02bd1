package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shopmarcas/smallauctions/utils"
)

// DefaultSpec runs the sweep once a minute
const DefaultSpec = "@every 1m"

// ExpiredAuctionCloser transitions auctions whose bidding window has passed
type ExpiredAuctionCloser interface {
	CloseExpiredAuctions(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically ends expired auctions
type Sweeper struct {
	cron   *cron.Cron
	spec   string
	closer ExpiredAuctionCloser
	clock  func() time.Time

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper. An empty spec uses DefaultSpec and a nil clock uses time.Now.
func NewSweeper(closer ExpiredAuctionCloser, spec string, clock func() time.Time) *Sweeper {
	if spec == "" {
		spec = DefaultSpec
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		cron:   cron.New(),
		spec:   spec,
		closer: closer,
		clock:  clock,
	}
}

// Start registers the sweep job and starts the cron runner
func (s *Sweeper) Start(ctx context.Context) error {
	utils.Info("Starting auction sweeper", map[string]any{"spec": s.spec})

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for a sweep in progress to finish
func (s *Sweeper) Stop() {
	utils.Info("Stopping auction sweeper", nil)
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep. Overlapping runs are skipped.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		utils.Debug("Sweep already running, skipping", nil)
		return 0
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ended, err := s.closer.CloseExpiredAuctions(ctx, s.clock())
	if err != nil {
		utils.Error("Failed to close expired auctions", map[string]any{"error": err.Error()})
		return 0
	}
	if ended > 0 {
		utils.Info("Expired auctions ended", map[string]any{"count": ended})
	}
	return ended
}
