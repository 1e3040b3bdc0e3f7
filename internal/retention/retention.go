// Package retention runs the scheduled background sweep that keeps the
// record store inside its configured bounds: total record count and an
// optional maximum age. The ingestion pipeline already evicts on insert;
// the sweep catches limit reductions and age expiry between inserts.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"msgvault/pkg/config"
	"msgvault/pkg/ingest"
	"msgvault/pkg/logger"
	"msgvault/pkg/snowflake"
	"msgvault/pkg/store"
)

// Sweeper owns one scheduled retention pass.
type Sweeper struct {
	st   *store.Store
	atts ingest.AttachmentCache
	cfg  config.RetentionConfig
	// limit mirrors the pipeline's message limit; 0 = unlimited.
	limit int
}

// New builds a sweeper over the given store and attachment cache.
func New(st *store.Store, atts ingest.AttachmentCache, cfg config.RetentionConfig, messageLimit int) *Sweeper {
	return &Sweeper{st: st, atts: atts, cfg: cfg, limit: messageLimit}
}

// Start launches the scheduler if retention is enabled. Returns a cancel
// func; a disabled sweeper returns a no-op cancel.
func (s *Sweeper) Start(ctx context.Context) (context.CancelFunc, error) {
	if !s.cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	cronExpr := s.cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", s.cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", s.cfg.Cron)
	}
	logger.Info("retention_enabled", "cron", cronExpr, "max_age", s.cfg.MaxAge.Duration().String(), "limit", s.limit)
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it.
func (s *Sweeper) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-time.After(time.Until(next)):
			if err := s.RunOnce(); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep: age expiry first, then count limit.
func (s *Sweeper) RunOnce() error {
	removed := 0
	if maxAge := s.cfg.MaxAge.Duration(); maxAge > 0 {
		n, err := s.expireOlderThan(time.Now().UTC().Add(-maxAge))
		if err != nil {
			return err
		}
		removed += n
	}
	if s.limit > 0 {
		n, err := s.enforceCount()
		if err != nil {
			return err
		}
		removed += n
	}
	if removed > 0 {
		logger.Info("retention_swept", "removed", removed)
	}
	return nil
}

func (s *Sweeper) expireOlderThan(cutoff time.Time) (int, error) {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	removed := 0
	for {
		recs, err := s.st.SortedByTimestamp(false, batch)
		if err != nil {
			return removed, err
		}
		n := 0
		for _, rec := range recs {
			ms, err := snowflake.Millis(rec.MessageID)
			if err != nil || time.UnixMilli(ms).After(cutoff) {
				continue
			}
			if err := s.remove(rec.MessageID); err != nil {
				return removed, err
			}
			removed++
			n++
		}
		if n < batch {
			return removed, nil
		}
	}
}

func (s *Sweeper) enforceCount() (int, error) {
	count, err := s.st.Count()
	if err != nil {
		return 0, err
	}
	removed := 0
	for count > s.limit {
		id, err := s.st.OldestID()
		if err != nil {
			return removed, err
		}
		if id == "" {
			return removed, nil
		}
		if err := s.remove(id); err != nil {
			return removed, err
		}
		removed++
		count--
	}
	return removed, nil
}

func (s *Sweeper) remove(id string) error {
	if rec, err := s.st.Get(id); err == nil && s.atts != nil && rec.Message != nil {
		s.atts.Delete(rec.Message)
	}
	return s.st.Delete(id)
}
