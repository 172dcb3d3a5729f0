package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/model"
)

// Feed is a live per-day view over the repository. Every subscription gets
// an initial delivery, a fresh delivery after each write touching its day
// and, with a poll interval, a delivery whenever the stored content changed
// underneath (another process writing the same database).
type Feed struct {
	repo *SQLiteRepository
	poll time.Duration
	log  *slog.Logger
}

type FeedOption func(*Feed)

func WithPollInterval(d time.Duration) FeedOption {
	return func(f *Feed) { f.poll = d }
}

func WithFeedLogger(log *slog.Logger) FeedOption {
	return func(f *Feed) {
		if log != nil {
			f.log = log
		}
	}
}

func NewFeed(repo *SQLiteRepository, opts ...FeedOption) *Feed {
	f := &Feed{repo: repo, log: logger.Discard()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe starts delivering day to fn on a dedicated goroutine. Deliveries
// for one subscription never overlap. Unsubscribe does not wait for an
// in-flight delivery to return.
func (f *Feed) Subscribe(day model.Day, fn func([]model.Task, error)) (func(), error) {
	if !day.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDay, day)
	}
	ctx, cancel := context.WithCancel(context.Background())
	kick := make(chan struct{}, 1)
	stopWatch := f.repo.Watch(func(changed string) {
		if changed != string(day) {
			return
		}
		select {
		case kick <- struct{}{}:
		default:
		}
	})

	go f.run(ctx, day, kick, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			stopWatch()
			cancel()
		})
	}, nil
}

func (f *Feed) run(ctx context.Context, day model.Day, kick <-chan struct{}, fn func([]model.Task, error)) {
	var tick <-chan time.Time
	if f.poll > 0 {
		ticker := time.NewTicker(f.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	var last [sha256.Size]byte
	deliver := func(force bool) {
		tasks, err := f.repo.LoadDay(ctx, day)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.log.Warn("feed load failed", "day", day, "error", err)
			fn(nil, fmt.Errorf("storage: load %s: %w", day, err))
			return
		}
		sum := fingerprint(tasks)
		if !force && sum == last {
			return
		}
		last = sum
		fn(tasks, nil)
	}

	deliver(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			deliver(true)
		case <-tick:
			deliver(false)
		}
	}
}

func fingerprint(tasks []model.Task) [sha256.Size]byte {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(raw)
}
