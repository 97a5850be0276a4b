package querycache

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
)

// Poller periodically re-fetches a high-churn resource (the credit balance)
// so its cache entry stays warm between mutations. Freshness is pull-based;
// there is no server push.
type Poller struct {
	key      Key
	interval time.Duration
	refresh  func(ctx context.Context) error
	log      logger.Logger
}

func NewPoller(key Key, interval time.Duration, refresh func(ctx context.Context) error) *Poller {
	return &Poller{
		key:      key,
		interval: interval,
		refresh:  refresh,
		log:      logger.New(),
	}
}

// Run refreshes on a fixed interval until ctx is canceled. Refresh errors are
// logged and the loop keeps going; the next tick retries.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := p.refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Err(err).Warn("poll refresh error", logger.Data{"key": p.key.String()})
			}
			timer.Reset(p.interval)
		}
	}
}
