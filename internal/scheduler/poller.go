package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/status"
)

const (
	TagMOTD  = "motd"
	TagPing  = "ping"
	TagQuery = "query"

	// DefaultConcurrency caps probes in flight during one round.
	DefaultConcurrency = 8
)

// Target is the registry surface the poller reads from and writes to.
type Target interface {
	IDs() []string
	Get(id string) (domain.Server, bool)
	WriteQuery(ctx context.Context, id, tag string, payload domain.Payload) bool
}

// Probes performs the network calls. Zero fields fall back to the status package.
type Probes struct {
	MOTD  func(ctx context.Context, host string, port int) (status.MOTD, error)
	Query func(ctx context.Context, host string, port int) (status.Basic, error)
}

// StatusPoller periodically probes every registered server and caches the
// results under the motd, ping and query tags.
type StatusPoller struct {
	target        Target
	probes        Probes
	logger        logger.Logger
	interval      time.Duration
	timeout       time.Duration
	concurrency   int
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewStatusPoller creates a poller. manualTrigger may be nil.
func NewStatusPoller(
	target Target,
	log logger.Logger,
	interval time.Duration,
	timeout time.Duration,
	manualTrigger chan struct{},
) *StatusPoller {
	return &StatusPoller{
		target:        target,
		probes:        Probes{MOTD: status.PingMOTD, Query: status.QueryBasic},
		logger:        log,
		interval:      interval,
		timeout:       timeout,
		concurrency:   DefaultConcurrency,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// WithProbes replaces the network probes.
func (p *StatusPoller) WithProbes(probes Probes) *StatusPoller {
	if probes.MOTD != nil {
		p.probes.MOTD = probes.MOTD
	}
	if probes.Query != nil {
		p.probes.Query = probes.Query
	}
	return p
}

// Start runs one round immediately, then one every interval until Stop or
// ctx is done.
func (p *StatusPoller) Start(ctx context.Context) error {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Poll(ctx)
			case <-p.manualTrigger:
				p.logger.Info("manual status poll triggered")
				p.Poll(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the poller.
func (p *StatusPoller) Stop() {
	close(p.stopCh)
}

// Poll probes every server once and returns the number of cache writes
// that were applied.
func (p *StatusPoller) Poll(ctx context.Context) int {
	start := time.Now()
	ids := p.target.IDs()

	written := make([]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			written[i] = p.pollOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range written {
		total += n
	}
	p.logger.Debug("status poll completed",
		logger.Int("servers", len(ids)),
		logger.Int("writes", total),
		logger.Duration("took", time.Since(start)))
	return total
}

func (p *StatusPoller) pollOne(ctx context.Context, id string) int {
	srv, ok := p.target.Get(id)
	if !ok {
		return 0
	}
	log := p.logger.With(logger.String("id", id), logger.String("host", srv.Host))
	n := 0

	if srv.MotdTask {
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		m, err := p.probes.MOTD(pctx, srv.Host, srv.Port)
		cancel()
		if err != nil {
			log.Debug("motd probe failed", logger.Error(err))
		} else {
			n += p.write(ctx, id, TagMOTD, domain.Structured(m.Fields()))
			n += p.write(ctx, id, TagPing, domain.Scalar(m.Latency.Milliseconds()))
		}
	}

	if srv.QueryTask {
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		b, err := p.probes.Query(pctx, srv.Host, srv.Port)
		cancel()
		if err != nil {
			log.Debug("query probe failed", logger.Error(err))
		} else {
			n += p.write(ctx, id, TagQuery, domain.Structured(b.Fields()))
		}
	}
	return n
}

func (p *StatusPoller) write(ctx context.Context, id, tag string, payload domain.Payload) int {
	if p.target.WriteQuery(ctx, id, tag, payload) {
		return 1
	}
	return 0
}
