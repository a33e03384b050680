package torrent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = 250 * time.Millisecond

// Retriever turns the engine's asynchronous status updates into synchronous
// results via bounded polling. Busy-waiting with a fixed interval is fine
// here: one conversion polls one handle, bounded by the timeout.
type Retriever struct {
	// PollInterval is the sleep between status reads.
	PollInterval time.Duration

	log zerolog.Logger
}

func NewRetriever() *Retriever {
	return &Retriever{
		PollInterval: defaultPollInterval,
		log:          log.Logger.With().Str("component", "metadata-retriever").Logger(),
	}
}

// AwaitMetadata polls the handle until its metadata arrives or the timeout
// elapses, retrying whole timeout budgets up to attempts times. It returns
// the actual polling duration, not the configured budget.
func (r *Retriever) AwaitMetadata(ctx context.Context, h Handle, timeout time.Duration, attempts int) (*Metadata, time.Duration, error) {
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	for attempt := 1; attempt <= attempts; attempt++ {
		md, err := r.awaitMetadataOnce(ctx, h, timeout)
		if err == nil {
			elapsed := time.Since(start)
			r.log.Debug().
				Str("hash", h.InfoHash()).
				Dur("elapsed", elapsed).
				Msg("metadata resolved")
			return md, elapsed, nil
		}
		if !errors.Is(err, ErrMetadataTimeout) {
			return nil, time.Since(start), err
		}
		r.log.Warn().
			Str("hash", h.InfoHash()).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Dur("timeout", timeout).
			Msg("metadata polling round timed out")
	}

	return nil, time.Since(start), fmt.Errorf("%w after %d round(s) of %s", ErrMetadataTimeout, attempts, timeout)
}

func (r *Retriever) awaitMetadataOnce(ctx context.Context, h Handle, timeout time.Duration) (*Metadata, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		if h.HasMetadata() {
			return h.Metadata()
		}
		if !time.Now().Before(deadline) {
			return nil, ErrMetadataTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// AwaitPeerStats polls until the swarm reports peer counts or the timeout
// elapses. Must run only after metadata resolved; counts are meaningless
// before the handle is fully registered with the swarm.
func (r *Retriever) AwaitPeerStats(ctx context.Context, h Handle, timeout time.Duration) (PeerStats, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		if ps, ok := h.Stats(); ok {
			r.log.Debug().
				Str("hash", h.InfoHash()).
				Int("seeders", ps.Seeders).
				Int("leechers", ps.Leechers).
				Msg("peer stats resolved")
			return ps, nil
		}
		if !time.Now().Before(deadline) {
			return PeerStats{}, fmt.Errorf("%w after %s", ErrPeerStatsTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return PeerStats{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Retriever) interval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return defaultPollInterval
}
