package torrent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu sync.Mutex

	metaAt  time.Time // zero means metadata never arrives
	md      *Metadata
	statsAt time.Time // zero means the swarm never reports
	ps      PeerStats

	metaPolls  int
	statsPolls int
}

func (h *fakeHandle) InfoHash() string {
	if h.md != nil {
		return h.md.InfoHash
	}
	return "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
}

func (h *fakeHandle) HasMetadata() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metaPolls++
	return !h.metaAt.IsZero() && !time.Now().Before(h.metaAt)
}

func (h *fakeHandle) Metadata() (*Metadata, error) {
	return h.md, nil
}

func (h *fakeHandle) Stats() (PeerStats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statsPolls++
	ok := !h.statsAt.IsZero() && !time.Now().Before(h.statsAt)
	return h.ps, ok
}

func testMetadata(t *testing.T) *Metadata {
	t.Helper()

	info := metainfo.Info{
		Name:        "test",
		PieceLength: 262144,
		Length:      1048576,
		Pieces:      make([]byte, 80),
	}

	ib, err := bencode.Marshal(info)
	require.NoError(t, err)

	mi := metainfo.MetaInfo{
		InfoBytes:    ib,
		AnnounceList: metainfo.AnnounceList{{"udp://tracker.example:1337/announce"}},
	}

	md, err := MetadataFromMetaInfo(mi)
	require.NoError(t, err)
	return md
}

func testRetriever() *Retriever {
	r := NewRetriever()
	r.PollInterval = 10 * time.Millisecond
	return r
}

func TestAwaitMetadataResolves(t *testing.T) {
	h := &fakeHandle{
		metaAt: time.Now().Add(50 * time.Millisecond),
		md:     testMetadata(t),
	}

	md, elapsed, err := testRetriever().AwaitMetadata(context.Background(), h, 500*time.Millisecond, 1)
	require.NoError(t, err)
	require.Equal(t, "test", md.Name)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestAwaitMetadataIdempotentAfterSuccess(t *testing.T) {
	h := &fakeHandle{
		metaAt: time.Now().Add(-time.Second),
		md:     testMetadata(t),
	}

	r := testRetriever()
	first, _, err := r.AwaitMetadata(context.Background(), h, 100*time.Millisecond, 1)
	require.NoError(t, err)
	second, _, err := r.AwaitMetadata(context.Background(), h, 100*time.Millisecond, 1)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestAwaitMetadataTimeoutRetries(t *testing.T) {
	h := &fakeHandle{} // never resolves

	start := time.Now()
	_, elapsed, err := testRetriever().AwaitMetadata(context.Background(), h, 80*time.Millisecond, 2)
	require.ErrorIs(t, err, ErrMetadataTimeout)

	// Two full rounds of the same budget.
	require.GreaterOrEqual(t, time.Since(start), 160*time.Millisecond)
	require.GreaterOrEqual(t, elapsed, 160*time.Millisecond)
}

func TestAwaitMetadataContextCancel(t *testing.T) {
	h := &fakeHandle{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, _, err := testRetriever().AwaitMetadata(ctx, h, time.Minute, 3)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, ErrMetadataTimeout))
}

func TestAwaitPeerStatsResolves(t *testing.T) {
	h := &fakeHandle{
		statsAt: time.Now().Add(30 * time.Millisecond),
		ps:      PeerStats{Seeders: 3, Leechers: 1, TotalWanted: 1048576},
	}

	ps, err := testRetriever().AwaitPeerStats(context.Background(), h, 500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, ps.Seeders)
	require.Equal(t, 1, ps.Leechers)
	require.EqualValues(t, 1048576, ps.TotalWanted)
}

func TestAwaitPeerStatsTimeout(t *testing.T) {
	h := &fakeHandle{} // swarm never reports

	_, err := testRetriever().AwaitPeerStats(context.Background(), h, 60*time.Millisecond)
	require.ErrorIs(t, err, ErrPeerStatsTimeout)
}
