package torrent

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/anacrolix/dht/v2"
	tlog "github.com/anacrolix/log"
	"github.com/anacrolix/missinggo/v2/filecache"
	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/magnetconv/magnetconv/config"
	mlog "github.com/magnetconv/magnetconv/log"
)

type ProxyType int

const (
	ProxyNone ProxyType = iota
	ProxyHTTP
	ProxyHTTPAuth
)

// SessionConfig governs the network behavior of a single conversion session.
// It is built fresh per conversion and never shared.
type SessionConfig struct {
	ListenPort       int
	PublicIP         string
	DisableDHT       bool
	DisableUTP       bool
	DisableTCP       bool
	DisableIPv6      bool
	NoPortForwarding bool
	BootstrapNodes   []string
	ScratchDir       string

	DownloadLimitMbit float64
	UploadLimitMbit   float64

	ProxyHost     string
	ProxyPort     int
	ProxyUsername string
	ProxyPassword string
	ProxyType     ProxyType
	AnonymousMode bool
}

// NewSessionConfig maps the recognized configuration options onto one
// session's tuning parameters.
func NewSessionConfig(tc *config.TorrentGlobal, cc *config.Convert) (*SessionConfig, error) {
	sc := &SessionConfig{
		ListenPort:        tc.ListenPort,
		PublicIP:          tc.IP,
		DisableDHT:        cc.UseDHT != nil && !*cc.UseDHT,
		DisableUTP:        tc.DisableUTP,
		DisableTCP:        tc.DisableTCP,
		DisableIPv6:       tc.DisableIPv6,
		NoPortForwarding:  tc.NoPortForwarding,
		BootstrapNodes:    tc.BootstrapNodes,
		ScratchDir:        filepath.Join(tc.ScratchFolder, "cache"),
		DownloadLimitMbit: tc.DownloadLimitMbit,
		UploadLimitMbit:   tc.UploadLimitMbit,
	}

	if cc.HTTPProxy != "" {
		if err := sc.ApplyHTTPProxy(cc.HTTPProxy); err != nil {
			return nil, err
		}
	}

	return sc, nil
}

// ApplyHTTPProxy parses an http proxy URI into the proxy fields. Credentials
// in the URI select the authenticated proxy type and force anonymous mode.
func (sc *SessionConfig) ApplyHTTPProxy(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid http proxy %q: %w", uri, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid http proxy %q: missing host", uri)
	}

	sc.ProxyHost = u.Hostname()
	if p := u.Port(); p != "" {
		sc.ProxyPort, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid http proxy port %q: %w", p, err)
		}
	}

	sc.ProxyType = ProxyHTTP
	if u.User != nil {
		sc.ProxyUsername = u.User.Username()
		sc.ProxyPassword, _ = u.User.Password()
		if sc.ProxyUsername != "" && sc.ProxyPassword != "" {
			sc.ProxyType = ProxyHTTPAuth
			sc.AnonymousMode = true
		}
	}

	return nil
}

func (sc *SessionConfig) proxyURL() *url.URL {
	u := &url.URL{Scheme: "http", Host: sc.ProxyHost}
	if sc.ProxyPort > 0 {
		u.Host = net.JoinHostPort(sc.ProxyHost, strconv.Itoa(sc.ProxyPort))
	}
	if sc.ProxyType == ProxyHTTPAuth {
		u.User = url.UserPassword(sc.ProxyUsername, sc.ProxyPassword)
	}
	return u
}

// Handle is a live torrent registration inside a session. The network stack
// updates its status asynchronously; callers observe it by polling.
type Handle interface {
	InfoHash() string
	HasMetadata() bool
	// Metadata is valid once HasMetadata reports true. Repeated calls
	// after that return the same result.
	Metadata() (*Metadata, error)
	// Stats reports a swarm snapshot and whether the swarm has been
	// heard from at all yet.
	Stats() (PeerStats, bool)
}

// Session owns the network-facing engine instance for exactly one conversion
// attempt.
type Session struct {
	c *torrent.Client
}

// Open starts a torrent client with the given tuning parameters. Failure to
// bind the listening interfaces is reported as ErrSessionStart.
func Open(sc *SessionConfig) (*Session, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.Seed = false
	cfg.NoUpload = true
	cfg.DisableAggressiveUpload = true
	cfg.NoDHT = sc.DisableDHT
	cfg.DisableUTP = sc.DisableUTP
	cfg.DisableTCP = sc.DisableTCP
	cfg.DisableIPv6 = sc.DisableIPv6
	cfg.NoDefaultPortForwarding = sc.NoPortForwarding
	if sc.ListenPort > 0 {
		cfg.ListenPort = sc.ListenPort
	} else {
		// Ephemeral port; concurrent sessions must not collide.
		cfg.ListenPort = 0
	}

	if sc.PublicIP != "" {
		ip := net.ParseIP(sc.PublicIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid provided IP: %q", sc.PublicIP)
		}
		cfg.PublicIp4 = ip
	}

	if sc.ProxyType != ProxyNone {
		cfg.HTTPProxy = http.ProxyURL(sc.proxyURL())
	}

	if len(sc.BootstrapNodes) > 0 {
		nodes := sc.BootstrapNodes
		cfg.ConfigureAnacrolixDhtServer = func(dcfg *dht.ServerConfig) {
			dcfg.StartingNodes = func() ([]dht.Addr, error) {
				return resolveBootstrapNodes(nodes)
			}
		}
	}

	if sc.ScratchDir != "" {
		fc, err := filecache.NewCache(sc.ScratchDir)
		if err != nil {
			return nil, fmt.Errorf("error creating scratch cache: %w", err)
		}
		cfg.DefaultStorage = storage.NewResourcePieces(fc.AsResourceProvider())
	}

	cfg.DownloadRateLimiter = newLimiter(sc.DownloadLimitMbit)
	cfg.UploadRateLimiter = newLimiter(sc.UploadLimitMbit)

	l := log.Logger.With().Str("component", "torrent-session").Logger()
	tl := tlog.NewLogger()
	tl.SetHandlers(&mlog.Torrent{L: l})
	cfg.Logger = tl

	c, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	return &Session{c: c}, nil
}

// Register parses the magnet URI, merges in the supplied tracker list as an
// extra announce tier and adds the torrent to the session. No content bytes
// are ever requested, so the handle stays in metadata-exchange mode.
func (s *Session) Register(magnetURI string, trackers []string) (Handle, error) {
	spec, err := torrent.TorrentSpecFromMagnetUri(magnetURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMagnetParse, err)
	}

	if len(trackers) > 0 {
		spec.Trackers = append(spec.Trackers, trackers)
	}

	t, _, err := s.c.AddTorrentSpec(spec)
	if err != nil {
		return nil, err
	}

	return &liveHandle{t: t}, nil
}

// AnnounceDHT requests an immediate announce for the handle instead of
// waiting for the periodic timer. No-op when DHT is disabled.
func (s *Session) AnnounceDHT(h Handle) {
	lh, ok := h.(*liveHandle)
	if !ok {
		return
	}

	for _, ds := range s.c.DhtServers() {
		a, err := ds.Announce(lh.t.InfoHash(), 0, true)
		if err != nil {
			log.Debug().Err(err).Str("hash", lh.InfoHash()).Msg("dht announce failed")
			continue
		}
		go func() {
			defer a.Close()
			for range a.Peers() {
			}
		}()
	}
}

// Drop deregisters the handle, discarding any partial state.
func (s *Session) Drop(h Handle) {
	if lh, ok := h.(*liveHandle); ok {
		lh.t.Drop()
	}
}

// Close tears down the session. Every Open must be paired with a Close on
// all exit paths.
func (s *Session) Close() error {
	return errors.Join(s.c.Close()...)
}

type liveHandle struct {
	t *torrent.Torrent
}

func (h *liveHandle) InfoHash() string { return h.t.InfoHash().HexString() }

func (h *liveHandle) HasMetadata() bool { return h.t.Info() != nil }

func (h *liveHandle) Metadata() (*Metadata, error) { return metadataFromTorrent(h.t) }

func (h *liveHandle) Stats() (PeerStats, bool) {
	st := h.t.Stats()

	leechers := st.ActivePeers - st.ConnectedSeeders
	if leechers < 0 {
		leechers = 0
	}

	ps := PeerStats{
		Seeders:  st.ConnectedSeeders,
		Leechers: leechers,
	}
	if h.t.Info() != nil {
		ps.TotalWanted = h.t.Length()
	}

	// The swarm has reported in once any peer has been seen.
	return ps, st.TotalPeers > 0 || st.ConnectedSeeders > 0
}

func newLimiter(mbit float64) *rate.Limiter {
	if mbit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	bps := rate.Limit(mbit * 125_000)
	return rate.NewLimiter(bps, int(bps))
}

func resolveBootstrapNodes(nodes []string) ([]dht.Addr, error) {
	var out []dht.Addr
	for _, n := range nodes {
		ua, err := net.ResolveUDPAddr("udp", n)
		if err != nil {
			log.Debug().Err(err).Str("node", n).Msg("skipping unresolvable bootstrap node")
			continue
		}
		out = append(out, dht.NewAddr(ua))
	}
	return out, nil
}
