package torrent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/magnetconv/magnetconv/config"
	"github.com/magnetconv/magnetconv/torrent/store"
)

// ConversionSession is the session surface the orchestrator drives. *Session
// is the live implementation; tests swap in a mock swarm.
type ConversionSession interface {
	Register(magnetURI string, trackers []string) (Handle, error)
	AnnounceDHT(Handle)
	Drop(Handle)
	Close() error
}

var _ ConversionSession = (*Session)(nil)

// Result pairs the written torrent file path with its summary.
type Result struct {
	Path    string
	Summary *Summary
}

// Entry is one pipeline item. Items carrying a magnet URL are rewritten to
// point at the converted torrent file; the rest pass through untouched.
type Entry struct {
	Title string
	URL   string
	// URLs lists alternative locations, most preferred first.
	URLs []string
	File string

	// ContentSize is in MiB, matching what download clients expect.
	ContentSize int64
	Seeders     int
	Leechers    int

	Failed     bool
	FailReason string
}

func NewEntry(title, url string) *Entry {
	return &Entry{Title: title, URL: url}
}

// Fail marks the entry permanently failed.
func (e *Entry) Fail(reason string) {
	e.Failed = true
	e.FailReason = reason
}

// IsMagnet reports whether the entry still points at a magnet URI.
func (e *Entry) IsMagnet() bool {
	return strings.HasPrefix(e.URL, "magnet:")
}

// Service sequences session, retriever and builder into one conversion per
// pipeline item and applies the failure policy.
type Service struct {
	log zerolog.Logger

	torrentConf *config.TorrentGlobal
	convertConf *config.Convert

	timeout time.Duration
	numTry  int
	force   bool
	useDHT  bool

	// trackers is fetched once at startup and read-only afterwards.
	trackers []string

	retr    *Retriever
	builder *Builder
	idx     *store.Store
	stats   *Stats

	open func(*SessionConfig) (ConversionSession, error)
}

func NewService(conf *config.Root, trackers []string, idx *store.Store, stats *Stats) (*Service, error) {
	timeout, err := time.ParseDuration(conf.Convert.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", conf.Convert.Timeout, err)
	}

	numTry := conf.Convert.NumTry
	if numTry < 1 {
		numTry = 1
	}

	if stats == nil {
		stats = NewStats()
	}

	return &Service{
		log:         log.Logger.With().Str("component", "convert-service").Logger(),
		torrentConf: conf.Torrent,
		convertConf: conf.Convert,
		timeout:     timeout,
		numTry:      numTry,
		force:       conf.Convert.Force,
		useDHT:      conf.Convert.UseDHT == nil || *conf.Convert.UseDHT,
		trackers:    trackers,
		retr:        NewRetriever(),
		builder:     NewBuilder(),
		idx:         idx,
		stats:       stats,
		open: func(sc *SessionConfig) (ConversionSession, error) {
			return Open(sc)
		},
	}, nil
}

// Force reports the configured failure policy.
func (s *Service) Force() bool { return s.force }

// Stats returns the shared conversion counters.
func (s *Service) Stats() *Stats { return s.stats }

// Index returns the conversion index, possibly nil.
func (s *Service) Index() *store.Store { return s.idx }

// Convert resolves one magnet URI into a torrent file under destDir. The
// session and handle are torn down on every exit path; any failure is
// reported as exactly one *ConversionError.
func (s *Service) Convert(ctx context.Context, magnetURI, destDir string) (res *Result, err error) {
	defer func() {
		if err != nil {
			var ce *ConversionError
			if !errors.As(err, &ce) {
				err = &ConversionError{Magnet: magnetURI, Err: err}
			}
		}
	}()

	m, err := metainfo.ParseMagnetUri(magnetURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMagnetParse, err)
	}
	hash := m.InfoHash.HexString()

	if cached := s.cachedResult(hash); cached != nil {
		s.log.Debug().Str("hash", hash).Str("path", cached.Path).Msg("reusing recorded conversion")
		s.stats.AddSkipped()
		return cached, nil
	}

	sc, err := NewSessionConfig(s.torrentConf, s.convertConf)
	if err != nil {
		return nil, err
	}

	sess, err := s.open(sc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.log.Debug().Err(cerr).Str("hash", hash).Msg("session close")
		}
	}()

	h, err := sess.Register(magnetURI, s.trackers)
	if err != nil {
		return nil, err
	}
	defer sess.Drop(h)

	if s.useDHT {
		sess.AnnounceDHT(h)
	}

	md, elapsed, err := s.retr.AwaitMetadata(ctx, h, s.timeout, s.numTry)
	if err != nil {
		s.markFailed(hash, err)
		return nil, err
	}

	ps, err := s.retr.AwaitPeerStats(ctx, h, s.timeout)
	if err != nil {
		s.markFailed(hash, err)
		return nil, err
	}

	tf, err := s.builder.Build(md)
	if err != nil {
		s.markFailed(hash, err)
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0744); err != nil {
		return nil, err
	}

	p := filepath.Join(destDir, tf.Name)
	if err := os.WriteFile(p, tf.Bytes, 0644); err != nil {
		return nil, err
	}
	s.log.Debug().Str("path", p).Msg("torrent file written")

	sum := Summarize(tf.Metadata, ps, magnetURI, elapsed)

	if s.idx != nil {
		b, merr := json.Marshal(sum)
		if merr == nil {
			merr = s.idx.MarkConverted(hash, p, b)
		}
		if merr != nil {
			s.log.Debug().Err(merr).Str("hash", hash).Msg("recording conversion")
		}
	}

	s.stats.AddConverted()
	return &Result{Path: p, Summary: sum}, nil
}

// ProcessEntries runs one conversion per magnet-bearing entry. Failures
// never abort sibling entries: the entry is either marked failed (force) or
// left untouched with its original magnet reference.
func (s *Service) ProcessEntries(ctx context.Context, entries []*Entry, destDir string) {
	for _, e := range entries {
		if !e.IsMagnet() {
			continue
		}
		if len(e.URLs) == 0 {
			e.URLs = []string{e.URL}
		}

		s.log.Info().Str("entry", e.Title).Msg("converting magnet uri to a torrent file")

		res, err := s.Convert(ctx, e.URL, destDir)
		if err != nil {
			s.log.Error().Err(err).Str("entry", e.Title).Msg("unable to convert magnet uri")
			s.stats.AddFailed()
			if s.force {
				e.Fail("magnet uri conversion failed")
			}
			continue
		}

		rewriteEntry(e, res)
	}
}

func rewriteEntry(e *Entry, res *Result) {
	p := res.Path
	// Windows paths need a leading separator before forming a file url.
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	e.URL = p
	e.File = p

	u := url.URL{Scheme: "file", Path: p}
	// Foremost candidate so a downstream fetch prefers the local file
	// over the original magnet.
	e.URLs = append([]string{u.String()}, e.URLs...)

	if e.ContentSize == 0 {
		e.ContentSize = res.Summary.TotalSize / (1 << 20)
	}
	e.Seeders = res.Summary.Seeders
	e.Leechers = res.Summary.Leechers
}

func (s *Service) cachedResult(hash string) *Result {
	if s.idx == nil {
		return nil
	}

	c, err := s.idx.Converted(hash)
	if err != nil || c == nil {
		return nil
	}
	if _, err := os.Stat(c.Path); err != nil {
		// file moved away, convert again
		return nil
	}

	sum := &Summary{}
	if err := json.Unmarshal(c.Summary, sum); err != nil {
		return nil
	}

	return &Result{Path: c.Path, Summary: sum}
}

func (s *Service) markFailed(hash string, err error) {
	if s.idx == nil {
		return
	}
	if serr := s.idx.MarkFailed(hash, err.Error()); serr != nil {
		s.log.Debug().Err(serr).Str("hash", hash).Msg("recording failure")
	}
}
