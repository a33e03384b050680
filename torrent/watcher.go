package torrent

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Processor converts magnet-bearing entries. Satisfied by *Service.
type Processor interface {
	ProcessEntries(ctx context.Context, entries []*Entry, destDir string)
}

// Watcher converts .magnet files dropped into a folder. Each file holds one
// magnet URI on its first non-blank line.
type Watcher struct {
	folder  string
	destDir string
	w       *fsnotify.Watcher
	p       Processor

	// interval is the debounce between filesystem events and a sync.
	interval time.Duration

	eventsCount uint64

	mu   sync.Mutex
	seen map[string]bool

	stop chan struct{}
}

func NewWatcher(p Processor, folder, destDir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		folder:   folder,
		destDir:  destDir,
		w:        w,
		p:        p,
		interval: 5 * time.Second,
		seen:     make(map[string]bool),
		stop:     make(chan struct{}),
	}, nil
}

func (mw *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(mw.folder, 0744); err != nil {
		return err
	}

	if err := mw.w.Add(mw.folder); err != nil {
		return err
	}

	// Initial sync picks up files dropped while not running.
	mw.sync(ctx)

	go func() {
		for {
			select {
			case _, ok := <-mw.w.Events:
				if !ok {
					return
				}
				atomic.AddUint64(&mw.eventsCount, 1)
			case err, ok := <-mw.w.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Str("folder", mw.folder).Msg("watcher error")
			}
		}
	}()

	go func() {
		t := time.NewTicker(mw.interval)
		defer t.Stop()
		for {
			select {
			case <-mw.stop:
				return
			case <-t.C:
				ec := atomic.LoadUint64(&mw.eventsCount)
				if ec == 0 {
					continue
				}
				mw.sync(ctx)
				atomic.AddUint64(&mw.eventsCount, ^uint64(ec-1))
			}
		}
	}()

	log.Info().Str("folder", mw.folder).Msg("magnet watcher started")
	return nil
}

func (mw *Watcher) sync(ctx context.Context) {
	files, err := os.ReadDir(mw.folder)
	if err != nil {
		log.Error().Err(err).Str("folder", mw.folder).Msg("error listing watch folder")
		return
	}

	var entries []*Entry
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".magnet") {
			continue
		}

		p := filepath.Join(mw.folder, f.Name())
		mw.mu.Lock()
		done := mw.seen[p]
		mw.seen[p] = true
		mw.mu.Unlock()
		if done {
			continue
		}

		uri, err := readMagnetFile(p)
		if err != nil {
			log.Warn().Err(err).Str("file", p).Msg("skipping unreadable magnet file")
			continue
		}
		if uri == "" {
			log.Warn().Str("file", p).Msg("skipping empty magnet file")
			continue
		}

		title := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		entries = append(entries, NewEntry(title, uri))
	}

	if len(entries) > 0 {
		mw.p.ProcessEntries(ctx, entries, mw.destDir)
	}
}

func (mw *Watcher) Close() error {
	close(mw.stop)
	if mw.w == nil {
		return nil
	}
	return mw.w.Close()
}

func readMagnetFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return line, nil
		}
	}
	return "", sc.Err()
}
