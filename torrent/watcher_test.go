package torrent

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu      sync.Mutex
	entries []*Entry
}

func (p *recordingProcessor) ProcessEntries(_ context.Context, entries []*Entry, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entries...)
}

func (p *recordingProcessor) all() []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Entry(nil), p.entries...)
}

func writeMagnetFile(t *testing.T, folder, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(content), 0644))
}

func TestWatcherSync(t *testing.T) {
	folder := t.TempDir()
	writeMagnetFile(t, folder, "ubuntu-24.04.magnet", "\n  "+testMagnet+"\n")
	writeMagnetFile(t, folder, "notes.txt", "not a magnet file")
	writeMagnetFile(t, folder, "empty.magnet", "\n\n")

	p := &recordingProcessor{}
	mw, err := NewWatcher(p, folder, t.TempDir())
	require.NoError(t, err)
	defer mw.Close()

	mw.sync(context.Background())

	got := p.all()
	require.Len(t, got, 1)
	require.Equal(t, "ubuntu-24.04", got[0].Title)
	require.Equal(t, testMagnet, got[0].URL)
}

func TestWatcherSyncProcessesEachFileOnce(t *testing.T) {
	folder := t.TempDir()
	writeMagnetFile(t, folder, "first.magnet", testMagnet)

	p := &recordingProcessor{}
	mw, err := NewWatcher(p, folder, t.TempDir())
	require.NoError(t, err)
	defer mw.Close()

	mw.sync(context.Background())
	mw.sync(context.Background())
	require.Len(t, p.all(), 1)

	writeMagnetFile(t, folder, "second.magnet", testMagnet)
	mw.sync(context.Background())
	require.Len(t, p.all(), 2)
}

func TestReadMagnetFile(t *testing.T) {
	folder := t.TempDir()
	writeMagnetFile(t, folder, "a.magnet", "\n \n"+testMagnet+"\nsecond line ignored\n")

	uri, err := readMagnetFile(filepath.Join(folder, "a.magnet"))
	require.NoError(t, err)
	require.Equal(t, testMagnet, uri)
}
