package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const hash = "c9e15763f722f23e98a29decdfae341b98d53056"

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)

	c, err := s.Converted(hash)
	require.NoError(t, err)
	require.Nil(t, c)

	summary := []byte(`{"name":"test","info_hash":"` + hash + `"}`)
	require.NoError(t, s.MarkConverted(hash, "/data/converted/test.torrent", summary))

	c, err = s.Converted(hash)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, hash, c.Hash)
	require.Equal(t, "/data/converted/test.torrent", c.Path)
	require.JSONEq(t, string(summary), string(c.Summary))
}

func TestStoreMarkConvertedClearsFailure(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.MarkFailed(hash, "metadata retrieval timed out"))
	require.NoError(t, s.MarkConverted(hash, "/data/converted/test.torrent", nil))

	c, err := s.Converted(hash)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestStoreListConverted(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.MarkConverted("aaaa", "/data/a.torrent", nil))
	require.NoError(t, s.MarkConverted("bbbb", "/data/b.torrent", nil))
	require.NoError(t, s.MarkFailed("cccc", "no peers"))

	list, err := s.ListConverted()
	require.NoError(t, err)
	require.Len(t, list, 2)

	paths := map[string]string{}
	for _, c := range list {
		paths[c.Hash] = c.Path
	}
	require.Equal(t, "/data/a.torrent", paths["aaaa"])
	require.Equal(t, "/data/b.torrent", paths["bbbb"])
}
