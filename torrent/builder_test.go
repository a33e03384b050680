package torrent

import (
	"bytes"
	"testing"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedBuilder(ts time.Time) *Builder {
	b := NewBuilder()
	b.now = func() time.Time { return ts }
	return b
}

func TestBuildSetsCreatorWhenAbsent(t *testing.T) {
	md := testMetadata(t)
	require.Empty(t, md.Creator)

	tf, err := fixedBuilder(time.Unix(1700000000, 0)).Build(md)
	require.NoError(t, err)
	require.Contains(t, tf.Metadata.Creator, "anacrolix/torrent")
}

func TestBuildPreservesPublisherCreator(t *testing.T) {
	md := testMetadata(t)
	mi := md.MetaInfo()
	mi.CreatedBy = "uTorrent/3.5.5"
	md, err := MetadataFromMetaInfo(mi)
	require.NoError(t, err)

	tf, err := fixedBuilder(time.Unix(1700000000, 0)).Build(md)
	require.NoError(t, err)
	require.Equal(t, "uTorrent/3.5.5", tf.Metadata.Creator)
}

func TestBuildStampsCreationDate(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	tf, err := fixedBuilder(ts).Build(testMetadata(t))
	require.NoError(t, err)
	require.EqualValues(t, 1700000000, tf.Metadata.CreationDate)

	mi, err := metainfo.Load(bytes.NewReader(tf.Bytes))
	require.NoError(t, err)
	require.EqualValues(t, 1700000000, mi.CreationDate)
}

func TestBuildPreservesCreationDate(t *testing.T) {
	md := testMetadata(t)
	mi := md.MetaInfo()
	mi.CreationDate = 1500000000
	md, err := MetadataFromMetaInfo(mi)
	require.NoError(t, err)

	tf, err := fixedBuilder(time.Unix(1700000000, 0)).Build(md)
	require.NoError(t, err)
	require.EqualValues(t, 1500000000, tf.Metadata.CreationDate)
}

func TestBuildRoundTrip(t *testing.T) {
	md := testMetadata(t)

	tf, err := fixedBuilder(time.Unix(1700000000, 0)).Build(md)
	require.NoError(t, err)
	require.Equal(t, "test.torrent", tf.Name)

	mi, err := metainfo.Load(bytes.NewReader(tf.Bytes))
	require.NoError(t, err)

	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)

	assert.Equal(t, "test", info.Name)
	assert.EqualValues(t, 1048576, info.Length)
	assert.EqualValues(t, 262144, info.PieceLength)
	assert.Equal(t, 4, info.NumPieces())

	// The info dictionary is carried through untouched.
	require.Equal(t, md.InfoHash, mi.HashInfoBytes().HexString())
	require.Equal(t, md.Trackers, mi.UpvertedAnnounceList().DistinctValues())
}

func TestSummarize(t *testing.T) {
	md := testMetadata(t)
	mi := md.MetaInfo()
	mi.CreationDate = 1700000000
	md, err := MetadataFromMetaInfo(mi)
	require.NoError(t, err)

	ps := PeerStats{Seeders: 5, Leechers: 2, TotalWanted: 1048576}
	magnet := "magnet:?xt=urn:btih:" + md.InfoHash + "&dn=test"

	s := Summarize(md, ps, magnet, 1250*time.Millisecond)

	assert.Equal(t, "test", s.Name)
	assert.Equal(t, 1, s.NumFiles)
	assert.EqualValues(t, 1048576, s.TotalSize)
	assert.Equal(t, "1.0 MiB", s.TotalSizeFmt)
	assert.Equal(t, md.InfoHash, s.InfoHash)
	assert.Equal(t, 4, s.NumPieces)
	assert.Equal(t, magnet, s.MagnetURI)
	assert.Equal(t, []string{"udp://tracker.example:1337/announce"}, s.Trackers)
	assert.Equal(t, "2023-11-14T22:13:20Z", s.CreationDate)
	assert.Equal(t, 5, s.Seeders)
	assert.Equal(t, 2, s.Leechers)
	assert.EqualValues(t, 1048576, s.TotalWanted)
	assert.InDelta(t, 1.25, s.ElapsedTime, 0.001)

	require.Len(t, s.Files, 1)
	assert.Equal(t, "test", s.Files[0].Path)
	assert.Equal(t, "1.0 MiB", s.Files[0].SizeFmt)
}

func TestSummarizeIdempotent(t *testing.T) {
	md := testMetadata(t)
	ps := PeerStats{Seeders: 1}

	a := Summarize(md, ps, "magnet:?xt=urn:btih:"+md.InfoHash, time.Second)
	b := Summarize(md, ps, "magnet:?xt=urn:btih:"+md.InfoHash, time.Second)
	require.Equal(t, a, b)
}

func TestScrubName(t *testing.T) {
	cases := map[string]string{
		"plain name":               "plain name",
		`a<b>c:d"e/f\g|h?i*j`:      "abcdefghij",
		"trailing dots...":         "trailing dots",
		"trailing spaces   ":       "trailing spaces",
		"with\x07control\x1fchars": "withcontrolchars",
	}

	for in, want := range cases {
		assert.Equal(t, want, ScrubName(in), "input %q", in)
	}
}
