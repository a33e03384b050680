package torrent

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TorrentFile is the serialized output of one successful conversion.
type TorrentFile struct {
	// Bytes is the bencoded torrent file content.
	Bytes []byte
	// Name is the sanitized output filename, .torrent suffix included.
	Name string
	// Metadata reflects the file content, creator signature and creation
	// date included.
	Metadata *Metadata
}

// Builder turns resolved metadata into wire-exact torrent file bytes.
type Builder struct {
	log zerolog.Logger
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{
		log: log.Logger.With().Str("component", "torrent-builder").Logger(),
		now: time.Now,
	}
}

// Build bencodes the metadata into torrent file bytes. The creator signature
// is set only when the upstream source did not supply one; a publisher's
// creator string is never overwritten. Creation date is stamped the same
// way.
func (b *Builder) Build(md *Metadata) (*TorrentFile, error) {
	mi := md.MetaInfo()

	if mi.CreatedBy == "" {
		mi.CreatedBy = engineSignature()
	}
	if mi.CreationDate == 0 {
		mi.CreationDate = b.now().Unix()
	}

	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	out, err := MetadataFromMetaInfo(mi)
	if err != nil {
		return nil, err
	}

	name := ScrubName(out.Name)
	if name == "" {
		name = out.InfoHash
	}

	b.log.Debug().Str("name", name).Int("bytes", buf.Len()).Msg("torrent file built")

	return &TorrentFile{
		Bytes:    buf.Bytes(),
		Name:     name + ".torrent",
		Metadata: out,
	}, nil
}

// SummaryFile is one file row inside a Summary.
type SummaryFile struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	SizeFmt string `json:"size_fmt"`
}

// Summary is the flat result mapping returned to the caller. The field set
// is fixed; output shape never depends on what the engine happens to expose.
type Summary struct {
	Name         string        `json:"name"`
	NumFiles     int           `json:"num_files"`
	TotalSize    int64         `json:"total_size"`
	TotalSizeFmt string        `json:"total_size_fmt"`
	InfoHash     string        `json:"info_hash"`
	NumPieces    int           `json:"num_pieces"`
	Creator      string        `json:"creator"`
	Comment      string        `json:"comment"`
	Files        []SummaryFile `json:"files"`
	MagnetURI    string        `json:"magnet_uri"`
	Trackers     []string      `json:"trackers"`
	CreationDate string        `json:"creation_date"`
	Seeders      int           `json:"seeders"`
	Leechers     int           `json:"leechers"`
	TotalWanted  int64         `json:"total_wanted"`
	ElapsedTime  float64       `json:"elapsed_time,omitempty"`
}

// Summarize merges metadata, peer stats and the tracker list actually used
// into one summary. Pure function: same inputs, same output.
func Summarize(md *Metadata, ps PeerStats, magnetURI string, elapsed time.Duration) *Summary {
	s := &Summary{
		Name:         md.Name,
		NumFiles:     len(md.Files),
		TotalSize:    md.TotalLength,
		TotalSizeFmt: sizeFmt(md.TotalLength),
		InfoHash:     md.InfoHash,
		NumPieces:    md.NumPieces,
		Creator:      md.Creator,
		Comment:      md.Comment,
		MagnetURI:    magnetURI,
		Trackers:     md.Trackers,
		CreationDate: time.Unix(md.CreationDate, 0).UTC().Format(time.RFC3339),
		Seeders:      ps.Seeders,
		Leechers:     ps.Leechers,
		TotalWanted:  ps.TotalWanted,
		ElapsedTime:  elapsed.Seconds(),
	}

	for _, f := range md.Files {
		s.Files = append(s.Files, SummaryFile{
			Path:    f.Path,
			Size:    f.Length,
			SizeFmt: sizeFmt(f.Length),
		})
	}

	return s
}

func sizeFmt(n int64) string {
	if n < 0 {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(uint64(n))
}

// ScrubName strips characters that are unsafe in filenames on any supported
// platform. Windows is the strictest so its rules apply everywhere.
func ScrubName(name string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return -1
		}
		return r
	}, name)

	// Trailing dots and spaces are dropped by Windows.
	return strings.TrimRight(out, ". ")
}

var (
	signatureOnce sync.Once
	signature     string
)

// engineSignature names the serializing engine, e.g.
// "anacrolix/torrent v1.59.1".
func engineSignature() string {
	signatureOnce.Do(func() {
		signature = "anacrolix/torrent"
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, dep := range bi.Deps {
				if dep.Path == "github.com/anacrolix/torrent" {
					signature = fmt.Sprintf("anacrolix/torrent %s", dep.Version)
					break
				}
			}
		}
	})
	return signature
}
