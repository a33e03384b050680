package torrent

import (
	"fmt"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
)

// FileEntry is one file inside a torrent, path relative to the torrent root.
type FileEntry struct {
	Path   string
	Length int64
}

// Metadata is the resolved description of a torrent's content. It is derived
// entirely from swarm responses and never mutated after construction; the
// builder works on copies.
type Metadata struct {
	Name         string
	InfoHash     string
	PieceLength  int64
	NumPieces    int
	TotalLength  int64
	Files        []FileEntry
	Creator      string
	Comment      string
	CreationDate int64
	Trackers     []string

	mi metainfo.MetaInfo
}

// MetadataFromMetaInfo decodes a raw engine metainfo object into Metadata.
// Trackers fetched via the swarm commonly leave creator and creation date
// empty; callers set those at build time.
func MetadataFromMetaInfo(mi metainfo.MetaInfo) (*Metadata, error) {
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	md := &Metadata{
		Name:         info.BestName(),
		InfoHash:     mi.HashInfoBytes().HexString(),
		PieceLength:  info.PieceLength,
		NumPieces:    info.NumPieces(),
		TotalLength:  info.TotalLength(),
		Creator:      mi.CreatedBy,
		Comment:      mi.Comment,
		CreationDate: mi.CreationDate,
		Trackers:     mi.UpvertedAnnounceList().DistinctValues(),
		mi:           mi,
	}

	for _, f := range info.UpvertedFiles() {
		md.Files = append(md.Files, FileEntry{
			Path:   f.DisplayPath(&info),
			Length: f.Length,
		})
	}

	return md, nil
}

func metadataFromTorrent(t *torrent.Torrent) (*Metadata, error) {
	if t.Info() == nil {
		return nil, fmt.Errorf("metadata not available for %s", t.InfoHash().HexString())
	}
	return MetadataFromMetaInfo(t.Metainfo())
}

// MetaInfo returns the raw engine object the metadata was decoded from.
func (md *Metadata) MetaInfo() metainfo.MetaInfo { return md.mi }
