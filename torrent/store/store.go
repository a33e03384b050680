package store

import (
	"encoding/json"
	"path"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog/log"

	mlog "github.com/magnetconv/magnetconv/log"
)

const doneRootKey = "/done/"
const failedRootKey = "/failed/"

// Conversion is one recorded conversion outcome, keyed by info-hash.
type Conversion struct {
	Hash    string          `json:"hash"`
	Path    string          `json:"path"`
	Summary json.RawMessage `json:"summary,omitempty"`
}

// Store is the badger-backed conversion index. It lets reruns skip magnets
// that already have a torrent file on disk.
type Store struct {
	db *badger.DB
}

func New(dir string) (*Store, error) {
	l := log.Logger.With().Str("component", "conversion-store").Logger()

	opts := badger.DefaultOptions(dir).
		WithLogger(&mlog.Badger{L: l}).
		WithValueLogFileSize(1<<26 - 1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	err = db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) MarkConverted(hash, filePath string, summary []byte) error {
	c := Conversion{Hash: hash, Path: filePath, Summary: summary}
	v, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(path.Join(failedRootKey, hash))); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set([]byte(path.Join(doneRootKey, hash)), v)
	})
}

// Converted returns the recorded outcome for an info-hash, if any.
func (s *Store) Converted(hash string) (*Conversion, error) {
	var c *Conversion
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path.Join(doneRootKey, hash)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			c = &Conversion{}
			return json.Unmarshal(v, c)
		})
	})
	return c, err
}

func (s *Store) MarkFailed(hash, reason string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path.Join(failedRootKey, hash)), []byte(reason))
	})
}

func (s *Store) ListConverted() ([]*Conversion, error) {
	var out []*Conversion
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(doneRootKey)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				c := &Conversion{}
				if err := json.Unmarshal(v, c); err != nil {
					return err
				}
				out = append(out, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
