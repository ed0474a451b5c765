package dirminify

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const hashKeyPrefix = "hash"

// BadgerStore keeps fingerprints in a badger database, one key per file.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database in dir. With inMemory set
// dir is ignored and nothing touches the disk.
func OpenBadgerStore(dir string, inMemory bool) (*BadgerStore, error) {
	db, err := OpenBadgerDB(dir, inMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Load(ctx context.Context) *FingerprintMap {
	logger := zerolog.Ctx(ctx)

	hashes, err := IterateWithPrefix(s.db, hashKeyPrefix)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read fingerprints from badger, starting with empty fingerprints")
		return NewFingerprintMap()
	}
	logger.Debug().Int("entries", len(hashes)).Msg("Loaded fingerprints from badger")
	return NewFingerprintMapFrom(hashes)
}

func (s *BadgerStore) Persist(ctx context.Context, fm *FingerprintMap) error {
	hashes := fm.Snapshot()
	stored, err := IterateWithPrefix(s.db, hashKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to read stored fingerprints: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for relPath := range stored {
		if _, ok := hashes[relPath]; ok {
			continue
		}
		if err := wb.Delete(hashKey(relPath)); err != nil {
			return fmt.Errorf("failed to stage removal of %s: %w", relPath, err)
		}
	}
	for relPath, hash := range hashes {
		if err := wb.Set(hashKey(relPath), []byte(hash)); err != nil {
			return fmt.Errorf("failed to stage fingerprint for %s: %w", relPath, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write fingerprints: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Int("entries", len(hashes)).Msg("Fingerprints saved to badger")
	return nil
}

func hashKey(relPath string) []byte {
	return []byte(hashKeyPrefix + "-" + relPath)
}

func OpenBadgerDB(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// IterateWithPrefix returns every "<prefix>-<name>" entry keyed by name.
func IterateWithPrefix(db *badger.DB, prefix string) (map[string]string, error) {
	entries := map[string]string{}
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()
		prefixKey := []byte(prefix + "-")
		for it.Seek(prefixKey); it.ValidForPrefix(prefixKey); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries[string(item.Key()[len(prefixKey):])] = string(value)
		}
		return nil
	})
	return entries, err
}
