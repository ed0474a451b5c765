package dirminify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultChecksumFile is the name of the fingerprint file created inside
// the processed root when no explicit path is given.
const DefaultChecksumFile = "source-hash.json"

// Store loads and persists the fingerprint map of a run.
type Store interface {
	// Load never fails: missing or unreadable state yields an empty map.
	Load(ctx context.Context) *FingerprintMap
	// Persist overwrites any previously persisted state with fm.
	Persist(ctx context.Context, fm *FingerprintMap) error
}

// JSONStore keeps the fingerprint map as a JSON object in a single file.
type JSONStore struct {
	Fs   afero.Fs
	Path string
}

func NewJSONStore(fs afero.Fs, path string) *JSONStore {
	return &JSONStore{Fs: fs, Path: path}
}

func (s *JSONStore) Load(ctx context.Context) *FingerprintMap {
	logger := zerolog.Ctx(ctx)

	data, err := afero.ReadFile(s.Fs, s.Path)
	if err != nil {
		logger.Debug().Err(err).Str("checksum", s.Path).Msg("Checksum file not readable, starting with empty fingerprints")
		return NewFingerprintMap()
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		logger.Warn().Err(err).Str("checksum", s.Path).Msg("Checksum file is invalid, creating a new one")
		return NewFingerprintMap()
	}

	logger.Debug().Str("checksum", s.Path).Int("entries", len(hashes)).Msg("Loaded checksum file")
	return NewFingerprintMapFrom(hashes)
}

func (s *JSONStore) Persist(ctx context.Context, fm *FingerprintMap) error {
	data, err := json.MarshalIndent(fm.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checksums: %w", err)
	}
	if err := writeFileAtomic(s.Fs, s.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checksum file %s: %w", s.Path, err)
	}
	zerolog.Ctx(ctx).Debug().Str("checksum", s.Path).Int("entries", fm.Len()).Msg("Checksum file saved")
	return nil
}
