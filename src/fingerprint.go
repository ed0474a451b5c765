package dirminify

import (
	"maps"
	"sync"
)

// FingerprintMap maps a slash separated path, relative to the processed
// root, to the hex MD5 of the content last observed for it.
// It is safe for concurrent use.
type FingerprintMap struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewFingerprintMap() *FingerprintMap {
	return &FingerprintMap{hashes: map[string]string{}}
}

// NewFingerprintMapFrom copies hashes into a new map.
func NewFingerprintMapFrom(hashes map[string]string) *FingerprintMap {
	fm := NewFingerprintMap()
	maps.Copy(fm.hashes, hashes)
	return fm
}

// Check hashes content and reports whether it differs from the stored hash
// for relPath. The new hash is stored either way, so a file whose processing
// later fails is still recorded as seen with this content.
func (fm *FingerprintMap) Check(relPath string, content []byte) (changed bool, hash string) {
	hash = Md5Sum(content)

	fm.mu.Lock()
	defer fm.mu.Unlock()

	old, ok := fm.hashes[relPath]
	fm.hashes[relPath] = hash
	return !ok || old != hash, hash
}

func (fm *FingerprintMap) Get(relPath string) (string, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	h, ok := fm.hashes[relPath]
	return h, ok
}

func (fm *FingerprintMap) Set(relPath, hash string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.hashes[relPath] = hash
}

func (fm *FingerprintMap) Len() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return len(fm.hashes)
}

// Snapshot returns a copy of the current entries.
func (fm *FingerprintMap) Snapshot() map[string]string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return maps.Clone(fm.hashes)
}
