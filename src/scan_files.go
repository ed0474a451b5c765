package dirminify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxOpen bounds the directory reads and stats a Scanner runs at once.
const DefaultMaxOpen = 64

// Predicate decides whether a regular file belongs in a scan result.
type Predicate func(path string) bool

// SuffixPredicate matches paths ending in sourceSuffix, except those ending
// in outputSuffix, so previously produced output is never picked up again.
func SuffixPredicate(sourceSuffix, outputSuffix string) Predicate {
	return func(path string) bool {
		return strings.HasSuffix(path, sourceSuffix) && !strings.HasSuffix(path, outputSuffix)
	}
}

// ScanResult holds the files found under a root. When Err is set Files still
// carries everything collected before and beside the failure.
type ScanResult struct {
	Files []string
	Err   error
}

type ScanError struct {
	Op   string
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner walks a directory tree, visiting the entries of every directory
// concurrently.
type Scanner struct {
	Fs  afero.Fs
	sem *semaphore.Weighted
}

func NewScanner(fs afero.Fs, maxOpen int) *Scanner {
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpen
	}
	return &Scanner{Fs: fs, sem: semaphore.NewWeighted(int64(maxOpen))}
}

// Scan returns every regular file under root accepted by pred. The order of
// the result is unspecified.
func (s *Scanner) Scan(ctx context.Context, root string, pred Predicate) ScanResult {
	return s.scanDir(ctx, filepath.Clean(root), pred)
}

func (s *Scanner) scanDir(ctx context.Context, dir string, pred Predicate) ScanResult {
	names, err := s.readDirNames(ctx, dir)
	if err != nil {
		return ScanResult{Err: err}
	}

	var (
		mu    sync.Mutex
		files []string
		g     errgroup.Group
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		g.Go(func() error {
			found, err := s.scanEntry(ctx, path, pred)
			if len(found) > 0 {
				mu.Lock()
				files = append(files, found...)
				mu.Unlock()
			}
			return err
		})
	}

	// Wait reports the first failure, every sibling has still run to completion.
	err = g.Wait()
	return ScanResult{Files: files, Err: err}
}

func (s *Scanner) scanEntry(ctx context.Context, path string, pred Predicate) ([]string, error) {
	info, err := s.stat(ctx, path)
	if err != nil || info == nil {
		return nil, err
	}

	switch {
	case info.IsDir():
		res := s.scanDir(ctx, path, pred)
		return res.Files, res.Err
	case info.Mode().IsRegular() && pred(path):
		return []string{path}, nil
	}
	return nil, nil
}

func (s *Scanner) readDirNames(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	f, err := s.Fs.Open(dir)
	if err != nil {
		return nil, &ScanError{Op: "readdir", Path: dir, Err: err}
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, &ScanError{Op: "readdir", Path: dir, Err: err}
	}
	return names, nil
}

// stat returns nil info for entries that must not be visited: symbolic
// links to directories are never descended.
func (s *Scanner) stat(ctx context.Context, path string) (os.FileInfo, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	info, err := s.lstat(path)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		info, err = s.Fs.Stat(path)
		if err == nil && info.IsDir() {
			return nil, nil
		}
	}
	if err != nil {
		return nil, &ScanError{Op: "stat", Path: path, Err: err}
	}
	return info, nil
}

func (s *Scanner) lstat(path string) (os.FileInfo, error) {
	if l, ok := s.Fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return s.Fs.Stat(path)
}
