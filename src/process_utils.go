package dirminify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var (
	ErrNoDirectory = errors.New("nothing to minify: no directory given")
	ErrPersist     = errors.New("failed to save checksum file")
)

// FileProcessor minifies every changed source file under a root directory.
// Zero values select the defaults: the OS filesystem, a JSON checksum file,
// the esbuild Minifier and DefaultCapacity.
type FileProcessor struct {
	Fs           afero.Fs
	Store        Store
	Transformer  Transformer
	Capacity     int
	MaxOpen      int
	SourceSuffix string
	OutputMarker string
	ProgressChan chan string
}

type fileTask struct {
	Path     string
	RelPath  string
	Hash     string
	Changed  bool
	Artifact Artifact
}

// Process loads the fingerprints, scans root, minifies every file whose
// content changed and saves the updated fingerprints to checksumPath
// (default <root>/source-hash.json). Failures of single files are listed in
// the report and do not fail the run.
func (fp *FileProcessor) Process(ctx context.Context, root string, checksumPath string) (*Report, error) {
	if root == "" {
		return nil, ErrNoDirectory
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	root = normalizeRoot(abs)
	if checksumPath == "" {
		checksumPath = root + DefaultChecksumFile
	}

	fs := fp.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	sourceSuffix := fp.SourceSuffix
	if sourceSuffix == "" {
		sourceSuffix = DefaultSourceSuffix
	}
	marker := fp.OutputMarker
	if marker == "" {
		marker = DefaultOutputMarker
	}
	capacity := fp.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	store := fp.Store
	if store == nil {
		store = NewJSONStore(fs, checksumPath)
	}
	transformer := fp.Transformer
	if transformer == nil {
		transformer = &Minifier{Fs: fs, OutputMarker: marker}
	}

	report := &Report{RunID: uuid.NewString(), Root: root, Checksum: checksumPath, State: StateInit}
	logger := zerolog.Ctx(ctx).With().Str("run_id", report.RunID).Logger()
	ctx = logger.WithContext(ctx)

	setState := func(s State) {
		report.State = s
		logger.Debug().Stringer("state", s).Msg("Pipeline state changed")
	}
	fail := func(err error) (*Report, error) {
		report.State = StateError
		return report, err
	}

	logger.Info().Str("root", root).Msg("Minifying directory")

	setState(StateLoadingStore)
	fm := store.Load(ctx)

	setState(StateScanning)
	scanner := NewScanner(fs, fp.MaxOpen)
	res := scanner.Scan(ctx, root, SuffixPredicate(sourceSuffix, marker+sourceSuffix))
	sort.Strings(res.Files)
	report.Files = res.Files
	if res.Err != nil {
		logger.Error().Err(res.Err).Int("found", len(res.Files)).Strs("files", res.Files).Msg("Failed to scan directory")
		return fail(fmt.Errorf("failed to scan %s: %w", root, res.Err))
	}
	logger.Info().Msgf("Minifying %d files...", len(res.Files))

	setState(StateProcessing)
	tasks := make([]*fileTask, len(res.Files))
	for i, path := range res.Files {
		tasks[i] = &fileTask{Path: path, RelPath: relPath(root, path)}
	}

	var (
		counter    int64
		persistErr error
	)
	worker := func(ctx context.Context, t *fileTask) error {
		return fp.processFile(ctx, fs, fm, transformer, root, t, &counter, len(tasks))
	}
	err = Run(ctx, capacity, tasks, worker, func(results []TaskResult[*fileTask]) {
		collectResults(ctx, report, results)
		setState(StatePersisting)
		persistErr = store.Persist(ctx, fm)
	})
	if err != nil {
		return fail(err)
	}
	if persistErr != nil {
		logger.Error().Err(persistErr).Str("checksum", checksumPath).Msg("Error saving checksum file")
		return fail(fmt.Errorf("%w %s: %w", ErrPersist, checksumPath, persistErr))
	}

	setState(StateDone)
	logger.Info().Str("checksum", checksumPath).Msg("Final checksum saved")
	return report, nil
}

func (fp *FileProcessor) processFile(ctx context.Context, fs afero.Fs, fm *FingerprintMap, transformer Transformer,
	root string, t *fileTask, counter *int64, total int) error {

	logger := zerolog.Ctx(ctx)

	content, err := afero.ReadFile(fs, t.Path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	changed, hash := fm.Check(t.RelPath, content)
	t.Hash = hash
	current := atomic.AddInt64(counter, 1)
	if !changed {
		logger.Debug().Str("file", t.RelPath).Msg("Hash unchanged, skipping")
		return nil
	}

	if fp.ProgressChan != nil {
		select {
		case fp.ProgressChan <- fmt.Sprintf("Minifying (%d/%d): %s", current, total, t.RelPath):
		default:
		}
	}

	artifact, err := transformer.Transform(ctx, root, t.Path)
	if err != nil {
		return err
	}
	t.Changed = true
	t.Artifact = artifact
	return nil
}

func collectResults(ctx context.Context, report *Report, results []TaskResult[*fileTask]) {
	logger := zerolog.Ctx(ctx)

	for _, r := range results {
		t := r.Item
		dir, name := filepath.Split(t.Path)
		switch {
		case r.Err != nil:
			logger.Error().Err(r.Err).Str("file", t.RelPath).Msg("Failed to minify file")
			report.Errored = append(report.Errored, ErroredFileObject{
				Name: name, Path: dir, RelPath: t.RelPath, ErrorMessage: r.Err.Error(), Err: r.Err,
			})
		case t.Changed:
			report.Minified = append(report.Minified, FileObject{
				Name: name, Path: dir, RelPath: t.RelPath, Md5Sum: t.Hash, Output: t.Artifact.Output,
			})
		default:
			report.Skipped = append(report.Skipped, FileObject{
				Name: name, Path: dir, RelPath: t.RelPath, Md5Sum: t.Hash,
			})
		}
	}

	SortFilesByPath(report.Minified)
	SortFilesByPath(report.Skipped)
	SortErroredFilesByPath(report.Errored)
}

// normalizeRoot cleans dir and makes it end with exactly one separator.
func normalizeRoot(dir string) string {
	dir = filepath.Clean(dir)
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return dir
}

// relPath returns file relative to root with forward slashes, so checksum
// keys are the same on every platform.
func relPath(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
