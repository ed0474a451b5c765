package dirminify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// RemoveDerivedFiles deletes every minified output and source map under
// root, so the next Process run starts from scratch when the checksum file
// is removed as well. It returns the removed files.
func RemoveDerivedFiles(ctx context.Context, fs afero.Fs, root, sourceSuffix, marker string) ([]FileObject, error) {
	if root == "" {
		return nil, ErrNoDirectory
	}
	if sourceSuffix == "" {
		sourceSuffix = DefaultSourceSuffix
	}
	if marker == "" {
		marker = DefaultOutputMarker
	}
	logger := zerolog.Ctx(ctx)

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	outputSuffix := marker + sourceSuffix
	derived := func(path string) bool {
		return strings.HasSuffix(path, outputSuffix) || strings.HasSuffix(path, outputSuffix+".map")
	}
	res := NewScanner(fs, 0).Scan(ctx, abs, derived)
	if res.Err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", abs, res.Err)
	}

	filesRemoved := []FileObject{}
	var errs []error
	for _, path := range res.Files {
		if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error().Err(err).Str("file", path).Msg("Not able to remove file")
			errs = append(errs, err)
			continue
		}
		dir, name := filepath.Split(path)
		filesRemoved = append(filesRemoved, FileObject{Name: name, Path: dir, RelPath: relPath(abs, path)})
	}
	SortFilesByPath(filesRemoved)
	return filesRemoved, errors.Join(errs...)
}
