package dirminify

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	DefaultSourceSuffix = ".js"
	// DefaultOutputMarker is inserted before the extension of produced files.
	DefaultOutputMarker = ".min"
)

// Artifact describes the files produced for one source file.
type Artifact struct {
	Source     string
	Output     string
	SourceMap  string
	InputSize  int64
	OutputSize int64
}

// Transformer turns one file under root into its derived artifacts.
type Transformer interface {
	Transform(ctx context.Context, root, file string) (Artifact, error)
}

type TransformError struct {
	File     string
	Messages []string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("minify %s: %s", e.File, strings.Join(e.Messages, "; "))
}

// DerivedPaths returns the output and source map paths for file:
// dir/a.js becomes dir/a.min.js and dir/a.min.js.map.
func DerivedPaths(file, marker string) (output, sourceMap string) {
	ext := filepath.Ext(file)
	output = strings.TrimSuffix(file, ext) + marker + ext
	return output, output + ".map"
}

// Minifier minifies JavaScript with esbuild and writes the result next to
// the source, together with an external source map.
type Minifier struct {
	Fs           afero.Fs
	OutputMarker string
}

func NewMinifier(fs afero.Fs) *Minifier {
	return &Minifier{Fs: fs, OutputMarker: DefaultOutputMarker}
}

func (m *Minifier) Transform(ctx context.Context, root, file string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	logger := zerolog.Ctx(ctx).With().Str("file", relPath(root, file)).Logger()
	logger.Debug().Msg("Minifying file")

	src, err := afero.ReadFile(m.Fs, file)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read %s: %w", file, err)
	}

	marker := m.OutputMarker
	if marker == "" {
		marker = DefaultOutputMarker
	}
	output, sourceMap := DerivedPaths(file, marker)

	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		KeepNames:         true,
		Sourcemap:         api.SourceMapExternal,
		Sourcefile:        filepath.Base(file),
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return Artifact{}, &TransformError{File: file, Messages: messageTexts(result.Errors)}
	}
	for _, w := range result.Warnings {
		logger.Debug().Str("warning", w.Text).Msg("Minifier warning")
	}

	code := result.Code
	if len(code) > 0 && !bytes.HasSuffix(code, []byte("\n")) {
		code = append(code, '\n')
	}
	code = append(code, "//# sourceMappingURL="+filepath.Base(sourceMap)+"\n"...)

	if err := writeFileAtomic(m.Fs, output, code, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", output, err)
	}
	logger.Debug().Str("output", output).Msg("Saved minified file")

	if err := writeFileAtomic(m.Fs, sourceMap, result.Map, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", sourceMap, err)
	}

	a := Artifact{
		Source:     file,
		Output:     output,
		SourceMap:  sourceMap,
		InputSize:  int64(len(src)),
		OutputSize: int64(len(code)),
	}
	logger.Debug().Msgf("Minified from %s to %s", humanize.Bytes(uint64(a.InputSize)), humanize.Bytes(uint64(a.OutputSize)))
	return a, nil
}

func messageTexts(msgs []api.Message) []string {
	texts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			texts = append(texts, fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		texts = append(texts, msg.Text)
	}
	return texts
}
