package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	dirminify "github.com/evijayan2/dirminify/src"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	storeJSON   = "json"
	storeBadger = "badger"

	defaultBadgerDir = ".source-hash.badger"
)

type options struct {
	Dir      string
	Checksum string
	Store    string
	LogFile  string
	Capacity int
	Verbose  bool
	Clean    bool
}

type runFunc func(ctx context.Context, opts options) error

func newRootCommand(runFn runFunc) *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "dirminify <directory>",
		Short:         "Minify every changed JavaScript file below a directory",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(v, configFile, args)
			if err != nil {
				return err
			}
			return runFn(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.StringP("checksum", "c", "", "Checksum file (json store) or directory (badger store); defaults inside the target directory")
	flags.Int("capacity", dirminify.DefaultCapacity, "Maximum number of files processed at once")
	flags.String("store", storeJSON, "Fingerprint store backend: json or badger")
	flags.String("log-file", "", "Also append logs to this file")
	flags.Bool("clean", false, "Remove minified files, source maps and stored fingerprints instead of minifying")
	flags.StringVar(&configFile, "config", "", "Optional YAML config file")

	bindFlags(v, flags)
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = v.BindPFlag(f.Name, f)
	})
	v.SetEnvPrefix("DIRMINIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("directory")
}

func loadOptions(v *viper.Viper, configFile string, args []string) (options, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return options{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	opts := options{
		Dir:      v.GetString("directory"),
		Checksum: v.GetString("checksum"),
		Store:    strings.ToLower(v.GetString("store")),
		LogFile:  v.GetString("log-file"),
		Capacity: v.GetInt("capacity"),
		Verbose:  v.GetBool("verbose"),
		Clean:    v.GetBool("clean"),
	}
	if len(args) > 0 {
		opts.Dir = args[0]
	}

	if opts.Dir == "" {
		return options{}, dirminify.ErrNoDirectory
	}
	if opts.Store != storeJSON && opts.Store != storeBadger {
		return options{}, fmt.Errorf("unknown store %q, want %s or %s", opts.Store, storeJSON, storeBadger)
	}
	if opts.Capacity < 1 {
		return options{}, fmt.Errorf("capacity must be at least 1, got %d", opts.Capacity)
	}
	return opts, nil
}

func newLogger(opts options) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	closeFn := func() {}
	if opts.LogFile != "" {
		file, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
		closeFn = func() { _ = file.Close() }
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
	return logger, closeFn, nil
}

// checksumLocation resolves where fingerprints live for the selected store.
// An empty result lets the processor pick its JSON default.
func checksumLocation(opts options) (string, error) {
	if opts.Checksum != "" {
		return opts.Checksum, nil
	}
	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return "", err
	}
	if opts.Store == storeBadger {
		return filepath.Join(abs, defaultBadgerDir), nil
	}
	return filepath.Join(abs, dirminify.DefaultChecksumFile), nil
}

// loggedError marks an error that run already wrote through the configured
// logger, so main does not report it a second time.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }

func (e *loggedError) Unwrap() error { return e.err }

func run(ctx context.Context, opts options) error {
	logger, closeLog, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx = logger.WithContext(ctx)

	runID, err := execute(ctx, opts)
	if err != nil {
		event := logger.Error().Err(err)
		if runID != "" {
			event = event.Str("run_id", runID)
		}
		event.Msg("dirminify failed")
		return &loggedError{err: err}
	}
	return nil
}

func execute(ctx context.Context, opts options) (string, error) {
	checksum, err := checksumLocation(opts)
	if err != nil {
		return "", fmt.Errorf("failed to resolve checksum location: %w", err)
	}

	fs := afero.NewOsFs()
	if opts.Clean {
		return "", clean(ctx, fs, opts, checksum)
	}

	fp := dirminify.FileProcessor{
		Fs:           fs,
		Capacity:     opts.Capacity,
		ProgressChan: make(chan string, 1),
	}
	if opts.Store == storeBadger {
		store, err := dirminify.OpenBadgerStore(checksum, false)
		if err != nil {
			return "", err
		}
		defer store.Close()
		fp.Store = store
	}

	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	if !opts.Verbose {
		wg.Add(1)
		go showSpinner(stopChan, fp.ProgressChan, &wg)
	}
	report, err := fp.Process(ctx, opts.Dir, checksum)
	close(stopChan)
	wg.Wait()

	if report == nil {
		return "", err
	}
	Print(ctx, "Files minified", report.Minified)
	Print(ctx, "Unchanged", report.Skipped)
	PrintE(ctx, "Errors", report.Errored)
	return report.RunID, err
}

func clean(ctx context.Context, fs afero.Fs, opts options, checksum string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("Removing minified files...")

	removed, err := dirminify.RemoveDerivedFiles(ctx, fs, opts.Dir, "", "")
	Print(ctx, "Removed files", removed)
	if rmErr := removeStore(fs, opts.Store, checksum); rmErr != nil {
		err = errors.Join(err, rmErr)
	}
	return err
}

// removeStore deletes the persisted fingerprints. The json store is a single
// file; a badger directory is only removed when it holds a badger database.
func removeStore(fs afero.Fs, store, checksum string) error {
	info, err := fs.Stat(checksum)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", checksum, err)
	}

	switch store {
	case storeBadger:
		if !info.IsDir() {
			return fmt.Errorf("refusing to remove %s: not a badger directory", checksum)
		}
		if ok, _ := afero.Exists(fs, filepath.Join(checksum, "MANIFEST")); !ok {
			return fmt.Errorf("refusing to remove %s: no badger database found", checksum)
		}
		if err := fs.RemoveAll(checksum); err != nil {
			return fmt.Errorf("failed to remove %s: %w", checksum, err)
		}
	default:
		if !info.Mode().IsRegular() {
			return fmt.Errorf("refusing to remove %s: checksum path is not a regular file", checksum)
		}
		if err := fs.Remove(checksum); err != nil {
			return fmt.Errorf("failed to remove %s: %w", checksum, err)
		}
	}
	return nil
}
