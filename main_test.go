package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dirminify "github.com/evijayan2/dirminify/src"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) (options, error) {
	t.Helper()
	var got options
	cmd := newRootCommand(func(ctx context.Context, opts options) error {
		got = opts
		return nil
	})
	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestRootCommand_Flags(t *testing.T) {
	opts, err := parseArgs(t, "/proj", "-v", "-c", "/tmp/hashes.json", "--capacity", "8", "--store", "BADGER", "--clean")
	require.NoError(t, err)
	assert.Equal(t, options{
		Dir:      "/proj",
		Checksum: "/tmp/hashes.json",
		Store:    storeBadger,
		Capacity: 8,
		Verbose:  true,
		Clean:    true,
	}, opts)
}

func TestRootCommand_Defaults(t *testing.T) {
	opts, err := parseArgs(t, "/proj")
	require.NoError(t, err)
	assert.Equal(t, "/proj", opts.Dir)
	assert.Equal(t, storeJSON, opts.Store)
	assert.Equal(t, dirminify.DefaultCapacity, opts.Capacity)
	assert.Empty(t, opts.Checksum)
	assert.False(t, opts.Verbose)
}

func TestRootCommand_Environment(t *testing.T) {
	t.Setenv("DIRMINIFY_CAPACITY", "12")
	t.Setenv("DIRMINIFY_LOG_FILE", "/tmp/dirminify.log")
	t.Setenv("DIRMINIFY_DIRECTORY", "/from-env")

	opts, err := parseArgs(t)
	require.NoError(t, err)
	assert.Equal(t, "/from-env", opts.Dir)
	assert.Equal(t, 12, opts.Capacity)
	assert.Equal(t, "/tmp/dirminify.log", opts.LogFile)

	opts, err = parseArgs(t, "/proj", "--capacity", "5")
	require.NoError(t, err)
	assert.Equal(t, "/proj", opts.Dir, "positional argument beats the environment")
	assert.Equal(t, 5, opts.Capacity, "flag beats the environment")
}

func TestRootCommand_ConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "dirminify.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("directory: /from-config\ncapacity: 7\nstore: badger\n"), 0644))

	opts, err := parseArgs(t, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "/from-config", opts.Dir)
	assert.Equal(t, 7, opts.Capacity)
	assert.Equal(t, storeBadger, opts.Store)

	t.Setenv("DIRMINIFY_CAPACITY", "9")
	opts, err = parseArgs(t, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, 9, opts.Capacity, "environment beats the config file")
}

func TestRootCommand_Invalid(t *testing.T) {
	_, err := parseArgs(t)
	assert.ErrorIs(t, err, dirminify.ErrNoDirectory)

	_, err = parseArgs(t, "/proj", "--store", "sqlite")
	assert.ErrorContains(t, err, "unknown store")

	_, err = parseArgs(t, "/proj", "--capacity", "0")
	assert.ErrorContains(t, err, "capacity")

	_, err = parseArgs(t, "/proj", "--config", "/does/not/exist.yaml")
	assert.Error(t, err)

	_, err = parseArgs(t, "/a", "/b")
	assert.Error(t, err)
}

func TestChecksumLocation(t *testing.T) {
	got, err := checksumLocation(options{Dir: "/proj", Checksum: "/x/h.json", Store: storeJSON})
	require.NoError(t, err)
	assert.Equal(t, "/x/h.json", got)

	got, err = checksumLocation(options{Dir: "/proj", Store: storeJSON})
	require.NoError(t, err)
	assert.Equal(t, "/proj/source-hash.json", got)

	got, err = checksumLocation(options{Dir: "/proj/", Store: storeBadger})
	require.NoError(t, err)
	assert.Equal(t, "/proj/.source-hash.badger", got)
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("var answer = 40 + 2;\n"), 0644))

	for _, store := range []string{storeJSON, storeBadger} {
		t.Run(store, func(t *testing.T) {
			opts := options{Dir: root, Store: store, Capacity: 2, Verbose: true}
			require.NoError(t, run(context.Background(), opts))

			_, err := os.Stat(filepath.Join(root, "a.min.js"))
			require.NoError(t, err)

			checksum, err := checksumLocation(opts)
			require.NoError(t, err)
			_, err = os.Stat(checksum)
			require.NoError(t, err)

			opts.Clean = true
			require.NoError(t, run(context.Background(), opts))
			_, err = os.Stat(filepath.Join(root, "a.min.js"))
			assert.True(t, os.IsNotExist(err))
			_, err = os.Stat(checksum)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestRun_CleanKeepsForeignChecksumPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.min.js"), []byte("var a=1;"), 0644))

	for _, store := range []string{storeJSON, storeBadger} {
		t.Run(store, func(t *testing.T) {
			other := t.TempDir()
			important := filepath.Join(other, "important.txt")
			require.NoError(t, os.WriteFile(important, []byte("keep me"), 0644))

			opts := options{Dir: root, Store: store, Checksum: other, Capacity: 1, Verbose: true, Clean: true}
			err := run(context.Background(), opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "refusing to remove")

			data, err := os.ReadFile(important)
			require.NoError(t, err)
			assert.Equal(t, "keep me", string(data))
		})
	}
}

func TestRun_CleanMissingChecksum(t *testing.T) {
	root := t.TempDir()
	opts := options{Dir: root, Store: storeBadger, Capacity: 1, Verbose: true, Clean: true}
	require.NoError(t, run(context.Background(), opts))
}

func TestRun_LogsFailureToLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	opts := options{
		Dir:      filepath.Join(t.TempDir(), "missing"),
		Store:    storeJSON,
		Capacity: 1,
		Verbose:  true,
		LogFile:  logFile,
	}

	err := run(context.Background(), opts)
	require.Error(t, err)
	var logged *loggedError
	assert.True(t, errors.As(err, &logged))

	data, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	var failure map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "dirminify failed" {
			failure = entry
		}
	}
	require.NotNil(t, failure, "failure not logged to %s", logFile)
	assert.Equal(t, "error", failure["level"])
	assert.NotEmpty(t, failure["run_id"])
	assert.Contains(t, failure["error"], "failed to scan")
}
