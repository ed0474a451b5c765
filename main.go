package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"sync"
	"syscall"
	"time"

	dirminify "github.com/evijayan2/dirminify/src"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(run).ExecuteContext(ctx); err != nil {
		var logged *loggedError
		if !errors.As(err, &logged) {
			log.Error().Err(err).Msg("dirminify failed")
		}
		stop()
		os.Exit(1)
	}
}

func showSpinner(stopChan <-chan struct{}, progress <-chan string, wg *sync.WaitGroup) {
	defer wg.Done()
	spinner := []string{"|", "/", "-", "\\"}
	msg := "Processing..."
	i := 0
	for {
		select {
		case <-stopChan:
			fmt.Print("\r\033[K") // Clear the spinner
			return
		case m := <-progress:
			msg = m
		default:
			fmt.Printf("\r\033[K%s %s", msg, spinner[i])
			i = (i + 1) % len(spinner)
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func Print(ctx context.Context, msg string, files []dirminify.FileObject) {
	logger := zerolog.Ctx(ctx)
	if len(files) > 0 {
		logger.Info().Msg("------------------------------------------------------------")
		logger.Info().Msgf("%s: %d", msg, len(files))
		logger.Info().Msg("------------------------------------------------------------")
		for _, f := range files {
			logger.Debug().Msgf("File %s", f.RelPath)
		}
	}
}

func PrintE(ctx context.Context, msg string, files []dirminify.ErroredFileObject) {
	logger := zerolog.Ctx(ctx)
	if len(files) > 0 {
		logger.Info().Msg("------------------------------------------------------------")
		logger.Info().Msgf("%s: %d", msg, len(files))
		logger.Info().Msg("------------------------------------------------------------")
		for _, f := range files {
			logger.Info().Msgf("File %s => %s ", path.Join(f.Path, f.Name), f.ErrorMessage)
		}
	}
}
