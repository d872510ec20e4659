package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/matchnote/matchnote/pkg/matchnote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := matchnote.Main(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, matchnote.ErrNoCommand) {
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("matchnote failed")
	}
}
