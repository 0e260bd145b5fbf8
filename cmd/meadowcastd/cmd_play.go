/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/logging"
	"github.com/friendsincode/meadowcast/internal/mediaplayer"
	"github.com/friendsincode/meadowcast/internal/playback"
)

var (
	playScenePath string
	playVolume    int
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a single scene folder standalone, without the scheduler or API",
	Long: `play boots the playback engine directly against one scene folder and
crossfades/shuffles exactly as the daemon would, until interrupted. Useful
for auditioning a scene folder before wiring a routine to it.

Examples:
  meadowcastd play --scene ./scenes/rainy-cafe
  meadowcastd play --scene ./scenes/rainy-cafe --volume 40`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVar(&playScenePath, "scene", "", "Scene directory to play (required)")
	playCmd.Flags().IntVar(&playVolume, "volume", 70, "Initial volume, 0-100")
	playCmd.MarkFlagRequired("scene")
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger := logging.Setup("development")

	notify := hub.New(logger, 32)
	handle := notify.Subscribe(func(n hub.Notification) {
		if n.Track != nil {
			if *n.Track == "" {
				fmt.Println("(idle)")
			} else {
				fmt.Printf("now playing: %s\n", *n.Track)
			}
		}
		if n.Volume != nil {
			fmt.Printf("volume: %d\n", *n.Volume)
		}
	})
	defer notify.Unsubscribe(handle)

	engine := playback.New(mediaplayer.NewBeepOpener(), notify, logger)
	volume := playVolume
	engine.PlayScene(playScenePath, &volume)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("stopping...")
	engine.Shutdown()
	return nil
}
