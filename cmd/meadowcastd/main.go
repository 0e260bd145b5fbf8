/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meadowcastd",
	Short: "Scene-driven ambient music controller",
	Long: `meadowcastd plays looping, shuffled scene folders on a schedule,
crossfading between tracks and switching scenes at routine boundaries.

Examples:
  meadowcastd serve
  meadowcastd scan --root ./scenes
  meadowcastd play --scene ./scenes/rainy-cafe --volume 60`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
