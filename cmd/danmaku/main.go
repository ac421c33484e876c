// Command danmaku inspects archived chat documents from the terminal: decode a
// document, read its recording header, show the window visible at a playback
// position, run a chat search, derive restricted-video hashes and mint video
// ids.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var src sourceFlags

	rootCmd := &cobra.Command{
		Use:           "danmaku",
		Short:         "Danmaku replay tools - parse, window and search archived stream chat",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&src.cdn, "url", "", "CDN base URL; when set, <source> is a video uuid fetched from the CDN")
	rootCmd.PersistentFlags().DurationVar(&src.timeout, "timeout", defaultFetchTimeout, "CDN request timeout")
	rootCmd.PersistentFlags().StringVar(&src.color, "color", "auto", "styled output: auto, always or never")

	rootCmd.AddCommand(parseCmd(&src))
	rootCmd.AddCommand(infoCmd(&src))
	rootCmd.AddCommand(windowCmd(&src))
	rootCmd.AddCommand(searchCmd(&src))
	rootCmd.AddCommand(hashCmd())
	rootCmd.AddCommand(genIDCmd())
	return rootCmd
}
