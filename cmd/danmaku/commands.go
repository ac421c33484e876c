package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/render"
	"github.com/onnwee/vod-danmaku/replay"
	"github.com/onnwee/vod-danmaku/search"
	"github.com/onnwee/vod-danmaku/timeline"
)

var kindOrder = []danmaku.Kind{danmaku.KindMessage, danmaku.KindGift, danmaku.KindSubscription, danmaku.KindSuperchat}

// emit writes events as JSON rows or rendered lines.
func emit(cmd *cobra.Command, src *sourceFlags, events []danmaku.Event, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(render.Views(events))
	}
	r, err := src.renderer(out)
	if err != nil {
		return err
	}
	render.All(events, r)
	return r.Err()
}

func summary(w io.Writer, events []danmaku.Event) {
	counts := danmaku.CountByKind(events)
	parts := make([]string, 0, len(kindOrder))
	for _, k := range kindOrder {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k.String()], k))
	}
	fmt.Fprintf(w, "%d events: %s\n", len(events), strings.Join(parts, ", "))
}

func parseCmd(src *sourceFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <source>",
		Short: "Decode a chat document and print every event in document order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := src.load(cmd.Context(), cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if err := emit(cmd, src, events, asJSON); err != nil {
				return err
			}
			summary(cmd.ErrOrStderr(), events)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON rows instead of text")
	return cmd
}

func windowCmd(src *sourceFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "window <source> <seconds>",
		Short: "Show the chat visible at a playback position",
		Long: `Show the newest events at or before the playback position, the window a
following player displays. --cap bounds the window size.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[1], err)
			}
			events, err := src.load(cmd.Context(), cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctrl := replay.NewController(timeline.New(events), replay.WithCap(limit))
			win, _ := ctrl.Update(pos)
			fmt.Fprintf(cmd.ErrOrStderr(), "window [%d, %d) of %d at %s\n", win.Start, win.End, len(events), render.FormatTimestamp(max(pos, 0)))
			return emit(cmd, src, win.Events, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "cap", replay.DefaultCap, "maximum number of events in the window")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON rows instead of text")
	return cmd
}

func searchCmd(src *sourceFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <source> <query>...",
		Short: "Search chat messages",
		Long: `Search chat messages. Query terms are ANDed:
  uid:<id>        author id equals <id>
  uname:<prefix>  username starts with <prefix> (case-sensitive)
  <text>          message contains <text>`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := src.load(cmd.Context(), cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			raw := strings.Join(args[1:], " ")
			if search.ParseQuery(raw).AwaitingInput() {
				fmt.Fprintln(cmd.ErrOrStderr(), "uname: needs a username prefix")
			}
			matches := search.Filter(events, raw)
			if err := emit(cmd, src, matches, asJSON); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d messages\n", len(matches), len(danmaku.Messages(events)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON rows instead of text")
	return cmd
}
