package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/vod-danmaku/crypto"
	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/db"
	"github.com/onnwee/vod-danmaku/render"
)

// videoRecord is the catalog row a document's header describes.
type videoRecord struct {
	db.Video
	Hash   *string        `json:"restricted_hash"`
	Events int            `json:"events"`
	Counts map[string]int `json:"counts"`
}

func newVideoRecord(id string, h *danmaku.Header, events []danmaku.Event, cover, password string) videoRecord {
	rec := videoRecord{
		Video: db.Video{
			UUID:       id,
			Title:      h.RoomTitle,
			Room:       h.RoomID,
			StreamTime: h.StreamTime(),
			RecordTime: h.RecordTime(),
		},
		Events: len(events),
		Counts: danmaku.CountByKind(events),
	}
	if cover != "" {
		rec.Cover = &cover
	}
	if password != "" {
		hash := crypto.RestrictedHash(id, password)
		rec.Restricted = 1
		rec.Hash = &hash
	}
	return rec
}

func infoCmd(src *sourceFlags) *cobra.Command {
	var (
		id       string
		cover    string
		password string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "info <source>",
		Short: "Show the recording header of a chat document as a catalog entry",
		Long: `Read the <metadata> header a recorder writes into a chat document and
print the catalog entry it describes: room, title, and stream and record
start times in unix milliseconds. The uuid defaults to the CDN uuid with
--url, and to a fresh one otherwise. --password marks the video restricted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, events, err := src.loadDocument(cmd.Context(), cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if header == nil {
				return errors.New("document has no <metadata> header")
			}
			switch {
			case id != "":
			case src.cdn != "":
				id = args[0]
			default:
				if id, err = newVideoID(); err != nil {
					return err
				}
			}
			id = strings.ToLower(id)
			rec := newVideoRecord(id, header, events, cover, password)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintf(out, "uuid:        %s\n", rec.UUID)
			fmt.Fprintf(out, "room:        %d\n", rec.Room)
			fmt.Fprintf(out, "title:       %s\n", rec.Title)
			fmt.Fprintf(out, "stream time: %d (%s)\n", rec.StreamTime, header.LiveStart.Format(time.RFC3339))
			fmt.Fprintf(out, "record time: %d (%s, +%s)\n", rec.RecordTime, header.RecordStart.Format(time.RFC3339),
				render.FormatTimestamp(header.RecordStart.Sub(header.LiveStart).Seconds()))
			if rec.Hash != nil {
				fmt.Fprintf(out, "restricted:  %s\n", *rec.Hash)
			}
			summary(cmd.ErrOrStderr(), events)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "uuid", "", "video uuid (default: generated, or the CDN uuid with --url)")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image hash")
	cmd.Flags().StringVar(&password, "password", "", "password for a restricted video")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the entry as JSON")
	return cmd
}
