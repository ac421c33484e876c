package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/metadata"
	"github.com/onnwee/vod-danmaku/render"
)

const defaultFetchTimeout = 10 * time.Second

type sourceFlags struct {
	cdn     string
	timeout time.Duration
	color   string
}

// load reads events from a file ("-" for stdin) or, with --url, from the CDN.
// A video without a chat document loads as an empty list.
func (s *sourceFlags) load(ctx context.Context, stdin io.Reader, source string) ([]danmaku.Event, error) {
	_, events, err := s.read(ctx, stdin, source, false)
	return events, err
}

// loadDocument is load plus the recording header, nil when there is none.
func (s *sourceFlags) loadDocument(ctx context.Context, stdin io.Reader, source string) (*danmaku.Header, []danmaku.Event, error) {
	return s.read(ctx, stdin, source, true)
}

func (s *sourceFlags) read(ctx context.Context, stdin io.Reader, source string, withHeader bool) (*danmaku.Header, []danmaku.Event, error) {
	parse := func(r io.Reader) (*danmaku.Header, []danmaku.Event, error) {
		if withHeader {
			return danmaku.ParseDocument(r)
		}
		events, err := danmaku.Parse(r)
		return nil, events, err
	}
	if s.cdn != "" {
		urls, err := metadata.NewURLs(s.cdn)
		if err != nil {
			return nil, nil, err
		}
		client := metadata.NewClient(urls, metadata.WithHTTPClient(&http.Client{Timeout: s.timeout}))
		var (
			header *danmaku.Header
			events []danmaku.Event
		)
		if withHeader {
			header, events, err = client.FetchDocument(ctx, source)
		} else {
			events, err = client.Fetch(ctx, source)
		}
		if err != nil {
			return nil, nil, err
		}
		if events == nil {
			events = []danmaku.Event{}
		}
		return header, events, nil
	}
	if source == "-" {
		return parse(stdin)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, fmt.Errorf("open chat document: %w", err)
	}
	defer f.Close()
	header, events, err := parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", source, err)
	}
	return header, events, nil
}

// renderer picks styled output for terminals unless --color says otherwise.
func (s *sourceFlags) renderer(w io.Writer) (*render.TerminalRenderer, error) {
	var styled bool
	switch s.color {
	case "always":
		styled = true
	case "never":
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			styled = term.IsTerminal(int(f.Fd()))
		}
	default:
		return nil, fmt.Errorf("invalid --color %q: want auto, always or never", s.color)
	}
	return render.NewTerminalRenderer(w, styled), nil
}
