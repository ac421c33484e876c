package replay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/search"
	"github.com/onnwee/vod-danmaku/timeline"
)

// Loader fetches the events of one video. A nil slice with a nil error means
// the video has no chat log.
type Loader interface {
	Load(ctx context.Context, uuid string) ([]danmaku.Event, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, uuid string) ([]danmaku.Event, error)

func (f LoaderFunc) Load(ctx context.Context, uuid string) ([]danmaku.Event, error) {
	return f(ctx, uuid)
}

// SeekFunc repositions the media element to ts seconds.
type SeekFunc func(ts float64)

// State is a snapshot of a Session.
type State struct {
	UUID    string
	Loading bool
	Err     error
	Events  int
	Mode    Mode
}

// Session holds the chat replay of the video currently being watched. Methods
// are safe for concurrent use.
type Session struct {
	loader Loader
	seek   SeekFunc
	opts   []Option
	log    *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	uuid    string
	loading bool
	err     error
	events  []danmaku.Event
	memo    timeline.Memo
	ctrl    *Controller
	mode    Mode
	wg      sync.WaitGroup
}

// NewSession returns an empty session. opts configure the Controller built
// for each loaded video.
func NewSession(loader Loader, seek SeekFunc, opts ...Option) *Session {
	s := &Session{
		loader: loader,
		seek:   seek,
		opts:   opts,
		log:    slog.Default().With(slog.String("component", "replay")),
	}
	defaults := &Controller{}
	for _, o := range opts {
		o(defaults)
	}
	s.mode = defaults.mode
	return s
}

// Navigate abandons any in-flight load and starts loading uuid. The returned
// channel is closed once this load has been applied or discarded.
func (s *Session) Navigate(ctx context.Context, uuid string) <-chan struct{} {
	done := make(chan struct{})
	lctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.uuid = uuid
	s.loading = true
	s.err = nil
	s.events = nil
	s.ctrl = nil
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()
		events, err := s.loader.Load(lctx, uuid)
		s.apply(gen, uuid, events, err)
	}()
	return done
}

func (s *Session) apply(gen uint64, uuid string, events []danmaku.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || uuid != s.uuid {
		s.log.Debug("discarding stale chat load", slog.String("uuid", uuid))
		return
	}
	s.loading = false
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("chat load failed", slog.String("uuid", uuid), slog.Any("err", err))
		}
		s.err = err
		return
	}
	if events == nil {
		events = []danmaku.Event{}
	}
	s.events = events
	opts := append(append([]Option{}, s.opts...), WithMode(s.mode))
	s.ctrl = NewController(s.memo.Get(events), opts...)
	s.log.Debug("chat loaded", slog.String("uuid", uuid), slog.Int("events", len(events)))
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{UUID: s.uuid, Loading: s.loading, Err: s.err, Events: len(s.events), Mode: s.mode}
}

// Update feeds a playback position to the current video's controller. It
// returns an empty window while nothing is loaded.
func (s *Session) Update(pos float64) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return Window{Events: []danmaku.Event{}}, false
	}
	return s.ctrl.Update(pos)
}

// SetMode switches between following and browsing for this and later loads.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	if s.ctrl != nil {
		s.ctrl.SetMode(m)
	}
}

// Browse returns the full time-sorted list of the current video.
func (s *Session) Browse() []danmaku.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return []danmaku.Event{}
	}
	return s.ctrl.Browse()
}

// Search filters the current video's messages, independent of playback.
func (s *Session) Search(raw string) []danmaku.Event {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	return search.Filter(events, raw)
}

// Seek asks the host to jump playback to ts.
func (s *Session) Seek(ts float64) {
	if s.seek != nil {
		s.seek(ts)
	}
}

// Close cancels any in-flight load, drops the loaded video and waits for the
// load goroutine to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.loading = false
	s.events = nil
	s.ctrl = nil
	s.mu.Unlock()
	s.wg.Wait()
}
