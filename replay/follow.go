// Package replay ties a chat replay to the playback position of a video.
//
// A Controller turns position updates into a bounded display window and
// decides when the view should auto-scroll. A Session owns the event set of
// the video currently on screen and discards loads that finish after the user
// has navigated elsewhere.
package replay

import (
	"fmt"
	"math"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/timeline"
)

// DefaultCap is the number of events kept in the display window.
const DefaultCap = 100

// Mode selects whether the display follows playback.
type Mode int

const (
	// ModeFollowing recomputes the window on every position update.
	ModeFollowing Mode = iota
	// ModeBrowsing detaches the display from playback.
	ModeBrowsing
)

func (m Mode) String() string {
	switch m {
	case ModeFollowing:
		return "following"
	case ModeBrowsing:
		return "browsing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "following" or "browsing". Empty means following.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "following", "follow":
		return ModeFollowing, nil
	case "browsing", "browse":
		return ModeBrowsing, nil
	default:
		return ModeFollowing, fmt.Errorf("replay: unknown mode %q", s)
	}
}

// Window is the slice sorted[Start:End) of the time-ordered events.
type Window struct {
	Start  int
	End    int
	Events []danmaku.Event
}

// Option configures a Controller.
type Option func(*Controller)

// WithCap sets the window size. Values <= 0 disable the cap.
func WithCap(n int) Option {
	return func(c *Controller) { c.limit = n }
}

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithScrollHook registers fn to run whenever Update reports an auto-scroll.
func WithScrollHook(fn func(Window)) Option {
	return func(c *Controller) { c.onScroll = fn }
}

// Controller is not safe for concurrent use; Session serializes access.
type Controller struct {
	idx      *timeline.Index
	limit    int
	mode     Mode
	onScroll func(Window)
	last     Window
}

// NewController builds a following controller over idx.
func NewController(idx *timeline.Index, opts ...Option) *Controller {
	c := &Controller{idx: idx, limit: DefaultCap, mode: ModeFollowing}
	for _, o := range opts {
		o(c)
	}
	c.last = Window{Events: []danmaku.Event{}}
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// SetMode switches between following and browsing. Switching back to
// following takes effect on the next Update.
func (c *Controller) SetMode(m Mode) { c.mode = m }

// Current returns the last computed window.
func (c *Controller) Current() Window { return c.last }

// Update recomputes the window for playback position pos and reports whether
// the view should auto-scroll, which happens exactly when the window end moves.
// Negative and NaN positions are treated as 0. In browsing mode the previous
// window is returned and scroll is never reported.
func (c *Controller) Update(pos float64) (Window, bool) {
	if c.mode == ModeBrowsing {
		return c.last, false
	}
	if math.IsNaN(pos) || pos < 0 {
		pos = 0
	}
	start, end := c.idx.Bounds(pos, c.limit)
	if end == c.last.End {
		return c.last, false
	}
	c.last = Window{Start: start, End: end, Events: c.idx.Slice(start, end)}
	if c.onScroll != nil {
		c.onScroll(c.last)
	}
	return c.last, true
}

// Browse returns the full time-sorted list, the view shown while browsing.
func (c *Controller) Browse() []danmaku.Event { return c.idx.Events() }
