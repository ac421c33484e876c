package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/onnwee/vod-danmaku/danmaku"
)

var (
	colorGift  = lipgloss.Color("208") // orange
	colorSub   = lipgloss.Color("33")  // blue
	colorSC    = lipgloss.Color("196") // red
	colorClock = lipgloss.Color("240") // gray

	styleUser  = lipgloss.NewStyle().Bold(true)
	styleClock = lipgloss.NewStyle().Foreground(colorClock)
	styleGift  = lipgloss.NewStyle().Foreground(colorGift)
	styleSub   = lipgloss.NewStyle().Foreground(colorSub)
	styleSC    = lipgloss.NewStyle().Foreground(colorSC).Bold(true)
)

// TerminalRenderer writes one line per event. With Styled unset it emits
// plain text suitable for pipes.
type TerminalRenderer struct {
	w      io.Writer
	styled bool
	err    error
}

// NewTerminalRenderer writes to w, styling output when styled is true.
func NewTerminalRenderer(w io.Writer, styled bool) *TerminalRenderer {
	return &TerminalRenderer{w: w, styled: styled}
}

// Err returns the first write error.
func (t *TerminalRenderer) Err() error { return t.err }

func (t *TerminalRenderer) paint(s lipgloss.Style, text string) string {
	if !t.styled {
		return text
	}
	return s.Render(text)
}

func (t *TerminalRenderer) line(e danmaku.Event, body string) {
	if t.err != nil {
		return
	}
	clock := t.paint(styleClock, "["+FormatTimestamp(e.Timestamp)+"]")
	_, t.err = fmt.Fprintf(t.w, "%s %s\n", clock, body)
}

func (t *TerminalRenderer) Message(e danmaku.Event) {
	t.line(e, t.paint(styleUser, e.Username+":")+" "+e.Content)
}

func (t *TerminalRenderer) Gift(e danmaku.Event) {
	t.line(e, t.paint(styleGift, joinNonEmpty(e.Username, "赠送", e.GiftName, CountSuffix(e.Count))))
}

func (t *TerminalRenderer) Subscription(e danmaku.Event) {
	t.line(e, t.paint(styleSub, joinNonEmpty(e.Username, "续费", e.SubName, CountSuffix(e.Count))))
}

func (t *TerminalRenderer) Superchat(e danmaku.Event) {
	head := t.paint(styleSC, FormatPrice(e.Price)+" "+e.Username)
	t.line(e, head+" "+e.Content)
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
