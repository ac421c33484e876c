package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/onnwee/vod-danmaku/danmaku"
)

type recorder struct{ calls []string }

func (r *recorder) Message(danmaku.Event)      { r.calls = append(r.calls, "message") }
func (r *recorder) Gift(danmaku.Event)         { r.calls = append(r.calls, "gift") }
func (r *recorder) Subscription(danmaku.Event) { r.calls = append(r.calls, "sub") }
func (r *recorder) Superchat(danmaku.Event)    { r.calls = append(r.calls, "sc") }

func TestDispatchRoutesEveryKind(t *testing.T) {
	r := &recorder{}
	All([]danmaku.Event{
		{Kind: danmaku.KindSuperchat},
		{Kind: danmaku.KindMessage},
		{Kind: danmaku.KindSubscription},
		{Kind: danmaku.KindGift},
	}, r)
	want := "sc,message,sub,gift"
	if got := strings.Join(r.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestDispatchPanicsOnUnknownKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Dispatch(danmaku.Event{Kind: danmaku.Kind(42)}, &recorder{})
}

func TestFormatPrice(t *testing.T) {
	tests := map[int64]string{
		0:      "¥0.0",
		5000:   "¥5.0",
		1500:   "¥1.5",
		30000:  "¥30.0",
		1234:   "¥1.234",
		999000: "¥999.0",
	}
	for in, want := range tests {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCountSuffix(t *testing.T) {
	if CountSuffix(1) != "" || CountSuffix(0) != "" {
		t.Error("expected no suffix for count <= 1")
	}
	if got := CountSuffix(3); got != "×3" {
		t.Errorf("CountSuffix(3) = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[float64]string{
		0:       "0:00:00",
		59.9:    "0:00:59",
		61:      "0:01:01",
		3600:    "1:00:00",
		36610.5: "10:10:10",
		-3:      "0:00:00",
	}
	for in, want := range tests {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestViewsJSON(t *testing.T) {
	items := Views([]danmaku.Event{
		{ID: 0, Kind: danmaku.KindMessage, Timestamp: 12, Username: "amy", Content: "hi"},
		{ID: 1, Kind: danmaku.KindSuperchat, Timestamp: 30, UID: 2, HasUID: true, Username: "bob", Content: "thanks", Price: 5000},
		{ID: 2, Kind: danmaku.KindGift, Timestamp: 31, UID: 2, HasUID: true, Username: "bob", GiftName: "flower", Count: 1},
	})
	b, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got[0]["type"] != "message" || got[0]["clock"] != "0:00:12" {
		t.Errorf("message row = %v", got[0])
	}
	if _, ok := got[0]["uid"]; ok {
		t.Errorf("message without uid should omit it: %v", got[0])
	}
	if got[1]["type"] != "sc" || got[1]["display_price"] != "¥5.0" || got[1]["price"] != float64(5000) {
		t.Errorf("superchat row = %v", got[1])
	}
	if _, ok := got[2]["count_suffix"]; ok {
		t.Errorf("single gift should omit count_suffix: %v", got[2])
	}
}

func TestTerminalRendererPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf, false)
	All([]danmaku.Event{
		{Kind: danmaku.KindMessage, Timestamp: 5, Username: "amy", Content: "hi"},
		{Kind: danmaku.KindGift, Timestamp: 65, Username: "bob", GiftName: "flower", Count: 3},
		{Kind: danmaku.KindSubscription, Timestamp: 70, Username: "cat", SubName: "舰长", Count: 1},
		{Kind: danmaku.KindSuperchat, Timestamp: 3700, Username: "dan", Content: "gg", Price: 30000},
	}, r)
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	want := strings.Join([]string{
		"[0:00:05] amy: hi",
		"[0:01:05] bob 赠送 flower ×3",
		"[0:01:10] cat 续费 舰长",
		"[1:01:40] ¥30.0 dan gg",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTerminalRendererKeepsFirstError(t *testing.T) {
	r := NewTerminalRenderer(failWriter{}, true)
	r.Message(danmaku.Event{Username: "a"})
	r.Message(danmaku.Event{Username: "b"})
	if r.Err() == nil {
		t.Error("expected write error")
	}
}
