// Package render maps chat events to their per-kind presentation.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/onnwee/vod-danmaku/danmaku"
)

// Renderer has one method per event kind. Each method only reads the fields
// that belong to its kind.
type Renderer interface {
	Message(e danmaku.Event)
	Gift(e danmaku.Event)
	Subscription(e danmaku.Event)
	Superchat(e danmaku.Event)
}

// Dispatch routes e to the matching Renderer method. The parser never emits
// other kinds, so an unknown kind is a bug and panics.
func Dispatch(e danmaku.Event, r Renderer) {
	switch e.Kind {
	case danmaku.KindMessage:
		r.Message(e)
	case danmaku.KindGift:
		r.Gift(e)
	case danmaku.KindSubscription:
		r.Subscription(e)
	case danmaku.KindSuperchat:
		r.Superchat(e)
	default:
		panic(fmt.Sprintf("render: unknown event kind %d", int(e.Kind)))
	}
}

// All dispatches every event in order.
func All(events []danmaku.Event, r Renderer) {
	for _, e := range events {
		Dispatch(e, r)
	}
}

// FormatPrice converts minor units to a yuan label with at least one decimal,
// e.g. 5000 -> "¥5.0", 1500 -> "¥1.5".
func FormatPrice(price int64) string {
	s := strconv.FormatFloat(float64(price)/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return "¥" + s
}

// CountSuffix returns "×n" when n > 1 and "" otherwise.
func CountSuffix(n int) string {
	if n > 1 {
		return "×" + strconv.Itoa(n)
	}
	return ""
}

// FormatTimestamp renders seconds as H:MM:SS, truncating fractions.
func FormatTimestamp(sec float64) string {
	if math.IsNaN(sec) || sec < 0 {
		sec = 0
	}
	total := int64(sec)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}

// ViewItem is the JSON row the web player consumes.
type ViewItem struct {
	ID           int          `json:"id"`
	Type         danmaku.Kind `json:"type"`
	Timestamp    float64      `json:"timestamp"`
	Clock        string       `json:"clock"`
	UID          *int64       `json:"uid,omitempty"`
	Username     string       `json:"username"`
	Content      string       `json:"content,omitempty"`
	GiftName     string       `json:"gift_name,omitempty"`
	SubName      string       `json:"sub_name,omitempty"`
	Count        int          `json:"count,omitempty"`
	CountSuffix  string       `json:"count_suffix,omitempty"`
	Price        *int64       `json:"price,omitempty"`
	DisplayPrice string       `json:"display_price,omitempty"`
}

// ViewRenderer collects ViewItems.
type ViewRenderer struct {
	Items []ViewItem
}

// NewViewRenderer returns a renderer whose Items start empty but non-nil.
func NewViewRenderer(capacity int) *ViewRenderer {
	return &ViewRenderer{Items: make([]ViewItem, 0, capacity)}
}

func base(e danmaku.Event) ViewItem {
	item := ViewItem{
		ID:        e.ID,
		Type:      e.Kind,
		Timestamp: e.Timestamp,
		Clock:     FormatTimestamp(e.Timestamp),
		Username:  e.Username,
	}
	if e.HasUID {
		uid := e.UID
		item.UID = &uid
	}
	return item
}

func (v *ViewRenderer) Message(e danmaku.Event) {
	item := base(e)
	item.Content = e.Content
	v.Items = append(v.Items, item)
}

func (v *ViewRenderer) Gift(e danmaku.Event) {
	item := base(e)
	item.GiftName = e.GiftName
	item.Count = e.Count
	item.CountSuffix = CountSuffix(e.Count)
	v.Items = append(v.Items, item)
}

func (v *ViewRenderer) Subscription(e danmaku.Event) {
	item := base(e)
	item.SubName = e.SubName
	item.Count = e.Count
	item.CountSuffix = CountSuffix(e.Count)
	v.Items = append(v.Items, item)
}

func (v *ViewRenderer) Superchat(e danmaku.Event) {
	item := base(e)
	item.Content = e.Content
	price := e.Price
	item.Price = &price
	item.DisplayPrice = FormatPrice(e.Price)
	v.Items = append(v.Items, item)
}

// Views renders events into ViewItems.
func Views(events []danmaku.Event) []ViewItem {
	v := NewViewRenderer(len(events))
	All(events, v)
	return v.Items
}
