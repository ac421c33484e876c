package danmaku

import (
	"fmt"
	"slices"
)

// Kind discriminates the event variants.
type Kind int

const (
	KindMessage Kind = iota
	KindGift
	KindSubscription
	KindSuperchat
)

// String returns the wire name used by the front-end ("message", "gift", "sub", "sc").
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindGift:
		return "gift"
	case KindSubscription:
		return "sub"
	case KindSuperchat:
		return "sc"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindMessage || k > KindSuperchat {
		return nil, fmt.Errorf("danmaku: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "message":
		*k = KindMessage
	case "gift":
		*k = KindGift
	case "sub":
		*k = KindSubscription
	case "sc":
		*k = KindSuperchat
	default:
		return fmt.Errorf("danmaku: unknown kind %q", string(b))
	}
	return nil
}

// Event is one entry of a chat replay. Which of the kind-specific fields are
// meaningful depends on Kind:
//
//	KindMessage       Content
//	KindGift          GiftName, Count
//	KindSubscription  SubName, Count
//	KindSuperchat     Content, Price (minor units, 1000 per yuan)
type Event struct {
	ID        int
	Kind      Kind
	Timestamp float64 // seconds from stream start
	UID       int64
	HasUID    bool // false for older messages recorded without a uid
	Username  string

	Content  string
	GiftName string
	SubName  string
	Count    int
	Price    int64
}

// Messages returns the message events of events, keeping their order.
func Messages(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Kind == KindMessage {
			out = append(out, e)
		}
	}
	return out
}

// CountByKind tallies events per kind name.
func CountByKind(events []Event) map[string]int {
	out := make(map[string]int, 4)
	for _, e := range events {
		out[e.Kind.String()]++
	}
	return out
}

// SortByID returns a copy of events in document order.
func SortByID(events []Event) []Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b Event) int { return a.ID - b.ID })
	return out
}
