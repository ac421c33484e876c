package danmaku

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingAttr      = errors.New("missing required attribute")
	ErrInvalidNumber    = errors.New("invalid integer")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidCount     = errors.New("count must be at least 1")
	ErrNegativePrice    = errors.New("price must not be negative")

	ErrNoRoot        = errors.New("danmaku: document has no root element")
	ErrMultipleRoots = errors.New("danmaku: document has more than one root element")
)

// ParseError reports a malformed child element. Index is the element's
// position under the root, which is also the id it would have received. Attr
// names a bad attribute of an event, Field a bad child of the header.
type ParseError struct {
	Index int
	Tag   string
	Attr  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Attr != "":
		return fmt.Sprintf("danmaku: element %d <%s> attribute %q: %v", e.Index, e.Tag, e.Attr, e.Err)
	case e.Field != "":
		return fmt.Sprintf("danmaku: element %d <%s> field <%s>: %v", e.Index, e.Tag, e.Field, e.Err)
	default:
		return fmt.Sprintf("danmaku: element %d <%s>: %v", e.Index, e.Tag, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseBytes is Parse over an in-memory document.
func ParseBytes(b []byte) ([]Event, error) {
	return Parse(bytes.NewReader(b))
}

// Parse decodes a danmaku document. The returned events are in document order
// and each ID is the element's index among all children of the root. A
// <metadata> header is skipped like any other unknown element.
func Parse(r io.Reader) ([]Event, error) {
	_, events, err := parse(r, false)
	return events, err
}

// ParseDocument is Parse that also decodes the recording header. The header
// is nil when the document has none; when there are several the first wins.
// The header element still consumes its id.
func ParseDocument(r io.Reader) (*Header, []Event, error) {
	return parse(r, true)
}

func parse(r io.Reader, withHeader bool) (*Header, []Event, error) {
	var header *Header
	dec := xml.NewDecoder(r)
	events := make([]Event, 0)
	index := 0
	depth := 0
	rooted := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("danmaku: decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if rooted {
					return nil, nil, ErrMultipleRoots
				}
				rooted = true
				depth = 1
				continue
			}
			if withHeader && header == nil && t.Name.Local == headerTag {
				h, err := decodeHeader(dec, index)
				if err != nil {
					return nil, nil, err
				}
				header = h
				index++
				continue
			}
			ev, ok, err := decodeElement(dec, t, index)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				events = append(events, ev)
			}
			index++
		case xml.EndElement:
			depth--
		}
	}
	if !rooted {
		return nil, nil, ErrNoRoot
	}
	return header, events, nil
}

// decodeElement consumes one child of the root, including its end tag.
func decodeElement(dec *xml.Decoder, start xml.StartElement, index int) (Event, bool, error) {
	el := element{tag: start.Name.Local, index: index, attrs: start.Attr}
	var (
		ev  Event
		err error
	)
	switch el.tag {
	case "d", "sc":
		text, terr := readText(dec)
		if terr != nil {
			return Event{}, false, fmt.Errorf("danmaku: element %d <%s>: %w", index, el.tag, terr)
		}
		if el.tag == "d" {
			ev, err = el.message(text)
		} else {
			ev, err = el.superchat(text)
		}
	case "toast", "gift":
		if serr := dec.Skip(); serr != nil {
			return Event{}, false, fmt.Errorf("danmaku: element %d <%s>: %w", index, el.tag, serr)
		}
		if el.tag == "toast" {
			ev, err = el.subscription()
		} else {
			ev, err = el.gift()
		}
	default:
		if serr := dec.Skip(); serr != nil {
			return Event{}, false, fmt.Errorf("danmaku: element %d <%s>: %w", index, el.tag, serr)
		}
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// readText returns the concatenated character data of the current element and
// its descendants, stopping after the element's end tag.
func readText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return sb.String(), nil
}

type element struct {
	tag   string
	index int
	attrs []xml.Attr
}

func (el element) fail(attr string, err error) error {
	return &ParseError{Index: el.index, Tag: el.tag, Attr: attr, Err: err}
}

func (el element) lookup(name string) (string, bool) {
	for _, a := range el.attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (el element) str(name string) (string, error) {
	v, ok := el.lookup(name)
	if !ok {
		return "", el.fail(name, ErrMissingAttr)
	}
	return v, nil
}

func (el element) integer(name string) (int64, error) {
	v, err := el.str(name)
	if err != nil {
		return 0, err
	}
	return el.parseInt(name, v)
}

func (el element) optionalInteger(name string) (int64, bool, error) {
	v, ok := el.lookup(name)
	if !ok {
		return 0, false, nil
	}
	n, err := el.parseInt(name, v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (el element) parseInt(name, v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, el.fail(name, fmt.Errorf("%w: %q", ErrInvalidNumber, v))
	}
	return n, nil
}

func (el element) seconds(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, el.fail(name, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v))
	}
	return f, nil
}

func (el element) timestamp() (float64, error) {
	v, err := el.str("ts")
	if err != nil {
		return 0, err
	}
	return el.seconds("ts", v)
}

func (el element) count() (int, error) {
	n, err := el.integer("count")
	if err != nil {
		return 0, err
	}
	if n < 1 || n > math.MaxInt32 {
		return 0, el.fail("count", fmt.Errorf("%w: %d", ErrInvalidCount, n))
	}
	return int(n), nil
}

// message decodes <d>. uid and user are optional: older recordings carry
// only the p attribute.
func (el element) message(text string) (Event, error) {
	p, err := el.str("p")
	if err != nil {
		return Event{}, err
	}
	first, _, _ := strings.Cut(p, ",")
	ts, err := el.seconds("p", first)
	if err != nil {
		return Event{}, err
	}
	uid, hasUID, err := el.optionalInteger("uid")
	if err != nil {
		return Event{}, err
	}
	user, _ := el.lookup("user")
	return Event{
		ID:        el.index,
		Kind:      KindMessage,
		Timestamp: ts,
		UID:       uid,
		HasUID:    hasUID,
		Username:  user,
		Content:   text,
	}, nil
}

// common decodes the ts/uid/user triple shared by toast, gift and sc.
func (el element) common(kind Kind) (Event, error) {
	ts, err := el.timestamp()
	if err != nil {
		return Event{}, err
	}
	uid, err := el.integer("uid")
	if err != nil {
		return Event{}, err
	}
	user, err := el.str("user")
	if err != nil {
		return Event{}, err
	}
	return Event{ID: el.index, Kind: kind, Timestamp: ts, UID: uid, HasUID: true, Username: user}, nil
}

func (el element) subscription() (Event, error) {
	ev, err := el.common(KindSubscription)
	if err != nil {
		return Event{}, err
	}
	if ev.SubName, err = el.str("role"); err != nil {
		return Event{}, err
	}
	if ev.Count, err = el.count(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (el element) gift() (Event, error) {
	ev, err := el.common(KindGift)
	if err != nil {
		return Event{}, err
	}
	if ev.GiftName, err = el.str("giftname"); err != nil {
		return Event{}, err
	}
	if ev.Count, err = el.count(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (el element) superchat(text string) (Event, error) {
	ev, err := el.common(KindSuperchat)
	if err != nil {
		return Event{}, err
	}
	price, err := el.integer("price")
	if err != nil {
		return Event{}, err
	}
	if price < 0 {
		return Event{}, el.fail("price", fmt.Errorf("%w: %d", ErrNegativePrice, price))
	}
	ev.Price = price
	ev.Content = text
	return ev, nil
}
