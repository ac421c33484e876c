package danmaku

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidTime  = errors.New("invalid time")
)

// headerTag is the recorder's room metadata element.
const headerTag = "metadata"

// Header describes the recording a document belongs to, as written by the
// stream recorder in a <metadata> child of the root:
//
//	<metadata>
//	  <room_id>21452505</room_id>
//	  <room_title>...</room_title>
//	  <live_start_time>2024-05-01T20:00:00+08:00</live_start_time>
//	  <record_start_time>2024-05-01T20:03:12+08:00</record_start_time>
//	</metadata>
//
// Older recordings omit record_start_time; RecordStart then equals LiveStart.
type Header struct {
	RoomID      int64
	RoomTitle   string
	LiveStart   time.Time
	RecordStart time.Time
}

// StreamTime is LiveStart in unix milliseconds, the catalog's stream_time.
func (h Header) StreamTime() int64 { return h.LiveStart.UnixMilli() }

// RecordTime is RecordStart in unix milliseconds, the catalog's record_time.
func (h Header) RecordTime() int64 { return h.RecordStart.UnixMilli() }

// decodeHeader consumes a <metadata> element, including its end tag. Unknown
// children are ignored.
func decodeHeader(dec *xml.Decoder, index int) (*Header, error) {
	fields := map[string]string{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("danmaku: element %d <%s>: %w", index, headerTag, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			text, err := readText(dec)
			if err != nil {
				return nil, fmt.Errorf("danmaku: element %d <%s>: %w", index, headerTag, err)
			}
			if _, seen := fields[t.Name.Local]; !seen {
				fields[t.Name.Local] = strings.TrimSpace(text)
			}
		case xml.EndElement:
			return headerFromFields(fields, index)
		}
	}
}

func headerFromFields(fields map[string]string, index int) (*Header, error) {
	fail := func(field string, err error) error {
		return &ParseError{Index: index, Tag: headerTag, Field: field, Err: err}
	}
	need := func(field string) (string, error) {
		v, ok := fields[field]
		if !ok || v == "" {
			return "", fail(field, ErrMissingField)
		}
		return v, nil
	}
	stamp := func(field, v string) (time.Time, error) {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fail(field, fmt.Errorf("%w: %q", ErrInvalidTime, v))
		}
		return ts.UTC(), nil
	}

	var h Header
	v, err := need("room_id")
	if err != nil {
		return nil, err
	}
	if h.RoomID, err = strconv.ParseInt(v, 10, 64); err != nil || h.RoomID < 0 {
		return nil, fail("room_id", fmt.Errorf("%w: %q", ErrInvalidNumber, v))
	}
	title, ok := fields["room_title"]
	if !ok {
		return nil, fail("room_title", ErrMissingField)
	}
	h.RoomTitle = title
	if v, err = need("live_start_time"); err != nil {
		return nil, err
	}
	if h.LiveStart, err = stamp("live_start_time", v); err != nil {
		return nil, err
	}
	h.RecordStart = h.LiveStart
	if v := fields["record_start_time"]; v != "" {
		if h.RecordStart, err = stamp("record_start_time", v); err != nil {
			return nil, err
		}
	}
	return &h, nil
}
