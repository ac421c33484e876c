// Package search implements the chat search box: whitespace separated tokens
// combined with AND.
//
//	uid:<n>       author uid equals n
//	uname:<p>     username starts with p (case-sensitive)
//	anything else message content contains the token
//
// A bare "uname:" means the user has not typed a name yet and matches nothing.
package search

import (
	"slices"
	"strconv"
	"strings"

	"github.com/onnwee/vod-danmaku/danmaku"
)

// TokenKind identifies a query token.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenUID
	TokenUname
)

func (k TokenKind) String() string {
	switch k {
	case TokenUID:
		return "uid"
	case TokenUname:
		return "uname"
	default:
		return "text"
	}
}

// Token is one parsed query term.
type Token struct {
	Kind  TokenKind
	Value string
	uid   int64
	valid bool // for TokenUID, whether Value is an integer
}

// Query is a parsed search string.
type Query struct {
	Raw    string
	Tokens []Token
}

// ParseQuery splits raw on whitespace and classifies each token.
func ParseQuery(raw string) Query {
	q := Query{Raw: raw}
	for _, f := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(f, "uid:"):
			v := strings.TrimPrefix(f, "uid:")
			n, err := strconv.ParseInt(v, 10, 64)
			q.Tokens = append(q.Tokens, Token{Kind: TokenUID, Value: v, uid: n, valid: err == nil})
		case strings.HasPrefix(f, "uname:"):
			q.Tokens = append(q.Tokens, Token{Kind: TokenUname, Value: strings.TrimPrefix(f, "uname:")})
		default:
			q.Tokens = append(q.Tokens, Token{Kind: TokenText, Value: f})
		}
	}
	return q
}

// Empty reports whether the query has no tokens.
func (q Query) Empty() bool { return len(q.Tokens) == 0 }

// AwaitingInput reports whether the query contains a bare "uname:" token.
func (q Query) AwaitingInput() bool {
	for _, t := range q.Tokens {
		if t.Kind == TokenUname && t.Value == "" {
			return true
		}
	}
	return false
}

// Match reports whether e satisfies a single token.
func (t Token) Match(e danmaku.Event) bool {
	switch t.Kind {
	case TokenUID:
		return t.valid && e.HasUID && e.UID == t.uid
	case TokenUname:
		return t.Value != "" && strings.HasPrefix(e.Username, t.Value)
	default:
		return strings.Contains(e.Content, t.Value)
	}
}

// Apply filters events by every token, left to right. Only message events are
// considered and the result keeps the input order. It is never nil.
func (q Query) Apply(events []danmaku.Event) []danmaku.Event {
	out := danmaku.Messages(events)
	if q.AwaitingInput() {
		return []danmaku.Event{}
	}
	for _, t := range q.Tokens {
		out = slices.DeleteFunc(out, func(e danmaku.Event) bool { return !t.Match(e) })
	}
	return out
}

// Filter parses raw and applies it to events, returning matches in document
// order regardless of the order of events.
func Filter(events []danmaku.Event, raw string) []danmaku.Event {
	if !slices.IsSortedFunc(events, func(a, b danmaku.Event) int { return a.ID - b.ID }) {
		events = danmaku.SortByID(events)
	}
	return ParseQuery(raw).Apply(events)
}
