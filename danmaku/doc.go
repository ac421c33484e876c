// Package danmaku decodes the XML chat-replay documents stored next to each
// archived video into a typed, document-ordered list of events.
//
// A document has a single root element whose children are one event each:
//   - <d p="12.3,1,..." uid="42" user="bob">text</d>       a chat message
//   - <toast ts="30" uid="42" user="bob" role="舰长" count="1"/>  a subscription renewal
//   - <gift ts="31" uid="42" user="bob" giftname="..." count="5"/>
//   - <sc ts="40" uid="42" user="bob" price="30000">text</sc>  a superchat
//
// A recorder may also write a <metadata> header describing the room and the
// stream's start times; ParseDocument returns it as a Header.
//
// Unknown children are skipped but still consume an id, so ids stay equal to the
// element's position under the root. A malformed known element rejects the
// whole document with a *ParseError; no field is ever defaulted.
package danmaku
