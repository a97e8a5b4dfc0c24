// Package gate decides whether the bot may respond to an incoming update,
// based on a user whitelist, a group whitelist, and a mention/reply check.
package gate

import "strings"

// Reason explains a permission decision. It is used for logging only; the
// callers branch solely on Decision.Allowed.
type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonUserNotAllowed  Reason = "user_not_allowed"
	ReasonGroupNotAllowed Reason = "group_not_allowed"
	ReasonNotDirected     Reason = "not_directed_at_bot"
)

// Decision is the outcome of evaluating one message.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// MentionSpan is a Telegram "mention" entity projected onto the message text.
type MentionSpan struct {
	Offset int
	Length int
}

// Message carries the fields of an incoming update that the gate inspects.
// It is transient: built per update and discarded after handling.
type Message struct {
	UserID        int64
	ChatID        int64
	Private       bool // private chat vs. group/supergroup
	Text          string
	Mentions      []MentionSpan
	ReplyToUserID int64 // sender of the replied-to message, 0 if none
	IsStatusCmd   bool  // /status is exempt from the group-directed check
}

// Gate holds the immutable whitelists and the bot identity. Construct one at
// startup and inject it; it is safe for concurrent use.
type Gate struct {
	users    map[int64]bool
	groups   map[int64]bool
	botID    int64
	username string // without the @ prefix, lowercased
}

// New builds a Gate from the configured ID lists. The bot's own ID and
// username are learned at startup from getMe.
func New(allowedUsers, allowedGroups []int64, botID int64, botUsername string) *Gate {
	g := &Gate{
		users:    make(map[int64]bool, len(allowedUsers)),
		groups:   make(map[int64]bool, len(allowedGroups)),
		botID:    botID,
		username: strings.ToLower(strings.TrimPrefix(botUsername, "@")),
	}
	for _, id := range allowedUsers {
		g.users[id] = true
	}
	for _, id := range allowedGroups {
		g.groups[id] = true
	}
	return g
}

// UserAllowed reports whether the user may use the bot. An empty user
// whitelist allows everyone.
func (g *Gate) UserAllowed(userID int64) bool {
	if len(g.users) == 0 {
		return true
	}
	return g.users[userID]
}

// GroupAllowed reports whether the group may use the bot. An empty group
// whitelist denies all groups.
func (g *Gate) GroupAllowed(chatID int64) bool {
	return g.groups[chatID]
}

// Evaluate applies the permission rules to one message.
//
// Private chats: allowed iff the user whitelist is empty or contains the
// sender. Group chats: the group must be whitelisted AND the message must be
// directed at the bot (mention or reply), except /status which only needs the
// group whitelist. A reply to the bot in a non-whitelisted group is still
// denied: the group check runs first.
func (g *Gate) Evaluate(msg Message) Decision {
	if !g.UserAllowed(msg.UserID) {
		return Decision{Reason: ReasonUserNotAllowed}
	}
	if msg.Private {
		return Decision{Allowed: true, Reason: ReasonOK}
	}
	if !g.GroupAllowed(msg.ChatID) {
		return Decision{Reason: ReasonGroupNotAllowed}
	}
	if msg.IsStatusCmd {
		return Decision{Allowed: true, Reason: ReasonOK}
	}
	if !g.Directed(msg) {
		return Decision{Reason: ReasonNotDirected}
	}
	return Decision{Allowed: true, Reason: ReasonOK}
}

// Directed reports whether a group message is addressed to the bot: a reply
// to one of the bot's messages, a mention entity matching @username, or the
// literal @username appearing anywhere in the text.
//
// Mention matching is case-insensitive and requires the full username;
// partial-name matches never count.
func (g *Gate) Directed(msg Message) bool {
	if msg.ReplyToUserID != 0 && msg.ReplyToUserID == g.botID {
		return true
	}
	if g.username == "" {
		return false
	}

	want := "@" + g.username
	for _, span := range msg.Mentions {
		if tok, ok := slice(msg.Text, span.Offset, span.Length); ok && strings.ToLower(tok) == want {
			return true
		}
	}

	// Fallback for clients that send mentions without entity metadata.
	return strings.Contains(strings.ToLower(msg.Text), want)
}

// StripMention removes the bot's @username from the text, so the relayed
// prompt does not carry the addressing token.
func (g *Gate) StripMention(text string) string {
	if g.username == "" {
		return strings.TrimSpace(text)
	}
	want := "@" + g.username
	lower := strings.ToLower(text)
	for {
		i := strings.Index(lower, want)
		if i < 0 {
			break
		}
		text = text[:i] + text[i+len(want):]
		lower = lower[:i] + lower[i+len(want):]
	}
	return strings.TrimSpace(text)
}

// slice extracts a span from text, guarding against out-of-range entity
// offsets from the API.
func slice(text string, offset, length int) (string, bool) {
	if offset < 0 || length <= 0 || offset+length > len(text) {
		return "", false
	}
	return text[offset : offset+length], true
}
