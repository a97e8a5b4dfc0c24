package gate

import "testing"

const (
	botID       = int64(4242)
	botUsername = "ExampleBot"
)

func newTestGate(users, groups []int64) *Gate {
	return New(users, groups, botID, botUsername)
}

func TestEvaluatePrivate(t *testing.T) {
	tests := []struct {
		name   string
		users  []int64
		userID int64
		want   bool
		reason Reason
	}{
		{"empty whitelist allows everyone", nil, 999, true, ReasonOK},
		{"member allowed", []int64{123}, 123, true, ReasonOK},
		{"non-member denied", []int64{123}, 999, false, ReasonUserNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(tt.users, nil)
			d := g.Evaluate(Message{UserID: tt.userID, ChatID: tt.userID, Private: true, Text: "hello"})
			if d.Allowed != tt.want || d.Reason != tt.reason {
				t.Errorf("Evaluate() = {%v %q}, want {%v %q}", d.Allowed, d.Reason, tt.want, tt.reason)
			}
		})
	}
}

func TestEvaluateGroup(t *testing.T) {
	g := newTestGate([]int64{123}, []int64{-100999})

	tests := []struct {
		name   string
		msg    Message
		want   bool
		reason Reason
	}{
		{
			name:   "group not whitelisted despite mention",
			msg:    Message{UserID: 123, ChatID: -100555, Text: "@examplebot hello"},
			want:   false,
			reason: ReasonGroupNotAllowed,
		},
		{
			name:   "reply to bot in non-whitelisted group still denied",
			msg:    Message{UserID: 123, ChatID: -100555, Text: "hello", ReplyToUserID: botID},
			want:   false,
			reason: ReasonGroupNotAllowed,
		},
		{
			name:   "whitelisted group, undirected message denied",
			msg:    Message{UserID: 123, ChatID: -100999, Text: "hello"},
			want:   false,
			reason: ReasonNotDirected,
		},
		{
			name:   "whitelisted group with mention allowed",
			msg:    Message{UserID: 123, ChatID: -100999, Text: "@ExampleBot hello"},
			want:   true,
			reason: ReasonOK,
		},
		{
			name:   "whitelisted group, reply to bot allowed",
			msg:    Message{UserID: 123, ChatID: -100999, Text: "hello", ReplyToUserID: botID},
			want:   true,
			reason: ReasonOK,
		},
		{
			name:   "whitelisted group, reply to someone else denied",
			msg:    Message{UserID: 123, ChatID: -100999, Text: "hello", ReplyToUserID: 777},
			want:   false,
			reason: ReasonNotDirected,
		},
		{
			name:   "status command exempt from directed check",
			msg:    Message{UserID: 123, ChatID: -100999, Text: "/status", IsStatusCmd: true},
			want:   true,
			reason: ReasonOK,
		},
		{
			name:   "status command still user-gated",
			msg:    Message{UserID: 999, ChatID: -100999, Text: "/status", IsStatusCmd: true},
			want:   false,
			reason: ReasonUserNotAllowed,
		},
		{
			name:   "non-whitelisted user in whitelisted group denied",
			msg:    Message{UserID: 999, ChatID: -100999, Text: "@examplebot hello"},
			want:   false,
			reason: ReasonUserNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Evaluate(tt.msg)
			if d.Allowed != tt.want || d.Reason != tt.reason {
				t.Errorf("Evaluate() = {%v %q}, want {%v %q}", d.Allowed, d.Reason, tt.want, tt.reason)
			}
		})
	}
}

func TestEmptyGroupWhitelistDeniesAllGroups(t *testing.T) {
	g := newTestGate(nil, nil)
	d := g.Evaluate(Message{UserID: 1, ChatID: -5, Text: "@examplebot hi"})
	if d.Allowed {
		t.Error("empty group whitelist should deny all groups")
	}
	if d.Reason != ReasonGroupNotAllowed {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonGroupNotAllowed)
	}
}

func TestDirectedMentionEntity(t *testing.T) {
	g := newTestGate(nil, []int64{-1})

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{
			name: "entity with exact username",
			msg: Message{
				Text:     "@examplebot do the thing",
				Mentions: []MentionSpan{{Offset: 0, Length: 11}},
			},
			want: true,
		},
		{
			name: "entity mentioning someone else",
			msg: Message{
				Text:     "@otherbot do the thing",
				Mentions: []MentionSpan{{Offset: 0, Length: 9}},
			},
			want: false,
		},
		{
			name: "case-insensitive substring fallback",
			msg:  Message{Text: "hey @EXAMPLEBOT, ping"},
			want: true,
		},
		{
			name: "partial username does not match",
			msg:  Message{Text: "hey @example, ping"},
			want: false,
		},
		{
			name: "entity span out of range is ignored",
			msg: Message{
				Text:     "short",
				Mentions: []MentionSpan{{Offset: 3, Length: 50}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Directed(tt.msg); got != tt.want {
				t.Errorf("Directed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStripMention(t *testing.T) {
	g := newTestGate(nil, nil)

	tests := []struct {
		in   string
		want string
	}{
		{"@ExampleBot hello", "hello"},
		{"hello @examplebot", "hello"},
		{"hello", "hello"},
		{"@examplebot", ""},
		{"@examplebot hi @ExampleBot", "hi"},
	}
	for _, tt := range tests {
		if got := g.StripMention(tt.in); got != tt.want {
			t.Errorf("StripMention(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
