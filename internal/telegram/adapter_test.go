package telegram

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "modernc.org/sqlite"

	"github.com/batalabs/gramd/internal/claude"
	"github.com/batalabs/gramd/internal/config"
	"github.com/batalabs/gramd/internal/domain"
	"github.com/batalabs/gramd/internal/gate"
	"github.com/batalabs/gramd/internal/store"
)

func testAdapter() *Adapter {
	return &Adapter{
		bot: &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42, UserName: "gramd_bot"}},
		cfg: config.Config{
			AIEnabled:    true,
			AllowedTools: []string{"WebSearch", "Read"},
			ToolNotify:   true,
		},
		runner:    &claude.Runner{Model: "sonnet"},
		startedAt: time.Now(),
	}
}

func TestGateMessageText(t *testing.T) {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 99, Type: "private"},
		Text: "hello @gramd_bot",
		Entities: []tgbotapi.MessageEntity{
			{Type: "mention", Offset: 6, Length: 10},
			{Type: "bold", Offset: 0, Length: 5},
		},
	}

	gm := gateMessage(msg)
	if gm.UserID != 7 || gm.ChatID != 99 {
		t.Errorf("ids = %d/%d, want 7/99", gm.UserID, gm.ChatID)
	}
	if !gm.Private {
		t.Error("private chat should be flagged private")
	}
	if gm.Text != "hello @gramd_bot" {
		t.Errorf("Text = %q", gm.Text)
	}
	// Only mention entities survive.
	if len(gm.Mentions) != 1 || gm.Mentions[0].Offset != 6 {
		t.Errorf("Mentions = %+v, want single span at offset 6", gm.Mentions)
	}
	if gm.IsStatusCmd {
		t.Error("plain text flagged as /status")
	}
}

func TestGateMessageCaptionFallback(t *testing.T) {
	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 7},
		Chat:    &tgbotapi.Chat{ID: -100, Type: "supergroup"},
		Caption: "@gramd_bot look at this",
		CaptionEntities: []tgbotapi.MessageEntity{
			{Type: "mention", Offset: 0, Length: 10},
		},
	}

	gm := gateMessage(msg)
	if gm.Text != "@gramd_bot look at this" {
		t.Errorf("caption not used as text: %q", gm.Text)
	}
	if len(gm.Mentions) != 1 {
		t.Errorf("caption entities not used: %+v", gm.Mentions)
	}
	if gm.Private {
		t.Error("supergroup flagged private")
	}
}

func TestGateMessageStatusCommand(t *testing.T) {
	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: -100, Type: "group"},
		Text:     "/status",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}},
	}
	if gm := gateMessage(msg); !gm.IsStatusCmd {
		t.Error("/status not detected")
	}
}

func TestGateMessageReplyTo(t *testing.T) {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: -100, Type: "group"},
		Text: "yes please",
		ReplyToMessage: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 42},
		},
	}
	if gm := gateMessage(msg); gm.ReplyToUserID != 42 {
		t.Errorf("ReplyToUserID = %d, want 42", gm.ReplyToUserID)
	}
}

func TestViewContentCoversAllViews(t *testing.T) {
	a := testAdapter()
	for _, view := range domain.KnownViews {
		if view == domain.ViewShare {
			continue // share sends a photo, not an edited view
		}
		text, keyboard := a.viewContent(view)
		if text == "" {
			t.Errorf("view %q renders empty text", view)
		}
		if len(keyboard.InlineKeyboard) == 0 {
			t.Errorf("view %q has no keyboard", view)
		}
	}
}

func TestMainMenuOffersTasks(t *testing.T) {
	offered := map[string]bool{}
	for _, row := range mainMenuKeyboard().InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				offered[*btn.CallbackData] = true
			}
		}
	}
	for _, view := range []domain.CallbackView{domain.ViewTask1, domain.ViewTask2, domain.ViewTask3, domain.ViewTask4} {
		if !offered[string(view)] {
			t.Errorf("main menu has no button for %q", view)
		}
	}
}

func TestViewContentTaskAcknowledgement(t *testing.T) {
	a := testAdapter()
	text, keyboard := a.viewContent(domain.ViewTask3)
	if !strings.Contains(text, "task 3") {
		t.Errorf("task view text = %q, want mention of task 3", text)
	}
	if len(keyboard.InlineKeyboard) == 0 {
		t.Error("task view has no way back to the menu")
	}
}

func TestHelpTextListsAllCommands(t *testing.T) {
	help := helpText()
	for _, c := range domain.CommandDefs {
		if !strings.Contains(help, c.Name) {
			t.Errorf("help text missing %s", c.Name)
		}
	}
}

func TestStatusTextShowsLastError(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.NewFromDB(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	entry := store.LogEntry{
		ChatID:    99,
		UserID:    7,
		ChatType:  "private",
		Direction: store.DirOutbound,
		ErrText:   "backend timed out <twice>",
	}
	if err := st.LogMessage(entry); err != nil {
		t.Fatal(err)
	}

	a := testAdapter()
	a.gate = gate.New(nil, nil, 42, "gramd_bot")
	a.store = st

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 99, Type: "private"},
	}
	text := a.statusText(msg)
	if !strings.Contains(text, "failed: 1") {
		t.Errorf("status missing failure count:\n%s", text)
	}
	if !strings.Contains(text, "last error: <code>backend timed out &lt;twice&gt;</code>") {
		t.Errorf("status missing escaped last error:\n%s", text)
	}
}

func TestUptimeString(t *testing.T) {
	got := uptimeString(time.Now().Add(-90 * time.Second))
	if got != "1m30s" {
		t.Errorf("uptimeString = %q, want 1m30s", got)
	}
}
