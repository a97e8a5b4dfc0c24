package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/batalabs/gramd/internal/domain"
)

// ---------------------------------------------------------------------------
// Inline keyboard views
// ---------------------------------------------------------------------------

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("About", string(domain.ViewAbout)),
			tgbotapi.NewInlineKeyboardButtonData("Help", string(domain.ViewHelp)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Settings", string(domain.ViewSettings)),
			tgbotapi.NewInlineKeyboardButtonData("Share", string(domain.ViewShare)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Task 1", string(domain.ViewTask1)),
			tgbotapi.NewInlineKeyboardButtonData("Task 2", string(domain.ViewTask2)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Task 3", string(domain.ViewTask3)),
			tgbotapi.NewInlineKeyboardButtonData("Task 4", string(domain.ViewTask4)),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", string(domain.ViewBack)),
		),
	)
}

// viewContent renders the text and keyboard for a callback view. ViewShare is
// handled separately because it sends a photo instead of editing the message.
func (a *Adapter) viewContent(view domain.CallbackView) (string, tgbotapi.InlineKeyboardMarkup) {
	switch view {
	case domain.ViewMenu, domain.ViewBack:
		return "What would you like to do?", mainMenuKeyboard()

	case domain.ViewAbout:
		return fmt.Sprintf("@%s relays your messages to an AI assistant and sends the answers back here. "+
			"It can search the web, fetch pages and read files while answering.", a.BotName()), backKeyboard()

	case domain.ViewHelp:
		return helpText(), backKeyboard()

	case domain.ViewSettings:
		var sb strings.Builder
		sb.WriteString("Settings (read-only, configured via environment):\n")
		if a.cfg.AIEnabled && a.runner != nil {
			fmt.Fprintf(&sb, "  model: %s\n", a.runner.Model)
			fmt.Fprintf(&sb, "  tools: %s\n", strings.Join(a.cfg.AllowedTools, ", "))
		} else {
			sb.WriteString("  AI: disabled\n")
		}
		fmt.Fprintf(&sb, "  tool notices: %v", a.cfg.ToolNotify)
		return sb.String(), backKeyboard()
	}
	if n, ok := domain.TaskNumber(view); ok {
		// Placeholder slots kept for per-deployment hooks.
		return fmt.Sprintf("Running task %d...\n\nTask %d complete.", n, n), backKeyboard()
	}
	return "", tgbotapi.InlineKeyboardMarkup{}
}

func (a *Adapter) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	if !a.gate.UserAllowed(cb.From.ID) {
		a.answerCallback(cb.ID, "Not authorized.")
		return
	}

	view, ok := domain.ParseCallbackView(cb.Data)
	if !ok {
		a.logf("telegram: unknown callback data %q from %d", cb.Data, cb.From.ID)
		a.answerCallback(cb.ID, "")
		return
	}
	a.answerCallback(cb.ID, "")

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if view == domain.ViewShare {
		a.sendShareQR(chatID)
		return
	}

	text, keyboard := a.viewContent(view)
	if text == "" {
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, text, keyboard)
	if _, err := a.bot.Send(edit); err != nil {
		// Editing fails when the content is unchanged; fall back to a fresh
		// message only for real errors.
		if !strings.Contains(err.Error(), "message is not modified") {
			reply := tgbotapi.NewMessage(chatID, text)
			reply.ReplyMarkup = keyboard
			a.send(reply)
		}
	}
}

func (a *Adapter) answerCallback(id, text string) {
	if _, err := a.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		a.logf("telegram: answer callback: %v", err)
	}
}

// sendShareQR sends a QR code pointing at the bot's t.me link.
func (a *Adapter) sendShareQR(chatID int64) {
	link := "https://t.me/" + a.BotName()
	png, err := qrcode.Encode(link, qrcode.Medium, 512)
	if err != nil {
		a.logf("telegram: qr encode: %v", err)
		a.send(tgbotapi.NewMessage(chatID, link))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "share.png", Bytes: png})
	photo.Caption = link
	a.send(photo)
}
