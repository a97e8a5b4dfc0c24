package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/batalabs/gramd/internal/domain"
)

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		reply := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Hi! I'm @%s. Send me a message and I'll answer, or pick an option below.", a.BotName()))
		reply.ReplyMarkup = mainMenuKeyboard()
		a.send(reply)

	case "help":
		a.send(tgbotapi.NewMessage(chatID, helpText()))

	case "menu":
		reply := tgbotapi.NewMessage(chatID, "What would you like to do?")
		reply.ReplyMarkup = mainMenuKeyboard()
		a.send(reply)

	case "status":
		reply := tgbotapi.NewMessage(chatID, a.statusText(msg))
		reply.ParseMode = tgbotapi.ModeHTML
		a.send(reply)

	case "ping":
		a.send(tgbotapi.NewMessage(chatID, "pong, up for "+uptimeString(a.startedAt)))

	default:
		a.send(tgbotapi.NewMessage(chatID, "Unknown command. Try /help."))
	}
}

func helpText() string {
	var lines []string
	lines = append(lines, "Commands:")
	for _, c := range domain.CommandDefs {
		lines = append(lines, fmt.Sprintf("  %-10s %s", c.Name, c.Description))
	}
	lines = append(lines, "", "Anything else you send is answered by the AI backend.")
	return strings.Join(lines, "\n")
}

// statusText reports identity, whitelist membership, backend state and
// traffic counters for the requesting chat.
func (a *Adapter) statusText(msg *tgbotapi.Message) string {
	var sb strings.Builder

	sb.WriteString("<b>Status</b>\n")
	fmt.Fprintf(&sb, "user id: <code>%d</code>\n", msg.From.ID)
	fmt.Fprintf(&sb, "chat id: <code>%d</code> (%s)\n", msg.Chat.ID, msg.Chat.Type)

	userState := "yes"
	if !a.gate.UserAllowed(msg.From.ID) {
		userState = "no"
	}
	fmt.Fprintf(&sb, "user whitelisted: %s\n", userState)

	if !msg.Chat.IsPrivate() {
		groupState := "no"
		if a.gate.GroupAllowed(msg.Chat.ID) {
			groupState = "yes"
		}
		fmt.Fprintf(&sb, "group whitelisted: %s\n", groupState)
	}

	if a.cfg.AIEnabled && a.runner != nil {
		fmt.Fprintf(&sb, "AI: enabled (model %s)\n", EscapeHTML(a.runner.Model))
	} else {
		sb.WriteString("AI: disabled\n")
	}
	fmt.Fprintf(&sb, "uptime: %s", uptimeString(a.startedAt))

	if a.store != nil {
		if st, err := a.store.Stats(); err == nil {
			fmt.Fprintf(&sb, "\nrelayed: %d, failed: %d", st.Relayed, st.Failed)
			if !st.LastActivity.IsZero() {
				fmt.Fprintf(&sb, "\nlast activity: %s", st.LastActivity.Format("2006-01-02 15:04:05 UTC"))
			}
			if st.Failed > 0 {
				if errs, err := a.store.RecentErrors(1); err == nil && len(errs) > 0 {
					fmt.Fprintf(&sb, "\nlast error: <code>%s</code>", EscapeHTML(errs[0].ErrText))
				}
			}
		}
	}

	return sb.String()
}
