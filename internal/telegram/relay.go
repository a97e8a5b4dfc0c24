package telegram

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/batalabs/gramd/internal/claude"
	"github.com/batalabs/gramd/internal/gate"
	"github.com/batalabs/gramd/internal/sentryutil"
	"github.com/batalabs/gramd/internal/store"
)

// relayMessage forwards an allowed free-form message to the CLI backend and
// streams the answer back: tool notices while running, then the formatted
// final text, then any images the answer links to.
func (a *Adapter) relayMessage(msg *tgbotapi.Message, gm gate.Message) {
	chatID := msg.Chat.ID

	if !a.cfg.AIEnabled || a.runner == nil {
		a.send(tgbotapi.NewMessage(chatID, "AI responses are currently disabled."))
		return
	}

	if !a.markBusy(chatID) {
		a.send(tgbotapi.NewMessage(chatID, "Still processing your previous message. Please wait."))
		return
	}
	defer a.unmarkBusy(chatID)

	text := a.gate.StripMention(gm.Text)
	if text == "" {
		return
	}

	a.logStore(store.LogEntry{
		ChatID: chatID, UserID: gm.UserID, ChatType: msg.Chat.Type,
		Direction: store.DirInbound, Text: text,
	})

	prompt := text
	if extra := BuildReplyContext(a.bot, msg.ReplyToMessage, a.runner.WorkDir); extra != "" {
		prompt = extra + "\n\n" + text
	}

	stopTyping := a.startTyping(chatID)
	defer stopTyping()

	onEvent := func(evt claude.Event) {
		if evt.Kind == claude.EventToolStart && a.cfg.ToolNotify {
			a.send(tgbotapi.NewMessage(chatID, "using tool: "+evt.ToolName))
		}
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := a.runner.Run(ctx, prompt, onEvent)
	stopTyping()

	out := store.LogEntry{
		ChatID: chatID, UserID: gm.UserID, ChatType: msg.Chat.Type,
		Direction: store.DirOutbound,
	}
	if res != nil {
		out.Text = res.Text
		out.ToolCalls = len(res.ToolCalls)
		out.InTokens = res.InputTokens
		out.OutTokens = res.OutputTokens
	}

	if err != nil {
		a.logf("relay: %v", err)
		sentryutil.CaptureError(err, map[string]string{"component": "relay"})
		out.ErrText = err.Error()
		a.logStore(out)

		// A timeout may still carry partial text worth delivering.
		if res != nil && strings.TrimSpace(res.Text) != "" {
			a.deliver(chatID, res.Text+"\n\n(response was cut short)")
			return
		}
		a.send(tgbotapi.NewMessage(chatID, "Something went wrong while generating a response. Please try again."))
		return
	}

	final := strings.TrimSpace(res.Text)
	if final == "" {
		final = "(no response)"
	}
	a.deliver(chatID, final)
	a.logStore(out)

	for _, u := range ExtractImageURLs(final) {
		data, ferr := FetchImage(u)
		if ferr != nil {
			a.logf("relay: image %s: %v", u, ferr)
			continue
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: imageFileName(u), Bytes: data})
		a.send(photo)
	}
}

// deliver sends text as Telegram HTML, split at the message length limit,
// falling back to plain text if Telegram rejects the markup.
func (a *Adapter) deliver(chatID int64, text string) {
	html := MarkdownToTelegramHTML(text)
	if a.sendParts(chatID, SplitHTMLMessage(html, MaxMessageLen), tgbotapi.ModeHTML) {
		return
	}
	a.sendParts(chatID, SplitMessage(text, MaxMessageLen), "")
}

// sendParts sends each chunk in order. Returns false if the first chunk is
// rejected, so the caller can retry with a different parse mode.
func (a *Adapter) sendParts(chatID int64, parts []string, parseMode string) bool {
	for i, part := range parts {
		reply := tgbotapi.NewMessage(chatID, part)
		if parseMode != "" {
			reply.ParseMode = parseMode
		}
		if _, err := a.bot.Send(reply); err != nil {
			a.logf("telegram: send part %d: %v", i, err)
			if i == 0 {
				return false
			}
		}
	}
	return true
}

// startTyping keeps the "typing..." chat action alive until the returned stop
// function is called. Telegram expires the action after a few seconds.
func (a *Adapter) startTyping(chatID int64) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
				a.logf("telegram: chat action: %v", err)
			}
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (a *Adapter) logStore(e store.LogEntry) {
	if a.store == nil {
		return
	}
	if err := a.store.LogMessage(e); err != nil {
		a.logf("store: log message: %v", err)
	}
}

func imageFileName(rawURL string) string {
	// Base the name on the path component only, never the hostname.
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "image.png"
	}
	return name
}
