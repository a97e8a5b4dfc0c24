package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/batalabs/gramd/internal/claude"
	"github.com/batalabs/gramd/internal/config"
	"github.com/batalabs/gramd/internal/domain"
	"github.com/batalabs/gramd/internal/gate"
	"github.com/batalabs/gramd/internal/sentryutil"
	"github.com/batalabs/gramd/internal/store"
)

// ---------------------------------------------------------------------------
// Telegram adapter -- long-polls the Bot API and drives the relay pipeline
// ---------------------------------------------------------------------------

// Adapter owns the bot connection, the permission gate, and the per-user
// rate limiters. One Adapter serves all chats.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	cfg    config.Config
	log    *config.Logger
	gate   *gate.Gate
	runner *claude.Runner
	store  *store.Store

	mu           sync.Mutex
	rateLimiters map[int64]*rate.Limiter
	busy         map[int64]bool

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

type botLogger struct {
	adapter *Adapter
}

func (l *botLogger) Println(v ...interface{}) {
	if l == nil || l.adapter == nil {
		return
	}
	l.adapter.logf("telegram_api: %s", strings.TrimSpace(fmt.Sprint(v...)))
}

func (l *botLogger) Printf(format string, v ...interface{}) {
	if l == nil || l.adapter == nil {
		return
	}
	l.adapter.logf("telegram_api: "+format, v...)
}

// NewAdapter connects to the Bot API, builds the permission gate from the
// bot's own identity, and registers the slash-command list. runner may be nil
// when AI relaying is disabled.
func NewAdapter(cfg config.Config, logger *config.Logger, runner *claude.Runner, st *store.Store) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}

	a := &Adapter{
		bot:          bot,
		cfg:          cfg,
		log:          logger,
		gate:         gate.New(cfg.AllowedUserIDs, cfg.AllowedGroupIDs, bot.Self.ID, bot.Self.UserName),
		runner:       runner,
		store:        st,
		rateLimiters: make(map[int64]*rate.Limiter),
		busy:         make(map[int64]bool),
		startedAt:    time.Now(),
	}

	// Redirect library polling logs (transient 502s and the like) into the
	// runtime log file.
	if err := tgbotapi.SetLogger(&botLogger{adapter: a}); err != nil {
		a.logf("telegram: set logger: %v", err)
	}

	cmds := make([]tgbotapi.BotCommand, 0, len(domain.CommandDefs))
	for _, c := range domain.CommandDefs {
		cmds = append(cmds, tgbotapi.BotCommand{
			Command:     strings.TrimPrefix(c.Name, "/"),
			Description: c.Description,
		})
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		a.logf("telegram: set commands: %v", err)
	}

	return a, nil
}

// BotName returns the bot's username without the @ prefix.
func (a *Adapter) BotName() string {
	return a.bot.Self.UserName
}

// NotifyAdmin sends the startup notice to the configured admin chat.
func (a *Adapter) NotifyAdmin() {
	if a.cfg.AdminUserID == 0 {
		return
	}
	model := "disabled"
	if a.cfg.AIEnabled && a.runner != nil {
		model = a.runner.Model
	}
	text := fmt.Sprintf("<b>@%s is up</b>\nmodel: %s\nstarted: %s",
		EscapeHTML(a.BotName()), EscapeHTML(model), a.startedAt.Format(time.RFC3339))
	msg := tgbotapi.NewMessage(a.cfg.AdminUserID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	a.send(msg)
}

// Run starts the long-polling loop. Blocks until the context is cancelled or
// the updates channel is closed. Each update is handled on its own goroutine.
func (a *Adapter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.ctx = ctx
	a.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		a.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			cb := update.CallbackQuery
			go a.safely(func() { a.handleCallback(cb) })
		case update.Message != nil:
			msg := update.Message
			go a.safely(func() { a.handleMessage(msg) })
		}
	}

	return ctx.Err()
}

// safely runs fn, recovering panics so one bad update cannot take down the
// polling loop.
func (a *Adapter) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in update handler: %v", r)
			a.logf("telegram: %v", err)
			sentryutil.CaptureError(err, map[string]string{"component": "telegram"})
		}
	}()
	fn()
}

func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	gm := gateMessage(msg)
	if d := a.gate.Evaluate(gm); !d.Allowed {
		a.logf("telegram: denied user=%d chat=%d reason=%s", gm.UserID, gm.ChatID, d.Reason)
		// Tell the user in private; stay silent in groups so the bot does
		// not inject itself into conversations it was not invited to.
		if gm.Private && d.Reason == gate.ReasonUserNotAllowed {
			a.send(tgbotapi.NewMessage(gm.ChatID, "You are not authorized to use this bot."))
		}
		return
	}

	if !a.allowRequest(gm.UserID) {
		a.send(tgbotapi.NewMessage(gm.ChatID, "Too many requests. Please wait a moment."))
		return
	}

	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	a.relayMessage(msg, gm)
}

// gateMessage projects a Telegram message onto the fields the gate inspects.
// Captioned media counts like text.
func gateMessage(msg *tgbotapi.Message) gate.Message {
	text := msg.Text
	entities := msg.Entities
	if text == "" && msg.Caption != "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	var mentions []gate.MentionSpan
	for _, e := range entities {
		if e.Type == "mention" {
			mentions = append(mentions, gate.MentionSpan{Offset: e.Offset, Length: e.Length})
		}
	}

	var replyTo int64
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		replyTo = msg.ReplyToMessage.From.ID
	}

	return gate.Message{
		UserID:        msg.From.ID,
		ChatID:        msg.Chat.ID,
		Private:       msg.Chat.IsPrivate(),
		Text:          text,
		Mentions:      mentions,
		ReplyToUserID: replyTo,
		IsStatusCmd:   msg.IsCommand() && msg.Command() == "status",
	}
}

// allowRequest checks the per-user rate limiter: 1 request per second with a
// burst of 5.
func (a *Adapter) allowRequest(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rl, ok := a.rateLimiters[userID]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(1.0), 5)
		a.rateLimiters[userID] = rl
	}
	return rl.Allow()
}

func (a *Adapter) markBusy(chatID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy[chatID] {
		return false
	}
	a.busy[chatID] = true
	return true
}

func (a *Adapter) unmarkBusy(chatID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.busy, chatID)
}

// send delivers a message, logging failures. Telegram send errors are not
// actionable per message.
func (a *Adapter) send(c tgbotapi.Chattable) {
	if _, err := a.bot.Send(c); err != nil {
		a.logf("telegram: send: %v", err)
	}
}

func (a *Adapter) logf(format string, args ...any) {
	a.log.Printf(format, args...)
}

func uptimeString(since time.Time) string {
	return time.Since(since).Truncate(time.Second).String()
}
