// Package telegram connects Bot API updates to the access, schedule and
// content services.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/content"
	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/registry"
	"github.com/ykvlv/legendalf-bot/internal/retry"
)

// Content answers the on-demand feed commands.
type Content interface {
	SendBase(ctx context.Context, chatID int64, replyTo int) error
	SendQuote(ctx context.Context, chatID int64, replyTo int) error
	SendHolidays(ctx context.Context, chatID int64, replyTo int, date time.Time) error
	SendFilmsMonth(ctx context.Context, chatID int64, replyTo int, date time.Time) error
	SendFilmsDay(ctx context.Context, chatID int64, replyTo int, date time.Time) error
}

// Downloader fetches a remote file.
type Downloader func(ctx context.Context, url string) (io.ReadCloser, error)

// Deps are the collaborators of a Router.
type Deps struct {
	Client   Client
	Access   *access.Service
	Registry *registry.Registry
	Content  Content
	Quotes   *content.QuoteBook
	Media    *content.MediaLibrary
	Sessions *Sessions
	Clock    clockwork.Clock
	Log      *zap.Logger
	Download Downloader
	Replies  retry.Policy
}

// Router wires Telegram updates to handlers.
type Router struct {
	client   Client
	out      outbox
	access   *access.Service
	registry *registry.Registry
	content  Content
	quotes   *content.QuoteBook
	media    *content.MediaLibrary
	sessions *Sessions
	clock    clockwork.Clock
	log      *zap.Logger
	download Downloader
}

// NewRouter creates a new Telegram router.
func NewRouter(d Deps) *Router {
	if d.Sessions == nil {
		d.Sessions = NewSessions()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Download == nil {
		d.Download = httpDownload
	}
	if d.Replies.Delays == nil {
		d.Replies = retry.Short
	}
	return &Router{
		client:   d.Client,
		out:      outbox{client: d.Client, policy: d.Replies, log: d.Log},
		access:   d.Access,
		registry: d.Registry,
		content:  d.Content,
		quotes:   d.Quotes,
		media:    d.Media,
		sessions: d.Sessions,
		clock:    d.Clock,
		log:      d.Log,
		download: d.Download,
	}
}

// HandleUpdate routes a single update. Errors and panics are logged and the
// update is dropped.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("update handler panicked", zap.Int("update_id", upd.UpdateID), zap.Any("panic", rec))
		}
	}()

	var err error
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		err = r.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		err = r.handleCallback(ctx, upd.CallbackQuery)
	}
	if err != nil {
		r.log.Error("update failed", zap.Int("update_id", upd.UpdateID), zap.Error(err))
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if cmd, args, ok := splitCommand(msg.Text); ok {
		r.log.Info("command", zap.String("cmd", cmd), zap.Int64("uid", msg.From.ID))
		return r.handleCommand(ctx, msg, cmd, args)
	}
	if hasMedia(msg) {
		return r.handleMediaUpload(ctx, msg)
	}
	if msg.Text == "" {
		return nil
	}
	if sess, ok := r.sessions.Get(msg.From.ID); ok {
		return r.continueDialog(ctx, msg, sess)
	}
	return r.handleText(ctx, msg)
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmd, args string) error {
	switch cmd {
	case "start", "help":
		return r.handleStart(ctx, msg)
	case "id":
		return r.handleID(ctx, msg)
	case "mellon":
		return r.handleMellon(ctx, msg)
	case "pending", "users", "allow", "deny":
		return r.handleAdminCommand(ctx, msg, cmd, args)
	case "schedule":
		return r.handleSchedule(ctx, msg)
	case "schedule_add":
		return r.handleScheduleAdd(ctx, msg, args)
	case "schedule_del":
		return r.handleScheduleDel(ctx, msg, args)
	case "schedule_on":
		return r.handleScheduleToggle(ctx, msg, args, true)
	case "schedule_off":
		return r.handleScheduleToggle(ctx, msg, args, false)
	case "schedule_tz":
		return r.handleScheduleTZ(ctx, msg, args)
	case "holydays", "holidays":
		return r.handleHolidays(ctx, msg)
	case "films_month":
		return r.handleFilmsMonth(ctx, msg, args)
	case "films_day":
		return r.handleFilmsDay(ctx, msg, args)
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	action, rest, _ := cutColon(cb.Data)
	switch action {
	case "approve", "deny":
		return r.handleDecisionCallback(ctx, cb, action == "approve", rest)
	case "add", "del":
		return r.handleKindCallback(ctx, cb, action, rest)
	}
	r.out.answerCallback(cb.ID, "")
	return nil
}

func (r *Router) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	_ = r.out.text(ctx, msg.Chat.ID, text, nil)
}

func (r *Router) replyMarkup(ctx context.Context, msg *tgbotapi.Message, text string, markup interface{}) {
	_ = r.out.text(ctx, msg.Chat.ID, text, markup)
}

// today is the current date in the bot's default zone.
func (r *Router) today() time.Time {
	return r.clock.Now().In(domain.ResolveLocation(r.registry.DefaultTZ()))
}

func profileOf(u *tgbotapi.User) domain.Profile {
	return domain.Profile{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

func httpDownload(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
