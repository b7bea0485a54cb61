package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/events"
	"github.com/ykvlv/legendalf-bot/internal/retry"
)

const notifyTimeout = 30 * time.Second

// Notifier turns admission events into chat messages: admins learn about new
// requests, users learn about decisions.
type Notifier struct {
	out    outbox
	access *access.Service
	log    *zap.Logger
}

// NewNotifier creates a notifier sending through c.
func NewNotifier(c Client, acc *access.Service, policy retry.Policy, log *zap.Logger) *Notifier {
	return &Notifier{
		out:    outbox{client: c, policy: policy, log: log},
		access: acc,
		log:    log,
	}
}

// Subscribe registers the notifier on the admission topics.
func (n *Notifier) Subscribe(bus events.Bus) error {
	if err := bus.Subscribe(events.TopicAdmissionRequested, n.onRequested); err != nil {
		return err
	}
	if err := bus.Subscribe(events.TopicAdmissionApproved, n.onDecided); err != nil {
		return err
	}
	return bus.Subscribe(events.TopicAdmissionDenied, n.onDecided)
}

func (n *Notifier) onRequested(ev events.AdmissionRequested) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	admins, err := n.access.Admins(ctx)
	if err != nil {
		n.log.Error("load admins failed", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		return
	}
	for _, id := range admins {
		msg := tgbotapi.NewMessage(id, requestText(ev.Profile))
		msg.ReplyMarkup = admissionKeyboard(ev.Profile.ID)
		if err := n.out.send(ctx, "notify admin", msg); err != nil {
			n.log.Warn("admin not notified",
				zap.Int64("admin", id),
				zap.String("correlation_id", ev.CorrelationID),
				zap.Error(err))
		}
	}
}

func (n *Notifier) onDecided(ev events.AdmissionDecided) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	text := deniedNotice
	if ev.Approved {
		text = approvedNotice
	}
	if err := n.out.text(ctx, ev.UserID, text, nil); err != nil {
		n.log.Warn("user not notified",
			zap.Int64("uid", ev.UserID),
			zap.Bool("approved", ev.Approved),
			zap.String("correlation_id", ev.CorrelationID),
			zap.Error(err))
	}
}

// Announce tells every admin the bot is up.
func (n *Notifier) Announce(ctx context.Context) {
	admins, err := n.access.Admins(ctx)
	if err != nil {
		n.log.Warn("load admins failed", zap.Error(err))
		return
	}
	for _, id := range admins {
		_ = n.out.text(ctx, id, startupNotice, nil)
	}
}

// SetupCommands publishes the command menu: common commands for everyone,
// common plus admin commands in each admin chat.
func SetupCommands(ctx context.Context, c Client, acc *access.Service, log *zap.Logger) {
	common := botCommands(commonCommands)
	if _, err := c.Request(tgbotapi.NewSetMyCommands(common...)); err != nil {
		log.Warn("set common commands failed", zap.Error(err))
	}

	admins, err := acc.Admins(ctx)
	if err != nil {
		log.Warn("load admins failed", zap.Error(err))
		return
	}
	all := append(append([]tgbotapi.BotCommand{}, common...), botCommands(adminCommands)...)
	for _, id := range admins {
		cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(id), all...)
		if _, err := c.Request(cfg); err != nil {
			log.Warn("set admin commands failed", zap.Int64("admin", id), zap.Error(err))
		}
	}
}

func botCommands(cmds []command) []tgbotapi.BotCommand {
	out := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	return out
}
