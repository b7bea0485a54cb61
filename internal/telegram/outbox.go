package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/retry"
)

// outbox sends bot-initiated and reply messages under a retry policy.
// Failures are logged by the policy and otherwise dropped.
type outbox struct {
	client Client
	policy retry.Policy
	log    *zap.Logger
}

func (o outbox) send(ctx context.Context, op string, c tgbotapi.Chattable) error {
	return o.policy.Do(ctx, o.log, op, func(context.Context) error {
		_, err := o.client.Send(c)
		return classify(op, err)
	})
}

// text sends a plain message, with an optional reply markup.
func (o outbox) text(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return o.send(ctx, "send text", msg)
}

func (o outbox) answerCallback(id, text string) {
	if _, err := o.client.Request(tgbotapi.NewCallback(id, text)); err != nil {
		o.log.Debug("answer callback failed", zap.Error(err))
	}
}

// dropKeyboard removes the inline keyboard of a message once a button was used.
func (o outbox) dropKeyboard(msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := o.client.Request(edit); err != nil {
		o.log.Debug("drop keyboard failed", zap.Error(err))
	}
}
