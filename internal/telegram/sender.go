package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/legendalf-bot/internal/dispatch"
	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// Client is the part of *tgbotapi.BotAPI the bot uses.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Sender implements dispatch.Sender over the Bot API.
type Sender struct {
	client Client
}

var _ dispatch.Sender = (*Sender)(nil)

// NewSender wraps a Bot API client.
func NewSender(c Client) *Sender {
	return &Sender{client: c}
}

func (s *Sender) SendText(ctx context.Context, chatID int64, text string, opts dispatch.Options) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = opts.ReplyTo
	msg.DisableWebPagePreview = opts.NoPreview
	if opts.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	return s.send(ctx, "send text", msg)
}

func (s *Sender) SendPhoto(ctx context.Context, chatID int64, m dispatch.Media, caption string, opts dispatch.Options) (int, error) {
	cfg := tgbotapi.NewPhoto(chatID, fileData(m))
	cfg.Caption = caption
	cfg.ReplyToMessageID = opts.ReplyTo
	cfg.ParseMode = parseMode(opts)
	return s.send(ctx, "send photo", cfg)
}

func (s *Sender) SendAnimation(ctx context.Context, chatID int64, m dispatch.Media, caption string, opts dispatch.Options) (int, error) {
	cfg := tgbotapi.NewAnimation(chatID, fileData(m))
	cfg.Caption = caption
	cfg.ReplyToMessageID = opts.ReplyTo
	cfg.ParseMode = parseMode(opts)
	return s.send(ctx, "send animation", cfg)
}

func (s *Sender) SendVideo(ctx context.Context, chatID int64, m dispatch.Media, caption string, opts dispatch.Options) (int, error) {
	cfg := tgbotapi.NewVideo(chatID, fileData(m))
	cfg.Caption = caption
	cfg.ReplyToMessageID = opts.ReplyTo
	cfg.ParseMode = parseMode(opts)
	return s.send(ctx, "send video", cfg)
}

func (s *Sender) SendDocument(ctx context.Context, chatID int64, m dispatch.Media, caption string, opts dispatch.Options) (int, error) {
	cfg := tgbotapi.NewDocument(chatID, fileData(m))
	cfg.Caption = caption
	cfg.ReplyToMessageID = opts.ReplyTo
	cfg.ParseMode = parseMode(opts)
	return s.send(ctx, "send document", cfg)
}

func (s *Sender) send(ctx context.Context, op string, c tgbotapi.Chattable) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.PermanentError{Op: op, Err: err}
	}
	msg, err := s.client.Send(c)
	if err != nil {
		return 0, classify(op, err)
	}
	return msg.MessageID, nil
}

func fileData(m dispatch.Media) tgbotapi.RequestFileData {
	switch {
	case m.Path != "":
		return tgbotapi.FilePath(m.Path)
	case m.URL != "":
		return tgbotapi.FileURL(m.URL)
	default:
		return tgbotapi.FileBytes{Name: m.Name, Bytes: m.Bytes}
	}
}

func parseMode(opts dispatch.Options) string {
	if opts.HTML {
		return tgbotapi.ModeHTML
	}
	return ""
}

// classify maps a Bot API failure onto the retry taxonomy: rate limits,
// server errors and network failures are transient, everything else permanent.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return &domain.TransientError{Op: op, Err: err}
		}
		return &domain.PermanentError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransientError{Op: op, Err: err}
	}
	return &domain.PermanentError{Op: op, Err: err}
}
