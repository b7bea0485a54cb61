package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) mayRead(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	allowed, err := r.access.IsAllowed(ctx, msg.From.ID)
	if err != nil {
		return false, err
	}
	if !allowed {
		r.reply(ctx, msg, accessClosed)
	}
	return allowed, nil
}

func (r *Router) handleHolidays(ctx context.Context, msg *tgbotapi.Message) error {
	if ok, err := r.mayRead(ctx, msg); !ok {
		return err
	}
	return r.content.SendHolidays(ctx, msg.Chat.ID, msg.MessageID, r.today())
}

// handleFilmsMonth lists the premieres of the current month, or of the month
// given as "02.26" or "февраль 2026".
func (r *Router) handleFilmsMonth(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if ok, err := r.mayRead(ctx, msg); !ok {
		return err
	}
	today := r.today()
	date := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	if args != "" {
		var ok bool
		if date, ok = parseMonthArg(args, today.Location()); !ok {
			r.reply(ctx, msg, filmsMonthUsage)
			return nil
		}
	}
	return r.content.SendFilmsMonth(ctx, msg.Chat.ID, msg.MessageID, date)
}

func (r *Router) handleFilmsDay(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if ok, err := r.mayRead(ctx, msg); !ok {
		return err
	}
	date := r.today()
	if args != "" {
		var ok bool
		if date, ok = parseDayArg(args, date); !ok {
			r.reply(ctx, msg, filmsDayUsage)
			return nil
		}
	}
	return r.content.SendFilmsDay(ctx, msg.Chat.ID, msg.MessageID, date)
}
