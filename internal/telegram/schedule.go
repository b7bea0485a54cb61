package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/registry"
)

// mayPlan reports whether the sender may manage a schedule and answers the
// ones who may not.
func (r *Router) mayPlan(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	allowed, err := r.access.IsAllowed(ctx, msg.From.ID)
	if err != nil {
		return false, err
	}
	if !allowed {
		r.reply(ctx, msg, askMellonSched)
	}
	return allowed, nil
}

func (r *Router) render(sch *domain.Schedule) string {
	return registry.Render(sch, r.registry.DefaultTZ())
}

func (r *Router) handleSchedule(ctx context.Context, msg *tgbotapi.Message) error {
	if ok, err := r.mayPlan(ctx, msg); !ok {
		return err
	}
	sch, err := r.registry.Ensure(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	r.reply(ctx, msg, r.render(sch))
	return nil
}

// handleScheduleAdd starts the add dialog. "/schedule_add <kind>" skips the
// kind question and "/schedule_add <kind> <time>" skips the dialog.
func (r *Router) handleScheduleAdd(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if ok, err := r.mayPlan(ctx, msg); !ok {
		return err
	}
	uid := msg.From.ID
	parts := strings.Fields(args)
	if len(parts) == 0 {
		r.sessions.Set(uid, Session{Step: StepAddKind})
		r.replyMarkup(ctx, msg, schedPickAdd, kindKeyboard(uid, "add"))
		return nil
	}
	kind, err := domain.ParseKind(parts[0])
	if err != nil {
		r.sessions.Set(uid, Session{Step: StepAddKind})
		r.replyMarkup(ctx, msg, schedPickAgain, kindKeyboard(uid, "add"))
		return nil
	}
	if len(parts) == 1 {
		r.askTime(ctx, msg.Chat.ID, uid, kind)
		return nil
	}
	return r.applyTime(ctx, msg, kind, parts[1])
}

func (r *Router) askTime(ctx context.Context, chatID, uid int64, kind domain.Kind) {
	r.sessions.Set(uid, Session{Step: StepAddTime, Kind: kind})
	_ = r.out.text(ctx, chatID, fmt.Sprintf(schedAskTimeFmt, kind.Label()), nil)
}

// applyTime stores the time of kind. A malformed time keeps the dialog
// waiting for another answer.
func (r *Router) applyTime(ctx context.Context, msg *tgbotapi.Message, kind domain.Kind, raw string) error {
	uid := msg.From.ID
	sch, err := r.registry.SetKindTime(ctx, uid, kind, raw)
	if domain.IsValidation(err) {
		r.sessions.Set(uid, Session{Step: StepAddTime, Kind: kind})
		r.reply(ctx, msg, schedBadTime)
		return nil
	}
	if err != nil {
		return err
	}
	r.sessions.Clear(uid)
	r.reply(ctx, msg, schedUpdated+r.render(sch))
	return nil
}

func (r *Router) handleScheduleDel(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if ok, err := r.mayPlan(ctx, msg); !ok {
		return err
	}
	uid := msg.From.ID
	if args = strings.TrimSpace(args); args != "" {
		if kind, err := domain.ParseKind(args); err == nil {
			return r.clearKind(ctx, msg.Chat.ID, uid, kind)
		}
	}
	r.sessions.Set(uid, Session{Step: StepDelKind})
	r.replyMarkup(ctx, msg, schedPickDel, kindKeyboard(uid, "del"))
	return nil
}

func (r *Router) clearKind(ctx context.Context, chatID, uid int64, kind domain.Kind) error {
	r.sessions.Clear(uid)
	sch, err := r.registry.ClearKind(ctx, uid, kind)
	if err != nil {
		return err
	}
	_ = r.out.text(ctx, chatID, fmt.Sprintf(schedClearedFmt, kind.Label())+r.render(sch), nil)
	return nil
}

// handleScheduleToggle switches the whole schedule, or one kind when args
// names it.
func (r *Router) handleScheduleToggle(ctx context.Context, msg *tgbotapi.Message, args string, on bool) error {
	if ok, err := r.mayPlan(ctx, msg); !ok {
		return err
	}
	uid := msg.From.ID
	args = strings.TrimSpace(args)
	if args == "" {
		sch, err := r.registry.SetGlobalEnabled(ctx, uid, on)
		if err != nil {
			return err
		}
		status := "Отключено."
		if on {
			status = "Включено."
		}
		r.reply(ctx, msg, fmt.Sprintf(schedGlobalFmt, status)+r.render(sch))
		return nil
	}

	kind, err := domain.ParseKind(args)
	if err != nil {
		r.reply(ctx, msg, schedPickKind)
		return nil
	}
	sch, err := r.registry.SetKindEnabled(ctx, uid, kind, on)
	if errors.Is(err, domain.ErrNothingToEnable) {
		r.reply(ctx, msg, schedNeedTime)
		return nil
	}
	if err != nil {
		return err
	}
	state := "выключена"
	if on {
		state = "включена"
	}
	r.reply(ctx, msg, fmt.Sprintf(schedKindFmt, kind.Label(), state)+r.render(sch))
	return nil
}

func (r *Router) handleScheduleTZ(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if ok, err := r.mayPlan(ctx, msg); !ok {
		return err
	}
	name := strings.TrimSpace(args)
	if name == "" {
		r.reply(ctx, msg, tzUsage)
		return nil
	}
	sch, err := r.registry.SetTimezone(ctx, msg.From.ID, name)
	if domain.IsValidation(err) {
		r.reply(ctx, msg, tzUnknown)
		return nil
	}
	if err != nil {
		return err
	}
	r.reply(ctx, msg, fmt.Sprintf(tzAcceptedFmt, sch.TZ)+r.render(sch))
	return nil
}

// continueDialog feeds a plain message into the open schedule dialog.
func (r *Router) continueDialog(ctx context.Context, msg *tgbotapi.Message, sess Session) error {
	uid := msg.From.ID
	allowed, err := r.access.IsAllowed(ctx, uid)
	if err != nil {
		return err
	}
	if !allowed {
		r.sessions.Clear(uid)
		r.reply(ctx, msg, accessClosed)
		return nil
	}

	switch sess.Step {
	case StepAddKind:
		kind, err := domain.ParseKind(msg.Text)
		if err != nil {
			r.replyMarkup(ctx, msg, schedPickAgain, kindKeyboard(uid, "add"))
			return nil
		}
		r.askTime(ctx, msg.Chat.ID, uid, kind)
	case StepAddTime:
		if strings.TrimSpace(msg.Text) == "" {
			r.reply(ctx, msg, schedWaitTime)
			return nil
		}
		return r.applyTime(ctx, msg, sess.Kind, msg.Text)
	case StepDelKind:
		kind, err := domain.ParseKind(msg.Text)
		if err != nil {
			r.replyMarkup(ctx, msg, schedPickDelHint, kindKeyboard(uid, "del"))
			return nil
		}
		return r.clearKind(ctx, msg.Chat.ID, uid, kind)
	default:
		r.sessions.Clear(uid)
		return r.handleText(ctx, msg)
	}
	return nil
}

// handleKindCallback serves the kind keyboard; data is "<uid>:<kind>".
func (r *Router) handleKindCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, action, rest string) error {
	rawUID, rawKind, _ := cutColon(rest)
	owner, err := strconv.ParseInt(rawUID, 10, 64)
	if err != nil {
		r.out.answerCallback(cb.ID, cbBadChoice)
		return nil
	}
	uid := cb.From.ID
	if owner != uid {
		r.out.answerCallback(cb.ID, cbNotYours)
		return nil
	}
	allowed, err := r.access.IsAllowed(ctx, uid)
	if err != nil {
		return err
	}
	if !allowed {
		r.out.answerCallback(cb.ID, cbNeedAccess)
		return nil
	}
	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		r.out.answerCallback(cb.ID, cbBadChoice)
		return nil
	}

	chatID := uid
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}
	if action == "add" {
		r.out.answerCallback(cb.ID, cbChoiceAccepted)
		r.out.dropKeyboard(cb.Message)
		r.askTime(ctx, chatID, uid, kind)
		return nil
	}
	r.out.answerCallback(cb.ID, cbModuleChosen)
	r.out.dropKeyboard(cb.Message)
	return r.clearKind(ctx, chatID, uid, kind)
}
