package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/content"
	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// --- Access ---

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	allowed, err := r.access.IsAllowed(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if allowed {
		r.reply(ctx, msg, howToAsk)
	} else {
		r.reply(ctx, msg, askMellon)
	}
	return nil
}

func (r *Router) handleID(ctx context.Context, msg *tgbotapi.Message) error {
	r.reply(ctx, msg, fmt.Sprintf(idFmt, msg.From.ID, usernameOrNone(msg.From.UserName)))
	return nil
}

func (r *Router) handleMellon(ctx context.Context, msg *tgbotapi.Message) error {
	res, err := r.access.RequestAdmission(ctx, profileOf(msg.From))
	if err != nil {
		return err
	}
	if res == access.AlreadyAdmitted {
		r.reply(ctx, msg, mellonAdmitted)
		return nil
	}
	r.reply(ctx, msg, mellonQueued)
	return nil
}

// handleAdminCommand serves /pending, /users, /allow and /deny. Other users
// get no answer at all.
func (r *Router) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message, cmd, args string) error {
	admin, err := r.access.IsAdmin(ctx, msg.From.ID)
	if err != nil || !admin {
		return err
	}
	switch cmd {
	case "pending":
		users, err := r.access.Pending(ctx)
		if err != nil {
			return err
		}
		r.reply(ctx, msg, pendingText(users))
	case "users":
		return r.handleUsers(ctx, msg, args)
	case "allow":
		uid, ok := parseUserID(args)
		if !ok {
			r.reply(ctx, msg, allowUsage)
			return nil
		}
		if _, err := r.access.Approve(ctx, uid); err != nil {
			return err
		}
		r.reply(ctx, msg, fmt.Sprintf(allowDoneFmt, uid))
	case "deny":
		uid, ok := parseUserID(args)
		if !ok {
			r.reply(ctx, msg, denyUsage)
			return nil
		}
		if _, err := r.access.Deny(ctx, uid); err != nil {
			return err
		}
		r.reply(ctx, msg, fmt.Sprintf(denyDoneFmt, uid))
	}
	return nil
}

func (r *Router) handleUsers(ctx context.Context, msg *tgbotapi.Message, args string) error {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		ov, err := r.access.Overview(ctx)
		if err != nil {
			return err
		}
		r.reply(ctx, msg, overviewText(ov))
		return nil
	}
	if len(parts) < 2 {
		r.reply(ctx, msg, usersUsage)
		return nil
	}
	born, err := domain.ParseBirthday(parts[1])
	if err != nil {
		r.reply(ctx, msg, usersBadDate)
		return nil
	}
	u, err := r.access.SetBirthday(ctx, parts[0], born)
	if errors.Is(err, domain.ErrUserNotFound) {
		r.reply(ctx, msg, usersNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	scope := "среди допущенных"
	if u.Status == domain.StatusPending {
		scope = "в очереди у врат"
	}
	r.reply(ctx, msg, fmt.Sprintf(birthdayFmt, u.DisplayName(), domain.FormatBirthday(u.Birthday), scope))
	return nil
}

func (r *Router) handleDecisionCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, approve bool, rest string) error {
	admin, err := r.access.IsAdmin(ctx, cb.From.ID)
	if err != nil {
		return err
	}
	if !admin {
		r.out.answerCallback(cb.ID, notForYou)
		return nil
	}
	uid, ok := parseUserID(rest)
	if !ok {
		r.out.answerCallback(cb.ID, cbBadChoice)
		return nil
	}
	if approve {
		_, err = r.access.Approve(ctx, uid)
	} else {
		_, err = r.access.Deny(ctx, uid)
	}
	if err != nil {
		return err
	}
	if approve {
		r.out.answerCallback(cb.ID, cbGatesOpen)
	} else {
		r.out.answerCallback(cb.ID, cbDecided)
	}
	r.out.dropKeyboard(cb.Message)
	return nil
}

// --- Free text ---

func (r *Router) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	uid := msg.From.ID
	admin, err := r.access.IsAdmin(ctx, uid)
	if err != nil {
		return err
	}
	allowed := admin
	if !admin {
		if allowed, err = r.access.IsAllowed(ctx, uid); err != nil {
			return err
		}
	}
	if !allowed {
		r.reply(ctx, msg, askMellon)
		return nil
	}

	switch {
	case isMediaTrigger(msg.Text):
		return r.content.SendBase(ctx, msg.Chat.ID, msg.MessageID)
	case isBaseTrigger(msg.Text):
		return r.content.SendQuote(ctx, msg.Chat.ID, msg.MessageID)
	}

	if !admin {
		r.reply(ctx, msg, howToAsk)
		return nil
	}
	quote, ok := quoteToSave(msg.Text)
	if !ok {
		return nil
	}
	if err := r.quotes.Append(quote); err != nil {
		if errors.Is(err, content.ErrEmptyQuote) {
			r.reply(ctx, msg, quoteEmpty)
			return nil
		}
		return err
	}
	r.log.Info("quote saved", zap.Int64("uid", uid))
	r.reply(ctx, msg, quoteSaved)
	return nil
}

// --- Media upload (admins) ---

func hasMedia(msg *tgbotapi.Message) bool {
	return len(msg.Photo) > 0 || msg.Animation != nil || msg.Video != nil || msg.Document != nil
}

// mediaFile picks the file id and extension of an uploaded media message.
func mediaFile(msg *tgbotapi.Message) (fileID, ext string) {
	switch {
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID, ".jpg"
	case msg.Animation != nil:
		return msg.Animation.FileID, strings.ToLower(filepath.Ext(msg.Animation.FileName))
	case msg.Video != nil:
		return msg.Video.FileID, strings.ToLower(filepath.Ext(msg.Video.FileName))
	case msg.Document != nil:
		return msg.Document.FileID, strings.ToLower(filepath.Ext(msg.Document.FileName))
	}
	return "", ""
}

func (r *Router) handleMediaUpload(ctx context.Context, msg *tgbotapi.Message) error {
	admin, err := r.access.IsAdmin(ctx, msg.From.ID)
	if err != nil || !admin {
		return err
	}
	r.reply(ctx, msg, mediaAccepted)

	path, reason := r.saveMedia(ctx, msg)
	if reason != "" {
		r.reply(ctx, msg, fmt.Sprintf(mediaFailFmt, reason))
		return nil
	}
	r.log.Info("media saved", zap.String("path", path))
	r.reply(ctx, msg, fmt.Sprintf(mediaSavedFmt, path))
	return nil
}

// saveMedia stores the media of msg in the library. On failure it returns
// the user-facing reason.
func (r *Router) saveMedia(ctx context.Context, msg *tgbotapi.Message) (path, reason string) {
	fileID, ext := mediaFile(msg)
	if fileID == "" {
		return "", mediaNone
	}
	if !content.Supported("upload" + ext) {
		return "", mediaBadType
	}

	url, err := r.client.GetFileDirectURL(fileID)
	if err != nil {
		r.log.Warn("resolve file failed", zap.Error(err))
		return "", mediaNetFail
	}
	body, err := r.download(ctx, url)
	if err != nil {
		r.log.Warn("download failed", zap.Error(err))
		return "", mediaNetFail
	}
	defer body.Close()

	prefix := fileID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := fmt.Sprintf("%s_%s%s", r.clock.Now().UTC().Format("20060102_150405"), prefix, ext)
	path, err = r.media.Save(name, body)
	if err != nil {
		r.log.Warn("store media failed", zap.Error(err))
		return "", mediaDiskFail
	}
	return path, ""
}

func parseUserID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t") {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func cutColon(s string) (head, rest string, ok bool) {
	return strings.Cut(s, ":")
}
