// Package dispatch turns a feed kind into content and sends it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/content"
	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/retry"
)

// ErrNothingSent is returned when every send of a delivery failed.
var ErrNothingSent = errors.New("nothing was sent")

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Sender   Sender
	Holidays content.HolidaySource
	Films    content.FilmSource
	Quotes   *content.QuoteBook
	Media    *content.MediaLibrary
	Log      *zap.Logger

	// Scheduled is used for deliveries, Interactive for command replies.
	Scheduled   retry.Policy
	Interactive retry.Policy
}

// Dispatcher produces and sends feed content.
type Dispatcher struct {
	Deps
}

// New creates a dispatcher. Zero retry policies default to retry.Long and retry.Short.
func New(d Deps) *Dispatcher {
	if d.Scheduled.Delays == nil {
		d.Scheduled = retry.Long
	}
	if d.Interactive.Delays == nil {
		d.Interactive = retry.Short
	}
	return &Dispatcher{Deps: d}
}

// request is one delivery: recipient, retry policy and reply target.
type request struct {
	chatID  int64
	policy  retry.Policy
	replyTo int
	manual  bool
	sent    int
	fetch   error
}

func (d *Dispatcher) scheduled(chatID int64) *request {
	return &request{chatID: chatID, policy: d.Scheduled}
}

func (d *Dispatcher) interactive(chatID int64, replyTo int) *request {
	return &request{chatID: chatID, policy: d.Interactive, replyTo: replyTo, manual: true}
}

// fail records a content fetch failure. Scheduled deliveries report it even
// when a notice went out, so the slot stays open for the next tick.
func (r *request) fail(source string, err error) {
	var fe *domain.ContentFetchError
	if !errors.As(err, &fe) {
		err = &domain.ContentFetchError{Source: source, Err: err}
	}
	r.fetch = err
}

func (r *request) result() error {
	if r.sent == 0 {
		return ErrNothingSent
	}
	if r.fetch != nil && !r.manual {
		return fmt.Errorf("delivered notice only: %w", r.fetch)
	}
	return nil
}

// Dispatch delivers kind to uid for the local date of now. A nil error means
// the slot counts as delivered. When the content could not be fetched the
// notices are still sent and a *domain.ContentFetchError is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, uid int64, kind domain.Kind, now time.Time) error {
	req := d.scheduled(uid)
	switch kind {
	case domain.KindBase:
		d.base(ctx, req, "")
	case domain.KindHolidays:
		d.holidays(ctx, req, now)
	case domain.KindFilmsMonth:
		d.filmsMonth(ctx, req, now)
	case domain.KindFilmsDay:
		d.filmsDay(ctx, req, now)
	default:
		return domain.ErrUnknownKind
	}
	return req.result()
}

// SendBase answers a media request: a random media file captioned with a bare quote.
func (d *Dispatcher) SendBase(ctx context.Context, chatID int64, replyTo int) error {
	req := d.interactive(chatID, replyTo)
	d.base(ctx, req, d.Quotes.Random())
	return req.result()
}

// SendQuote answers with a quote as plain text.
func (d *Dispatcher) SendQuote(ctx context.Context, chatID int64, replyTo int) error {
	req := d.interactive(chatID, replyTo)
	d.text(ctx, req, "send quote", d.Quotes.Random(), Options{})
	return req.result()
}

// SendHolidays answers the holidays command for date.
func (d *Dispatcher) SendHolidays(ctx context.Context, chatID int64, replyTo int, date time.Time) error {
	req := d.interactive(chatID, replyTo)
	d.holidays(ctx, req, date)
	return req.result()
}

// SendFilmsMonth answers the monthly premieres command for the month of date.
func (d *Dispatcher) SendFilmsMonth(ctx context.Context, chatID int64, replyTo int, date time.Time) error {
	req := d.interactive(chatID, replyTo)
	d.filmsMonth(ctx, req, date)
	return req.result()
}

// SendFilmsDay answers the daily premieres command.
func (d *Dispatcher) SendFilmsDay(ctx context.Context, chatID int64, replyTo int, date time.Time) error {
	req := d.interactive(chatID, replyTo)
	d.filmsDay(ctx, req, date)
	return req.result()
}

// Greet sends the greeting of a yearly occasion.
func (d *Dispatcher) Greet(ctx context.Context, uid int64, o domain.Occasion, p domain.Profile) error {
	req := d.scheduled(uid)
	switch o {
	case domain.OccasionNewYear:
		d.text(ctx, req, "greet new year", textNewYear, Options{})
	case domain.OccasionBirthday:
		d.text(ctx, req, "greet birthday", fmt.Sprintf(textBirthday, p.DisplayName()), Options{})
	default:
		return fmt.Errorf("unknown occasion %q", o)
	}
	return req.result()
}

func (d *Dispatcher) base(ctx context.Context, req *request, caption string) {
	if caption == "" {
		caption = fmt.Sprintf(textBaseCaptionFmt, d.Quotes.Random())
	}
	path, err := d.Media.Random()
	if err != nil {
		d.text(ctx, req, "send no media", fmt.Sprintf(textNoMediaFmt, d.Media.Dir()), Options{})
		return
	}
	if d.media(ctx, req, Media{Path: path}, content.KindOf(path), caption, Options{}) {
		return
	}
	d.text(ctx, req, "send media fallback", textMediaFailed, Options{})
}

func (d *Dispatcher) holidays(ctx context.Context, req *request, date time.Time) {
	digest, err := d.Holidays.Daily(ctx, date)
	if err != nil {
		d.Log.Warn("holidays unavailable", zap.Int64("uid", req.chatID), zap.Error(err))
		req.fail("holidays", err)
		if req.manual {
			d.text(ctx, req, "send holidays error", textHolidaysManualErr, Options{})
			return
		}
		d.text(ctx, req, "send holidays error", textHolidaysFailed, Options{})
		d.text(ctx, req, "send holidays fallback", textHolidaysFallback, Options{})
		return
	}

	var image *Media
	switch {
	case digest.ImageURL != "":
		image = &Media{URL: digest.ImageURL}
	case len(digest.ImageBytes) > 0:
		name := digest.ImageName
		if name == "" {
			name = "holidays.jpg"
		}
		image = &Media{Bytes: digest.ImageBytes, Name: name}
	}
	if image != nil {
		d.media(ctx, req, *image, content.MediaPhoto, "", Options{})
	}
	d.text(ctx, req, "send holidays", content.HolidayCaption(digest), Options{HTML: true})
	d.Log.Info("holidays sent", zap.Int64("uid", req.chatID), zap.Bool("image", image != nil), zap.Int("names", len(digest.Names)))
}

func (d *Dispatcher) filmsMonth(ctx context.Context, req *request, date time.Time) {
	blocks, err := d.Films.Monthly(ctx, date)
	if err != nil {
		d.Log.Warn("monthly premieres unavailable", zap.Int64("uid", req.chatID), zap.Error(err))
		req.fail("films", err)
		d.text(ctx, req, "send films month error", textFilmsMonthFailed, Options{})
		return
	}
	if len(blocks) == 0 {
		d.text(ctx, req, "send films month empty", textFilmsMonthEmpty, Options{})
		return
	}
	for _, msg := range content.Pack(blocks, content.MaxMessageLen) {
		d.text(ctx, req, "send films month", msg, Options{HTML: true, NoPreview: true})
	}
}

func (d *Dispatcher) filmsDay(ctx context.Context, req *request, date time.Time) {
	films, err := d.Films.Daily(ctx, date)
	if err != nil {
		d.Log.Warn("daily premieres unavailable", zap.Int64("uid", req.chatID), zap.Error(err))
		req.fail("films_day", err)
		d.text(ctx, req, "send films day error", textFilmsDayFailed, Options{})
		return
	}
	if len(films) == 0 {
		d.text(ctx, req, "send films day empty", textFilmsDayEmpty, Options{})
		return
	}
	for _, f := range films {
		if f.PosterURL != "" && d.media(ctx, req, Media{URL: f.PosterURL}, content.MediaPhoto, f.Caption, Options{HTML: true}) {
			continue
		}
		d.text(ctx, req, "send films day text", f.Caption, Options{HTML: true, NoPreview: true})
	}
}

func (d *Dispatcher) text(ctx context.Context, req *request, label, text string, opts Options) bool {
	opts.ReplyTo = req.replyTo
	return d.attempt(ctx, req, label, func(ctx context.Context) error {
		_, err := d.Sender.SendText(ctx, req.chatID, text, opts)
		return err
	})
}

func (d *Dispatcher) media(ctx context.Context, req *request, m Media, kind content.MediaKind, caption string, opts Options) bool {
	opts.ReplyTo = req.replyTo
	send := d.Sender.SendDocument
	switch kind {
	case content.MediaPhoto:
		send = d.Sender.SendPhoto
	case content.MediaAnimation:
		send = d.Sender.SendAnimation
	case content.MediaVideo:
		send = d.Sender.SendVideo
	}
	return d.attempt(ctx, req, "send "+string(kind), func(ctx context.Context) error {
		_, err := send(ctx, req.chatID, m, caption, opts)
		return err
	})
}

func (d *Dispatcher) attempt(ctx context.Context, req *request, label string, fn func(context.Context) error) bool {
	if err := req.policy.Do(ctx, d.Log, label, fn); err != nil {
		d.Log.Warn("delivery step failed", zap.Int64("uid", req.chatID), zap.String("op", label), zap.Error(err))
		return false
	}
	req.sent++
	return true
}
