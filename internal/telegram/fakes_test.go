package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/content"
	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/events"
	"github.com/ykvlv/legendalf-bot/internal/registry"
	"github.com/ykvlv/legendalf-bot/internal/retry"
	"github.com/ykvlv/legendalf-bot/internal/store"
)

const (
	adminID    int64 = 1
	memberID   int64 = 2
	strangerID int64 = 3
)

var fast = retry.Policy{Delays: []time.Duration{time.Millisecond}, Retryable: domain.IsTransient}

type fakeClient struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (c *fakeClient) Send(ch tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return tgbotapi.Message{}, c.sendErr
	}
	c.sent = append(c.sent, ch)
	return tgbotapi.Message{MessageID: len(c.sent)}, nil
}

func (c *fakeClient) Request(ch tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, ch)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (c *fakeClient) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

// messages returns the plain messages sent to chatID.
func (c *fakeClient) messages(chatID int64) []tgbotapi.MessageConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, ch := range c.sent {
		if m, ok := ch.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeClient) texts(chatID int64) []string {
	var out []string
	for _, m := range c.messages(chatID) {
		out = append(out, m.Text)
	}
	return out
}

func (c *fakeClient) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	texts := c.texts(chatID)
	require.NotEmpty(t, texts, "no messages to chat %d", chatID)
	return texts[len(texts)-1]
}

func (c *fakeClient) callbackAnswers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ch := range c.requests {
		if cb, ok := ch.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (c *fakeClient) keyboardEdits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ch := range c.requests {
		if _, ok := ch.(tgbotapi.EditMessageReplyMarkupConfig); ok {
			n++
		}
	}
	return n
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.requests = nil
}

type contentCall struct {
	op      string
	chatID  int64
	replyTo int
	date    time.Time
}

type fakeContent struct {
	mu    sync.Mutex
	calls []contentCall
	panic bool
}

func (f *fakeContent) record(op string, chatID int64, replyTo int, date time.Time) error {
	if f.panic {
		panic("content exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, contentCall{op: op, chatID: chatID, replyTo: replyTo, date: date})
	return nil
}

func (f *fakeContent) SendBase(_ context.Context, chatID int64, replyTo int) error {
	return f.record("base", chatID, replyTo, time.Time{})
}

func (f *fakeContent) SendQuote(_ context.Context, chatID int64, replyTo int) error {
	return f.record("quote", chatID, replyTo, time.Time{})
}

func (f *fakeContent) SendHolidays(_ context.Context, chatID int64, replyTo int, date time.Time) error {
	return f.record("holidays", chatID, replyTo, date)
}

func (f *fakeContent) SendFilmsMonth(_ context.Context, chatID int64, replyTo int, date time.Time) error {
	return f.record("films_month", chatID, replyTo, date)
}

func (f *fakeContent) SendFilmsDay(_ context.Context, chatID int64, replyTo int, date time.Time) error {
	return f.record("films_day", chatID, replyTo, date)
}

func (f *fakeContent) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

type fixture struct {
	router   *Router
	client   *fakeClient
	content  *fakeContent
	access   *access.Service
	registry *registry.Registry
	quotes   *content.QuoteBook
	media    *content.MediaLibrary
	clock    *clockwork.FakeClock
	fetched  []string
}

// newFixture builds a router over an in-memory store with one admin and one
// admitted member. Admission events reach a notifier on the same client.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	bus := events.NewBus(log)
	t.Cleanup(func() { _ = bus.Close() })

	dir := t.TempDir()
	f := &fixture{
		client:  &fakeClient{},
		content: &fakeContent{},
		clock:   clockwork.NewFakeClockAt(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)),
		quotes:  content.NewQuoteBook(dir + "/quotes.txt"),
		media:   content.NewMediaLibrary(dir + "/media"),
	}
	repo := store.NewMemory()
	f.access = access.New(repo, bus, f.clock, log)
	f.registry = registry.New(repo, "Europe/Moscow")

	require.NoError(t, f.access.SyncAdmins(ctx, []int64{adminID}))
	_, err := f.access.RequestAdmission(ctx, domain.Profile{ID: memberID, Username: "frodo", FirstName: "Frodo"})
	require.NoError(t, err)
	_, err = f.access.Approve(ctx, memberID)
	require.NoError(t, err)

	require.NoError(t, NewNotifier(f.client, f.access, fast, log).Subscribe(bus))

	f.router = NewRouter(Deps{
		Client:   f.client,
		Access:   f.access,
		Registry: f.registry,
		Content:  f.content,
		Quotes:   f.quotes,
		Media:    f.media,
		Clock:    f.clock,
		Log:      log,
		Replies:  fast,
		Download: func(_ context.Context, url string) (io.ReadCloser, error) {
			f.fetched = append(f.fetched, url)
			if strings.HasSuffix(url, "broken") {
				return nil, errors.New("connection reset")
			}
			return io.NopCloser(strings.NewReader("GIF89a")), nil
		},
	})
	f.client.reset()
	return f
}

func (f *fixture) say(uid int64, text string) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: 100,
		Message:  newMessage(uid, text),
	})
}

func (f *fixture) send(msg *tgbotapi.Message) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 101, Message: msg})
}

func (f *fixture) press(uid int64, data string) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: 102,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      fmt.Sprintf("cb-%d", uid),
			From:    &tgbotapi.User{ID: uid},
			Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: uid}},
			Data:    data,
		},
	})
}

func newMessage(uid int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: uid, UserName: fmt.Sprintf("user%d", uid), FirstName: "Pippin"},
		Chat:      &tgbotapi.Chat{ID: uid},
		Text:      text,
	}
}
