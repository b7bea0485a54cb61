package dispatch

import "context"

//go:generate mockgen -source=sender.go -destination=mock_sender_test.go -package=dispatch

// Media addresses a file to upload: a local path, a remote URL or raw bytes.
type Media struct {
	Path  string
	URL   string
	Bytes []byte
	Name  string
}

// Options tune a single send.
type Options struct {
	HTML      bool
	NoPreview bool
	ReplyTo   int
}

// Sender delivers messages to a chat. Implementations classify failures as
// *domain.TransientError or *domain.PermanentError.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts Options) (int, error)
	SendPhoto(ctx context.Context, chatID int64, media Media, caption string, opts Options) (int, error)
	SendAnimation(ctx context.Context, chatID int64, media Media, caption string, opts Options) (int, error)
	SendVideo(ctx context.Context, chatID int64, media Media, caption string, opts Options) (int, error)
	SendDocument(ctx context.Context, chatID int64, media Media, caption string, opts Options) (int, error)
}
