// Package content defines the feed collaborators and the local content
// (quotes and media) the bot serves on its own.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// HolidayItem is one celebrated occasion of the day.
type HolidayItem struct {
	Title       string
	Description string
	URL         string
	Category    string
}

// HolidayDigest is everything known about a calendar day.
type HolidayDigest struct {
	Date       time.Time
	Headline   string
	Items      []HolidayItem
	ImageURL   string
	ImageBytes []byte
	ImageName  string
	Names      []string // name days
}

// FilmPayload is one premiere of the day.
type FilmPayload struct {
	PosterURL string
	Caption   string // HTML
}

// HolidaySource produces the holiday digest of a date. Failures are
// *domain.ContentFetchError.
type HolidaySource interface {
	Daily(ctx context.Context, date time.Time) (*HolidayDigest, error)
}

// FilmSource produces premiere listings. Monthly returns one HTML block per
// premiere; the caller packs them into messages.
type FilmSource interface {
	Monthly(ctx context.Context, date time.Time) ([]string, error)
	Daily(ctx context.Context, date time.Time) ([]FilmPayload, error)
}

// ErrNotConfigured is wrapped by the unavailable sources.
var ErrNotConfigured = errors.New("source is not configured")

// UnavailableHolidays is wired when no holiday provider is configured.
type UnavailableHolidays struct{ Name string }

func (u UnavailableHolidays) Daily(context.Context, time.Time) (*HolidayDigest, error) {
	return nil, &domain.ContentFetchError{Source: u.Name, Err: ErrNotConfigured}
}

// UnavailableFilms is wired when no premiere provider is configured.
type UnavailableFilms struct{ Name string }

func (u UnavailableFilms) Monthly(context.Context, time.Time) ([]string, error) {
	return nil, &domain.ContentFetchError{Source: u.Name, Err: ErrNotConfigured}
}

func (u UnavailableFilms) Daily(context.Context, time.Time) ([]FilmPayload, error) {
	return nil, &domain.ContentFetchError{Source: u.Name, Err: ErrNotConfigured}
}
