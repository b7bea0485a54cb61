package content

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	quotesMissing = "База пока молчит: заполни quotes.txt, и мудрость оживёт."
	quotesEmpty   = "База пуста: даже мудрость молчит, если её не записали."
)

// QuoteBook serves random lines of a text file. The file is re-read on every
// call so edits apply without a restart.
type QuoteBook struct {
	path string
	pick func(n int) int
	mu   sync.Mutex
}

// NewQuoteBook reads quotes from path.
func NewQuoteBook(path string) *QuoteBook {
	return &QuoteBook{path: path, pick: rand.Intn}
}

// Quotes returns the non-empty lines, or a single placeholder line. Lines of
// any length are kept; an unreadable file counts as missing.
func (q *QuoteBook) Quotes() []string {
	f, err := os.Open(q.path)
	if err != nil {
		return []string{quotesMissing}
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" {
			lines = append(lines, l)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return []string{quotesMissing}
		}
	}
	if len(lines) == 0 {
		return []string{quotesEmpty}
	}
	return lines
}

// ErrEmptyQuote rejects blank additions.
var ErrEmptyQuote = errors.New("empty quote")

// Append adds a quote as a new line, creating the file when needed.
func (q *QuoteBook) Append(text string) error {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ErrEmptyQuote
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	prefix := ""
	if raw, err := os.ReadFile(q.path); err == nil && len(raw) > 0 && raw[len(raw)-1] != '\n' {
		prefix = "\n"
	}
	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(prefix + cleaned + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Random returns one quote.
func (q *QuoteBook) Random() string {
	lines := q.Quotes()
	return lines[q.pick(len(lines))]
}

// MediaKind selects the send method for a media file.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaAnimation MediaKind = "animation"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
)

var mediaKinds = map[string]MediaKind{
	".jpg":  MediaPhoto,
	".jpeg": MediaPhoto,
	".png":  MediaPhoto,
	".webp": MediaPhoto,
	".gif":  MediaAnimation,
	".mp4":  MediaVideo,
}

// KindOf maps a file name to its send method; unknown extensions are documents.
func KindOf(name string) MediaKind {
	if k, ok := mediaKinds[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return MediaDocument
}

// ErrNoMedia is returned when the media directory holds nothing usable.
var ErrNoMedia = errors.New("no media files")

// MediaLibrary picks random media files from a directory.
type MediaLibrary struct {
	dir  string
	pick func(n int) int
}

// NewMediaLibrary serves files from dir.
func NewMediaLibrary(dir string) *MediaLibrary {
	return &MediaLibrary{dir: dir, pick: rand.Intn}
}

// Dir is the served directory.
func (m *MediaLibrary) Dir() string { return m.dir }

// Files lists supported media files in name order.
func (m *MediaLibrary) Files() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if Supported(e.Name()) {
			out = append(out, filepath.Join(m.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

// Random returns a random media file path.
func (m *MediaLibrary) Random() (string, error) {
	files := m.Files()
	if len(files) == 0 {
		return "", ErrNoMedia
	}
	return files[m.pick(len(files))], nil
}

// Supported reports whether name has a servable media extension.
func Supported(name string) bool {
	_, ok := mediaKinds[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Save stores r under name in the library directory and returns the full path.
func (m *MediaLibrary) Save(name string, r io.Reader) (string, error) {
	if !Supported(name) {
		return "", fmt.Errorf("unsupported media %q", filepath.Ext(name))
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(m.dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
