package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Inserter receives the words read from a dictionary. *bktree.Tree[string]
// satisfies it.
type Inserter interface {
	Insert(value string)
}

// Stats describes one Load call
type Stats struct {
	LinesRead int // every line, blank ones included
	Inserted  int // Insert calls made
}

// Loader reads newline-delimited word lists into a tree
type Loader struct {
	normalise   bool
	lowercase   bool
	maxLineSize int
	progressFn  func(inserted int, current string)
}

// Option configures a Loader
type Option func(*Loader)

// WithNormalise strips combining marks so that "café" and "cafe" load as the
// same word
func WithNormalise(on bool) Option {
	return func(l *Loader) {
		l.normalise = on
	}
}

// WithLowercase folds every word to lower case before inserting it
func WithLowercase(on bool) Option {
	return func(l *Loader) {
		l.lowercase = on
	}
}

// WithMaxLineSize sets the longest line accepted, in bytes
func WithMaxLineSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxLineSize = n
		}
	}
}

// WithProgress sets a callback invoked after every insert
func WithProgress(fn func(inserted int, current string)) Option {
	return func(l *Loader) {
		l.progressFn = fn
	}
}

// NewLoader creates a new Loader
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxLineSize: 1024 * 1024,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load inserts every non-empty line of r into dst. A trailing carriage
// return is dropped; other whitespace is kept as part of the word.
func (l *Loader) Load(ctx context.Context, r io.Reader, dst Inserter) (Stats, error) {
	var stats Stats

	var transformer transform.Transformer
	if l.normalise {
		transformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, l.maxLineSize)), l.maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.LinesRead++

		word := strings.TrimSuffix(scanner.Text(), "\r")
		if word == "" {
			continue
		}

		if transformer != nil {
			normal, _, err := transform.String(transformer, word)
			if err != nil {
				return stats, fmt.Errorf("line %d: failed to normalise %q: %w", stats.LinesRead, word, err)
			}
			word = normal
		}
		if l.lowercase {
			word = strings.ToLower(word)
		}

		dst.Insert(word)
		stats.Inserted++

		if l.progressFn != nil {
			l.progressFn(stats.Inserted, word)
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read line %d: %w", stats.LinesRead+1, err)
	}

	return stats, nil
}

// LoadFile opens path and loads it with Load
func (l *Loader) LoadFile(ctx context.Context, path string, dst Inserter) (Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open word list: %w", err)
	}
	defer file.Close()

	return l.Load(ctx, file, dst)
}
