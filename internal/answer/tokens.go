package answer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter measures text against the context budget.
type TokenCounter interface {
	Count(text string) int
	// Truncate returns the longest whitespace-delimited prefix of text
	// that fits in max tokens.
	Truncate(text string, max int) string
}

// WordCounter counts whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int { return len(strings.Fields(text)) }

func (WordCounter) Truncate(text string, max int) string {
	words := strings.Fields(text)
	if max <= 0 {
		return ""
	}
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ")
}

// TiktokenCounter counts BPE tokens.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding. The first call may
// download the BPE ranks.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Truncate(text string, max int) string {
	return truncateWords(c, text, max)
}

// truncateWords binary-searches the number of leading words that fit.
func truncateWords(c TokenCounter, text string, max int) string {
	words := strings.Fields(text)
	if max <= 0 || len(words) == 0 {
		return ""
	}
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(strings.Join(words[:mid], " ")) <= max {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.Join(words[:lo], " ")
}

// NewTokenCounter returns the configured counter, falling back to
// counting words when the encoding cannot be loaded.
func NewTokenCounter(kind, encoding string, log *zap.Logger) TokenCounter {
	if kind != "tiktoken" {
		return WordCounter{}
	}
	c, err := NewTiktokenCounter(encoding)
	if err != nil {
		if log != nil {
			log.Warn("falling back to word counting", zap.Error(err))
		}
		return WordCounter{}
	}
	return c
}
