package usecase

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// TokenCounter estimates prompt size for transcript budgeting.
type TokenCounter interface {
	Count(text string) int
}

// ApproxCounter assumes roughly four characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int { return (len(text) + 3) / 4 }

type tiktokenCounter struct {
	encoding string
	log      *zerolog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the BPE ranks lazily on first use and falls back to
// ApproxCounter when they cannot be loaded.
func NewTiktokenCounter(encoding string, logger *zerolog.Logger) TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &tiktokenCounter{encoding: encoding, log: logger}
}

func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.log.Warn().Err(err).Str("encoding", c.encoding).Msg("tiktoken unavailable, using approximate counts")
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return ApproxCounter{}.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
