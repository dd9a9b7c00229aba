package ai

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates how many tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a cl100k based estimator. Counts are approximate for
// non-OpenAI providers and only feed the logs.
func NewTokenCounter() (TokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &tiktokenCounter{codec: codec}, nil
}

func (t *tiktokenCounter) Count(text string) int {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

func promptTokens(counter TokenCounter, messages []*schema.Message) int {
	if counter == nil {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += counter.Count(m.Content)
	}
	return total
}
