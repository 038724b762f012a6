package client

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when a model has no known tokenizer.
const DefaultEncoding = "o200k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

func encoding(name string) (*tiktoken.Tiktoken, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if tke, ok := encodings[name]; ok {
		return tke, nil
	}

	tke, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}

	encodings[name] = tke
	return tke, nil
}

// EncodingForModel returns the tiktoken encoding name for model. Only the
// older GPT-4 and GPT-3.5 families use cl100k_base.
func EncodingForModel(model string) string {
	model = strings.ToLower(model)
	if strings.HasPrefix(model, "gpt-3.5") || (strings.HasPrefix(model, "gpt-4") && !strings.HasPrefix(model, "gpt-4o") && !strings.HasPrefix(model, "gpt-4.")) {
		return "cl100k_base"
	}
	return DefaultEncoding
}

// EstimateTokens counts the tokens of text with the named encoding. The
// encoding is downloaded and cached on first use.
func EstimateTokens(text, encodingName string) (int, error) {
	tke, err := encoding(encodingName)
	if err != nil {
		return 0, err
	}

	return len(tke.Encode(text, nil, nil)), nil
}
