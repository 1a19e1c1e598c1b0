package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Kind selects the model backend variant.
type Kind string

const (
	// KindLocal is an Ollama-compatible server exposing /api/chat.
	KindLocal Kind = "local"
	// KindCloud is an OpenAI-compatible chat completions API.
	KindCloud Kind = "cloud"
)

// Backend carries the connection parameters of one backend variant.
// APIKey is only used by KindCloud.
type Backend struct {
	Kind    Kind
	BaseURL string
	Model   string
	APIKey  string
}

// ErrMissingAPIKey is returned when a cloud backend has no API key.
var ErrMissingAPIKey = errors.New("cloud backend requires an API key")

// newModel is the single dispatch point from backend variant to langchaingo model.
func newModel(b Backend, hc *http.Client) (llms.Model, error) {
	switch b.Kind {
	case KindLocal:
		m, err := ollama.New(
			ollama.WithModel(b.Model),
			ollama.WithServerURL(b.BaseURL),
			ollama.WithHTTPClient(hc),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama: %w", err)
		}
		return m, nil
	case KindCloud:
		if b.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		m, err := openai.New(
			openai.WithToken(b.APIKey),
			openai.WithBaseURL(b.BaseURL),
			openai.WithModel(b.Model),
			openai.WithHTTPClient(hc),
		)
		if err != nil {
			return nil, fmt.Errorf("init openai: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}
