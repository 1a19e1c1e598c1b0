package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat-completion request.
type Message struct {
	Role    Role
	Content string
}

// CallOptions are per-call sampling parameters. A zero MaxTokens uses the
// client default.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// ErrStreamConsumed is yielded when a stream is ranged over a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// Options tunes a Client.
type Options struct {
	Timeout   time.Duration // Deadline for non-streaming calls
	MaxTokens int
	RateLimit float64 // Requests per second, 0 for unlimited
	StatsAge  time.Duration
}

// Client sends chat requests to one backend.
type Client struct {
	backend   Backend
	model     llms.Model
	http      *http.Client
	timeout   time.Duration
	maxTokens int
	limiter   *rate.Limiter
	stats     *Stats
	log       *slog.Logger
}

// New builds a client for the given backend.
func New(b Backend, opts Options, log *slog.Logger) (*Client, error) {
	// No client-level timeout: streams may outlive the non-streaming deadline.
	hc := &http.Client{}
	model, err := newModel(b, hc)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	c := &Client{
		backend:   b,
		model:     model,
		http:      hc,
		timeout:   opts.Timeout,
		maxTokens: opts.MaxTokens,
		stats:     NewStats(opts.StatsAge),
		log:       log.With("backend", string(b.Kind), "model", b.Model),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	log.Info("llm client ready", "backend", string(b.Kind), "model", b.Model, "base_url", b.BaseURL)
	return c, nil
}

// Backend returns the backend the client talks to.
func (c *Client) Backend() Backend { return c.backend }

// Stats returns the client's latency tracker.
func (c *Client) Stats() *Stats { return c.stats }

// Chat sends messages and returns the complete response text.
func (c *Client) Chat(ctx context.Context, msgs []Message, opts CallOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, toContent(msgs), c.callOptions(opts)...)
	if err != nil {
		c.stats.RecordError()
		return "", fmt.Errorf("%s chat: %w", c.backend.Kind, err)
	}
	c.stats.Record(time.Since(start))
	if len(resp.Choices) == 0 {
		c.stats.RecordError()
		return "", fmt.Errorf("%s chat: empty response", c.backend.Kind)
	}
	return resp.Choices[0].Content, nil
}

// Stream sends messages and returns the response as fragments in arrival
// order. The sequence can be ranged over once; stopping early cancels the
// request and closes the backend connection. A backend failure is yielded as
// a final ("", err) pair.
func (c *Client) Stream(ctx context.Context, msgs []Message, opts CallOptions) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := c.wait(ctx); err != nil {
			yield("", err)
			return
		}

		frags := make(chan string)
		var genErr error
		start := time.Now()
		go func() {
			defer close(frags)
			onChunk := func(ctx context.Context, chunk []byte) error {
				select {
				case frags <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			_, genErr = c.model.GenerateContent(ctx, toContent(msgs),
				append(c.callOptions(opts), llms.WithStreamingFunc(onChunk))...)
		}()

		stopped := false
		for f := range frags {
			if stopped || f == "" {
				continue
			}
			if !yield(f, nil) {
				stopped = true
				cancel()
			}
		}
		if stopped {
			c.log.Debug("stream abandoned by consumer")
			return
		}
		if genErr != nil {
			c.stats.RecordError()
			yield("", fmt.Errorf("%s stream: %w", c.backend.Kind, genErr))
			return
		}
		c.stats.Record(time.Since(start))
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (c *Client) callOptions(opts CallOptions) []llms.CallOption {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	return []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(maxTokens),
	}
}

func toContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.TextParts(messageType(m.Role), m.Content))
	}
	return out
}

func messageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
