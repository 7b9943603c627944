package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"google.golang.org/genai"

	"frequency/logger"
	"frequency/metrics"
	"frequency/models"
)

// ErrTranscriptionUnavailable is returned when no model is configured.
var ErrTranscriptionUnavailable = errors.New("transcription unavailable")

// fallbackLines are served whenever the model cannot answer. They read as
// a bad connection rather than an error.
var fallbackLines = []string{
	"...static... can't make you out... try again, over.",
	"You're breaking up... say again, over.",
	"...signal's too weak... hold your position...",
	"Copy... only half of that came through. Repeat, over.",
	"...interference on this band... stand by...",
}

// ContentGenerator is the slice of the Gemini SDK the client calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey          string
	Model           string
	TranscribeModel string
	Temperature     float64
	MaxTokens       int
}

// Client drives character replies and speech-to-text through Gemini.
type Client struct {
	models  ContentGenerator
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Gemini-backed client. Without an API key the client only
// serves fallback lines.
func New(ctx context.Context, cfg Config, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, characters will answer with static")
		return NewWithGenerator(nil, cfg, log, m), nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewWithGenerator(gc.Models, cfg, log, m), nil
}

// NewWithGenerator wires an explicit generator. nil means fallback only.
func NewWithGenerator(gen ContentGenerator, cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = cfg.Model
	}
	return &Client{
		models:  gen,
		cfg:     cfg,
		log:     log.With("service", "LLMClient"),
		metrics: m,
		rnd:     rand.New(rand.NewSource(rand.Int63())),
	}
}

// Generate never fails: any problem is logged and answered with a scripted
// static-radio line.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []models.Message) string {
	if c.models == nil {
		c.metrics.RecordLLMFallback("no_api_key")
		return c.fallback()
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleCharacter {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(systemPrompt, genai.RoleUser))

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.cfg.Temperature)),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, genConfig)
	if err != nil {
		c.log.Error("generate failed", "model", c.cfg.Model, "error", err)
		c.metrics.RecordLLMFallback("error")
		return c.fallback()
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		c.log.Warn("empty model reply", "model", c.cfg.Model)
		c.metrics.RecordLLMFallback("empty")
		return c.fallback()
	}
	return reply
}

// Transcribe turns recorded audio into text. Unlike Generate it reports
// failure, since the caller has nothing to say without a transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.models == nil {
		return "", ErrTranscriptionUnavailable
	}
	if len(audio) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this radio transmission verbatim. Reply with the spoken words only, no commentary."),
		genai.NewPartFromBytes(audio, mimeType),
	}
	resp, err := c.models.GenerateContent(ctx, c.cfg.TranscribeModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0))})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (c *Client) fallback() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fallbackLines[c.rnd.Intn(len(fallbackLines))]
}

// IsFallback reports whether text is one of the scripted static lines.
func IsFallback(text string) bool {
	for _, l := range fallbackLines {
		if l == text {
			return true
		}
	}
	return false
}
