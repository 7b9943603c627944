package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"frequency/logger"
	"frequency/metrics"
)

const DefaultBaseURL = "https://api.elevenlabs.io/v1"

// ErrNotConfigured is returned by calls that need an API key.
var ErrNotConfigured = errors.New("elevenlabs api key not configured")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Settings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// DefaultSettings keeps voices steady over the radio filter.
var DefaultSettings = Settings{Stability: 0.5, SimilarityBoost: 0.75}

type Voice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type synthesizeRequest struct {
	Text          string   `json:"text"`
	ModelID       string   `json:"model_id"`
	VoiceSettings Settings `json:"voice_settings"`
}

// Client is an ElevenLabs text-to-speech client.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.APIKey == "" {
		log.Warn("ELEVENLABS_API_KEY not set, characters will be text only")
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With("service", "ElevenLabs"),
		metrics: m,
	}
}

// Synthesize returns mp3 audio, or nil when the voice cannot be produced.
// A nil result is a normal outcome: the reply goes out as text.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) []byte {
	if c.cfg.APIKey == "" {
		return nil
	}
	if strings.TrimSpace(text) == "" || voiceID == "" {
		return nil
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, ModelID: c.cfg.Model, VoiceSettings: DefaultSettings})
	if err != nil {
		c.fail("encode", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/text-to-speech/"+voiceID, bytes.NewReader(body))
	if err != nil {
		c.fail("request", err)
		return nil
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail("transport", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.fail("status", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		return nil
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail("read", err)
		return nil
	}
	if len(audio) == 0 {
		c.fail("empty", errors.New("empty audio body"))
		return nil
	}
	return audio
}

// ListVoices returns the voices available to the account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices: status %d", resp.StatusCode)
	}

	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return out.Voices, nil
}

func (c *Client) fail(reason string, err error) {
	c.log.Warn("speech synthesis failed", "reason", reason, "error", err)
	c.metrics.RecordTTSFailure(reason)
}
