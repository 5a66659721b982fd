// Package client is a small HTTP client for the riser speech API.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SpeakRequest represents the request body for POST /v1/speak.
type SpeakRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Language  string `json:"language,omitempty"`
	Interrupt bool   `json:"interrupt,omitempty"`
	TTLMS     int    `json:"ttl_ms,omitempty"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// SpeakResponse is the server's answer to an accepted speak request.
type SpeakResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// SynthesizeRequest represents the request body for POST /v1/synthesize.
type SynthesizeRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// TranscodeRequest represents the request body for POST /v1/transcode.
type TranscodeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
}

// Clip is a WAV stream returned by the server.
type Clip struct {
	// HistoryID is empty when the server did not record the clip.
	HistoryID string
	WAV       []byte
}

// HistoryItem is one past generation.
type HistoryItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Voice     string `json:"voice"`
	Language  string `json:"language"`
	Cached    bool   `json:"cached"`
}

// Time returns the generation time.
func (i HistoryItem) Time() time.Time {
	return time.UnixMilli(i.Timestamp)
}

// Voice is a selectable voice profile.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PreviewText string `json:"preview_text"`
}

// Language is a selectable performance language.
type Language struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Flag        string `json:"flag"`
	Description string `json:"description"`
}

// Catalog lists what the server can perform.
type Catalog struct {
	Voices          []Voice    `json:"voices"`
	Languages       []Language `json:"languages"`
	CueTags         []string   `json:"cue_tags"`
	DefaultVoice    string     `json:"default_voice"`
	DefaultLanguage string     `json:"default_language"`
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *StatusError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("unexpected status %d: %s (%s)", e.StatusCode, e.Message, e.Kind)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a riser server.
type Client struct {
	baseURL    string
	token      string
	logger     *slog.Logger
	httpClient *http.Client
}

// New creates a client for the server at baseURL. An empty token sends no
// Authorization header.
func New(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			// Synthesis waits on the engine.
			Timeout: 2 * time.Minute,
		},
	}
}

// DedupeKey derives a stable dedupe key from the text.
func DedupeKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:8])
}

// Speak queues a line for playback on the server's outputs.
func (c *Client) Speak(ctx context.Context, req SpeakRequest) (*SpeakResponse, error) {
	var resp SpeakResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/speak", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("speak request accepted", "job_id", resp.JobID, "text_length", len(req.Text))
	return &resp, nil
}

// Interrupt stops the current playback and clears the server's queue.
func (c *Client) Interrupt(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/interrupt", nil, nil)
}

// Synthesize renders a line and returns the WAV stream without playing it.
func (c *Client) Synthesize(ctx context.Context, req SynthesizeRequest) (*Clip, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/synthesize", req)
	if err != nil {
		return nil, err
	}
	return readClip(resp)
}

// Transcode wraps base64 PCM in a WAV stream on the server.
func (c *Client) Transcode(ctx context.Context, req TranscodeRequest) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/transcode", req)
	if err != nil {
		return nil, err
	}
	clip, err := readClip(resp)
	if err != nil {
		return nil, err
	}
	return clip.WAV, nil
}

// Voices returns the voice and language catalog.
func (c *Client) Voices(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	if err := c.doJSON(ctx, http.MethodGet, "/v1/voices", nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// History returns past generations, newest first.
func (c *Client) History(ctx context.Context) ([]HistoryItem, error) {
	var resp struct {
		Items []HistoryItem `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// HistoryAudio downloads the cached clip of a history item.
func (c *Client) HistoryAudio(ctx context.Context, id string) (*Clip, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/history/"+url.PathEscape(id)+"/audio", nil)
	if err != nil {
		return nil, err
	}
	clip, err := readClip(resp)
	if err != nil {
		return nil, err
	}
	clip.HistoryID = id
	return clip, nil
}

// Replay queues a cached history clip for playback on the server's outputs.
func (c *Client) Replay(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/history/"+url.PathEscape(id)+"/replay", nil, nil)
}

// DeleteHistory removes one history item.
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/history/"+url.PathEscape(id), nil, nil)
}

// ClearHistory removes every history item.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/history", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response when the status is 2xx.
// The caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	serr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}

	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		serr.Message = payload.Error
		serr.Kind = payload.Kind
	}
	return serr
}

func readClip(resp *http.Response) (*Clip, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return &Clip{HistoryID: resp.Header.Get("X-History-Id"), WAV: data}, nil
}
