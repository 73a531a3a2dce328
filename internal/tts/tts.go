// Package tts implements the text-to-speech proxy: a thin streaming
// passthrough to an external TTS provider, following the same HTTPTool
// conventions as the rest of this codebase (bounded timeout, structured
// error instead of panic) but streaming the response body directly rather
// than buffering it into a tool result map.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable signals the TTS provider could not be reached or refused
// the request; callers surface this as {error: ...}.
var ErrUnavailable = fmt.Errorf("tts provider unavailable")

// Synthesizer streams synthesized audio for text.
type Synthesizer interface {
	// Synthesize returns a reader of audio/mpeg bytes; callers must close it.
	Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

// HTTPSynthesizer calls an external TTS HTTP API directly (not via the
// generic HTTPTool, since that tool buffers the whole response body into a
// string — unsuitable for streaming audio back to a client).
type HTTPSynthesizer struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewHTTPSynthesizer builds an HTTPSynthesizer against baseURL.
func NewHTTPSynthesizer(baseURL, apiKey string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// Synthesize implements Synthesizer.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	body, err := encodeSynthesizeRequest(text, voiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/synthesize", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: provider returned status %d", ErrUnavailable, resp.StatusCode)
	}

	return resp.Body, nil
}

func encodeSynthesizeRequest(text, voiceID string) (*bytes.Buffer, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(payload), nil
}
