package announcer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSynthesizer speaks through an external TTS sidecar. The sidecar plays
// the audio itself and responds only once playback finished, which is what
// gives the queue its "one utterance in flight" guarantee.
type HTTPSynthesizer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPSynthesizer returns a synthesizer for the sidecar at endpoint.
func NewHTTPSynthesizer(endpoint string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type synthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Lang  string `json:"lang,omitempty"`
}

// Synthesize posts the utterance and waits for completion.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, voice Voice) error {
	if s.Endpoint == "" {
		return fmt.Errorf("tts endpoint not configured")
	}
	body, err := json.Marshal(synthRequest{Text: text, Voice: voice.Name, Lang: voice.Lang})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("tts sidecar returned status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
