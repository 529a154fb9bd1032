package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/flipshelf/internal/apperr"
)

// DefaultRemoteVoice is sent when the caller asks for the "default" voice.
const DefaultRemoteVoice = "en_US-lessac-medium"

const healthTimeout = time.Second

// Player plays synthesized audio, blocking until done or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, contentType string, audio io.Reader) error
}

// RemoteEngine talks to a TTS server exposing GET /health, GET /voices and
// POST /tts under baseURL.
type RemoteEngine struct {
	baseURL   string
	client    *http.Client
	player    Player
	available atomic.Bool
}

// NewRemoteEngine creates a remote engine. Availability is probed lazily on
// the first utterance.
func NewRemoteEngine(baseURL string, client *http.Client, player Player) *RemoteEngine {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteEngine{baseURL: strings.TrimRight(baseURL, "/"), client: client, player: player}
}

// Name implements Engine.
func (e *RemoteEngine) Name() string { return "remote" }

// Check probes /health and records the result.
func (e *RemoteEngine) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		e.available.Store(false)
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.available.Store(false)
		return false
	}
	resp.Body.Close()
	ok := resp.StatusCode == http.StatusOK
	e.available.Store(ok)
	return ok
}

// Available reports the last known health.
func (e *RemoteEngine) Available() bool { return e.available.Load() }

type ttsRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Speak implements Engine. A transport failure marks the server unavailable
// until the next successful health probe.
func (e *RemoteEngine) Speak(ctx context.Context, text string, opts Options) error {
	if !e.available.Load() && !e.Check(ctx) {
		return fmt.Errorf("remote tts: %w", apperr.ErrNarrationUnavailable)
	}

	voice := opts.Voice
	if voice == "" || voice == "default" {
		voice = DefaultRemoteVoice
	}
	body, err := json.Marshal(ttsRequest{Text: text, Voice: voice, Rate: opts.Rate, Pitch: opts.Pitch})
	if err != nil {
		return fmt.Errorf("remote tts: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("remote tts: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.available.Store(false)
		return fmt.Errorf("remote tts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote tts: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return e.player.Play(ctx, resp.Header.Get("Content-Type"), resp.Body)
}

// Voices implements VoiceLister.
func (e *RemoteEngine) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote voices: status %d", resp.StatusCode)
	}
	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("remote voices: decode: %w", err)
	}
	for i := range out.Voices {
		if out.Voices[i].Provider == "" {
			out.Voices[i].Provider = "remote"
		}
	}
	return out.Voices, nil
}
