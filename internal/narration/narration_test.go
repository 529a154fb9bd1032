package narration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flipshelf/internal/apperr"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// blockingEngine speaks until stopped.
type blockingEngine struct {
	mu    sync.Mutex
	texts []string
	fail  error
}

func (e *blockingEngine) Name() string { return "blocking" }

func (e *blockingEngine) Speak(ctx context.Context, text string, _ Options) error {
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	<-ctx.Done()
	return ctx.Err()
}

func (e *blockingEngine) spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

type instantEngine struct{ got Options }

func (e *instantEngine) Name() string { return "instant" }

func (e *instantEngine) Speak(_ context.Context, _ string, opts Options) error {
	e.got = opts
	return nil
}

func wait(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("narration did not finish")
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))

	text := strings.Repeat("a", 85) + "." + strings.Repeat("b", 50)
	assert.Equal(t, strings.Repeat("a", 85)+".", Truncate(text, 100))

	early := strings.Repeat("a", 10) + "." + strings.Repeat("b", 200)
	assert.Len(t, []rune(Truncate(early, 100)), 100)
}

func TestSpeakStopsPrevious(t *testing.T) {
	eng := &blockingEngine{}
	svc := NewService(discard(), 0, Options{}, eng)

	first, err := svc.Speak("page one", Options{})
	require.NoError(t, err)
	second, err := svc.Speak("page two", Options{})
	require.NoError(t, err)

	wait(t, first)
	assert.NoError(t, first.Err())
	assert.True(t, svc.Speaking())

	svc.Stop()
	wait(t, second)
	assert.False(t, svc.Speaking())
	svc.Stop()
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	svc := NewService(discard(), 0, Options{}, &instantEngine{})
	_, err := svc.Speak("   ", Options{})
	assert.ErrorIs(t, err, apperr.ErrNoText)

	_, err = NewService(discard(), 0, Options{}).Speak("hi", Options{})
	assert.ErrorIs(t, err, apperr.ErrNarrationUnavailable)
}

func TestFallbackChain(t *testing.T) {
	broken := &blockingEngine{fail: errors.New("boom")}
	ok := &instantEngine{}
	ended := make(chan struct{})
	svc := NewService(discard(), 0, Options{Voice: "v1", Rate: 1.5}, broken, ok)

	h, err := svc.Speak("hello", Options{OnEnd: func() { close(ended) }})
	require.NoError(t, err)
	wait(t, h)
	<-ended

	assert.NoError(t, h.Err())
	assert.Equal(t, "instant", h.Engine())
	assert.Equal(t, "v1", ok.got.Voice)
	assert.Equal(t, 1.5, ok.got.Rate)
	assert.Equal(t, 1.0, ok.got.Pitch)
}

func TestAllEnginesFail(t *testing.T) {
	svc := NewService(discard(), 0, Options{}, &blockingEngine{fail: errors.New("boom")})
	h, err := svc.Speak("hello", Options{})
	require.NoError(t, err)
	wait(t, h)
	assert.ErrorIs(t, h.Err(), apperr.ErrNarrationUnavailable)
}

func TestSpeakFromOffset(t *testing.T) {
	eng := &blockingEngine{}
	svc := NewService(discard(), 0, Options{}, eng)

	_, err := svc.SpeakFromOffset("One. Two. Three.", "Two.", Options{})
	require.NoError(t, err)
	_, err = svc.SpeakFromOffset("One. Two.", "missing words", Options{})
	require.NoError(t, err)
	svc.Stop()

	assert.Eventually(t, func() bool { return len(eng.spoken()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Two. Three.", "missing words"}, eng.spoken())
}

type recordingPlayer struct {
	audio []byte
	ctype string
}

func (p *recordingPlayer) Play(_ context.Context, contentType string, r io.Reader) error {
	p.ctype = contentType
	var err error
	p.audio, err = io.ReadAll(r)
	return err
}

func TestRemoteEngine(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		case "/api/voices":
			_, _ = w.Write([]byte(`{"voices":[{"id":"en_US-lessac-medium","name":"Lessac"}]}`))
		case "/api/tts":
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write([]byte("RIFF"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	eng := NewRemoteEngine(srv.URL+"/api/", srv.Client(), player)
	require.NoError(t, eng.Speak(context.Background(), "hello", Options{Voice: "default", Rate: 1, Pitch: 1}))
	assert.True(t, eng.Available())
	assert.Equal(t, DefaultRemoteVoice, got.Voice)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "audio/wav", player.ctype)
	assert.Equal(t, []byte("RIFF"), player.audio)

	voices, err := eng.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "remote", voices[0].Provider)
}

func TestRemoteEngineUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, srv.Client(), &recordingPlayer{})
	err := eng.Speak(context.Background(), "hi", Options{})
	assert.ErrorIs(t, err, apperr.ErrNarrationUnavailable)
	assert.False(t, eng.Available())
}

func TestCommandEngine(t *testing.T) {
	_, err := NewCommandEngine("  ")
	require.Error(t, err)

	eng, err := NewCommandEngine("cat")
	require.NoError(t, err)
	assert.NoError(t, eng.Speak(context.Background(), "hello", Options{Rate: 1, Pitch: 1}))

	fails, err := NewCommandEngine("false")
	require.NoError(t, err)
	assert.Error(t, fails.Speak(context.Background(), "hello", Options{}))
}
