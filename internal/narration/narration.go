// Package narration speaks page text through a chain of text-to-speech
// engines and keeps at most one narration running.
package narration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/starford/flipshelf/internal/apperr"
)

// DefaultMaxChars bounds one utterance.
const DefaultMaxChars = 3000

// Options tune one utterance.
type Options struct {
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
	// OnEnd runs once when the utterance finishes or is stopped.
	OnEnd func() `json:"-"`
}

// Engine renders text to sound. Speak blocks until playback ends or ctx is
// cancelled.
type Engine interface {
	Name() string
	Speak(ctx context.Context, text string, opts Options) error
}

// Voice describes one selectable voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Lang     string `json:"lang,omitempty"`
	Provider string `json:"provider"`
}

// VoiceLister is implemented by engines that can enumerate voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Handle tracks one running narration.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	engine string
	err    error
}

// Stop cancels the narration. Stopping a finished handle does nothing.
func (h *Handle) Stop() { h.cancel() }

// Done is closed when the narration has ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err reports why the narration ended; valid after Done is closed. It is nil
// for a complete or stopped utterance.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Engine names the engine that spoke, valid after Done is closed.
func (h *Handle) Engine() string {
	<-h.done
	return h.engine
}

// Service runs narrations over an ordered engine chain: the first engine that
// succeeds wins, later engines are fallbacks.
type Service struct {
	mu       sync.Mutex
	engines  []Engine
	current  *Handle
	maxChars int
	defaults Options
	logger   *slog.Logger
}

// NewService creates a service trying engines in the given order.
func NewService(logger *slog.Logger, maxChars int, defaults Options, engines ...Engine) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{engines: engines, maxChars: maxChars, defaults: defaults, logger: logger}
}

// Speak stops any running narration and starts speaking text.
func (s *Service) Speak(text string, opts Options) (*Handle, error) {
	text = Truncate(strings.TrimSpace(text), s.maxChars)
	if text == "" {
		return nil, apperr.ErrNoText
	}
	if len(s.engines) == 0 {
		return nil, apperr.ErrNarrationUnavailable
	}
	opts = s.withDefaults(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	s.current = h
	go s.run(ctx, h, text, opts)
	return h, nil
}

// SpeakFromOffset speaks fullText starting at the first occurrence of
// offsetText. When offsetText is not found, offsetText itself is spoken.
func (s *Service) SpeakFromOffset(fullText, offsetText string, opts Options) (*Handle, error) {
	if i := strings.Index(fullText, offsetText); offsetText != "" && i >= 0 {
		return s.Speak(fullText[i:], opts)
	}
	return s.Speak(offsetText, opts)
}

// Stop ends the running narration, if any.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}
}

// Speaking reports whether a narration is in progress.
func (s *Service) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	select {
	case <-s.current.done:
		return false
	default:
		return true
	}
}

// Voices merges the voice lists of every engine that can provide one.
func (s *Service) Voices(ctx context.Context) []Voice {
	var out []Voice
	for _, e := range s.engines {
		vl, ok := e.(VoiceLister)
		if !ok {
			continue
		}
		vs, err := vl.Voices(ctx)
		if err != nil {
			s.logger.Warn("list voices", slog.String("engine", e.Name()), slog.String("error", err.Error()))
			continue
		}
		out = append(out, vs...)
	}
	return out
}

func (s *Service) run(ctx context.Context, h *Handle, text string, opts Options) {
	defer func() {
		h.cancel()
		close(h.done)
		if opts.OnEnd != nil {
			opts.OnEnd()
		}
	}()

	var errs []error
	for _, e := range s.engines {
		err := e.Speak(ctx, text, opts)
		if err == nil || ctx.Err() != nil {
			h.engine = e.Name()
			return
		}
		s.logger.Warn("narration engine failed, falling back",
			slog.String("engine", e.Name()), slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	h.err = errors.Join(apperr.ErrNarrationUnavailable, errors.Join(errs...))
}

func (s *Service) withDefaults(o Options) Options {
	if o.Voice == "" {
		o.Voice = s.defaults.Voice
	}
	if o.Rate == 0 {
		o.Rate = s.defaults.Rate
	}
	if o.Rate == 0 {
		o.Rate = 1
	}
	if o.Pitch == 0 {
		o.Pitch = s.defaults.Pitch
	}
	if o.Pitch == 0 {
		o.Pitch = 1
	}
	return o
}

// Truncate limits text to max characters. When the cut lands mid-sentence and
// the last sentence terminator lies beyond 80% of max, the text is cut just
// after that terminator instead.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)[:max]
	cut := -1
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '.' || r[i] == '?' || r[i] == '!' {
			cut = i
			break
		}
	}
	if float64(cut) > float64(max)*0.8 {
		return string(r[:cut+1])
	}
	return string(r)
}
