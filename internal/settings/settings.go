// Package settings holds the reader's appearance and narration preferences.
package settings

import (
	"sync"

	"github.com/starford/flipshelf/internal/models"
)

// Preset is the color pair a reading mode applies.
type Preset struct {
	BackgroundColor string
	TextColor       string
}

// Presets maps reading modes to their colors.
var Presets = map[string]Preset{
	models.ReadingModeDark:  {BackgroundColor: "#0A0A0A", TextColor: "#E8EAED"},
	models.ReadingModeLight: {BackgroundColor: "#FFFFFF", TextColor: "#1A1A1A"},
	models.ReadingModeSepia: {BackgroundColor: "#F4ECD8", TextColor: "#5C4B37"},
}

// Defaults returns the settings a fresh install starts with.
func Defaults() models.Settings {
	dark := Presets[models.ReadingModeDark]
	return models.Settings{
		FontSize:        16,
		FontFamily:      `Georgia, "Times New Roman", serif`,
		LineHeight:      1.6,
		BackgroundColor: dark.BackgroundColor,
		TextColor:       dark.TextColor,
		ReadingMode:     models.ReadingModeDark,
		TTSRate:         1.0,
		TTSPitch:        1.0,
		TTSVoice:        nil,
		ShowPageNumbers: true,
		AnimationSpeed:  "medium",
	}
}

// Store is a last-write-wins settings holder. Observers run after every
// change while the store is locked, so they see changes in order.
type Store struct {
	mu        sync.RWMutex
	cur       models.Settings
	observers []func(models.Settings)
}

// New creates a store holding Defaults.
func New() *Store {
	return &Store{cur: Defaults()}
}

// Subscribe registers fn for subsequent changes.
func (s *Store) Subscribe(fn func(models.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Get returns the current settings.
func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Hydrate replaces the settings without notifying observers.
func (s *Store) Hydrate(v models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = v
}

// Update merges p into the settings and returns the result. An empty
// TTSVoice clears the voice back to the engine default.
func (s *Store) Update(p models.SettingsPatch) models.Settings {
	return s.apply(func(c *models.Settings) {
		set(&c.FontSize, p.FontSize)
		set(&c.FontFamily, p.FontFamily)
		set(&c.LineHeight, p.LineHeight)
		set(&c.BackgroundColor, p.BackgroundColor)
		set(&c.TextColor, p.TextColor)
		set(&c.ReadingMode, p.ReadingMode)
		set(&c.TTSRate, p.TTSRate)
		set(&c.TTSPitch, p.TTSPitch)
		set(&c.ShowPageNumbers, p.ShowPageNumbers)
		set(&c.AnimationSpeed, p.AnimationSpeed)
		switch {
		case p.TTSVoice == nil:
		case *p.TTSVoice == "":
			c.TTSVoice = nil
		default:
			v := *p.TTSVoice
			c.TTSVoice = &v
		}
	})
}

// SetReadingMode switches the mode and applies its color preset. A mode
// without a preset only changes the mode name.
func (s *Store) SetReadingMode(mode string) models.Settings {
	return s.apply(func(c *models.Settings) {
		c.ReadingMode = mode
		if p, ok := Presets[mode]; ok {
			c.BackgroundColor = p.BackgroundColor
			c.TextColor = p.TextColor
		}
	})
}

// Reset restores Defaults.
func (s *Store) Reset() models.Settings {
	return s.apply(func(c *models.Settings) { *c = Defaults() })
}

func (s *Store) apply(fn func(*models.Settings)) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
	for _, o := range s.observers {
		o(s.cur)
	}
	return s.cur
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
