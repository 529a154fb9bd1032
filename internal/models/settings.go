package models

// Reading modes.
const (
	ReadingModeDark  = "dark"
	ReadingModeLight = "light"
	ReadingModeSepia = "sepia"
)

// Settings holds reading appearance and narration preferences.
type Settings struct {
	FontSize        int     `json:"fontSize"`
	FontFamily      string  `json:"fontFamily"`
	LineHeight      float64 `json:"lineHeight"`
	BackgroundColor string  `json:"backgroundColor"`
	TextColor       string  `json:"textColor"`
	ReadingMode     string  `json:"readingMode"`
	TTSRate         float64 `json:"ttsRate"`
	TTSPitch        float64 `json:"ttsPitch"`
	TTSVoice        *string `json:"ttsVoice"`
	ShowPageNumbers bool    `json:"showPageNumbers"`
	AnimationSpeed  string  `json:"animationSpeed"`
}

// SettingsPatch is a partial settings update; nil fields are left as-is.
type SettingsPatch struct {
	FontSize        *int     `json:"fontSize,omitempty"`
	FontFamily      *string  `json:"fontFamily,omitempty"`
	LineHeight      *float64 `json:"lineHeight,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	TextColor       *string  `json:"textColor,omitempty"`
	ReadingMode     *string  `json:"readingMode,omitempty"`
	TTSRate         *float64 `json:"ttsRate,omitempty"`
	TTSPitch        *float64 `json:"ttsPitch,omitempty"`
	TTSVoice        *string  `json:"ttsVoice,omitempty"` // "" resets to the engine default
	ShowPageNumbers *bool    `json:"showPageNumbers,omitempty"`
	AnimationSpeed  *string  `json:"animationSpeed,omitempty"`
}
