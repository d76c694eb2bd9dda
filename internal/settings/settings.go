package settings

import "slices"

const OptionName = "w3a11y_artisan_settings"

var (
	Styles       = []string{"photorealistic", "digital-art", "illustration", "watercolor", "oil-painting", "sketch", "anime", "3d-render", "minimalist", "vintage"}
	AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3"}
	Qualities    = []string{"standard", "hd"}
	Languages    = []string{"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "ja", "zh", "ko", "ar", "he", "tr"}
)

const (
	MinAltLength = 50
	MaxAltLength = 500
)

// Settings is the typed form of the persisted option map.
type Settings struct {
	APIKey                    string `json:"api_key"`
	DefaultStyle              string `json:"default_style"`
	DefaultAspectRatio        string `json:"default_aspect_ratio"`
	DefaultQuality            string `json:"default_quality"`
	AltTextLanguage           string `json:"alttext_language"`
	AltTextMaxLength          int    `json:"alttext_max_length"`
	AltTextOverwrite          bool   `json:"alttext_overwrite"`
	AltTextOnlyAttached       bool   `json:"alttext_only_attached"`
	AltTextSkipProcessed      bool   `json:"alttext_skip_processed"`
	AltTextCustomInstructions string `json:"alttext_custom_instructions"`
	AutoAltOnUpload           bool   `json:"auto_alt_on_upload"`
	LoggingEnabled            bool   `json:"logging_enabled"`
}

func Defaults() Settings {
	return Settings{
		DefaultStyle:         "photorealistic",
		DefaultAspectRatio:   "1:1",
		DefaultQuality:       "standard",
		AltTextLanguage:      "en",
		AltTextMaxLength:     125,
		AltTextSkipProcessed: true,
	}
}

// Normalize replaces any out-of-range field with its default.
func (s Settings) Normalize() Settings {
	d := Defaults()
	if !slices.Contains(Styles, s.DefaultStyle) {
		s.DefaultStyle = d.DefaultStyle
	}
	if !slices.Contains(AspectRatios, s.DefaultAspectRatio) {
		s.DefaultAspectRatio = d.DefaultAspectRatio
	}
	if !slices.Contains(Qualities, s.DefaultQuality) {
		s.DefaultQuality = d.DefaultQuality
	}
	if !slices.Contains(Languages, s.AltTextLanguage) {
		s.AltTextLanguage = d.AltTextLanguage
	}
	if s.AltTextMaxLength < MinAltLength || s.AltTextMaxLength > MaxAltLength {
		s.AltTextMaxLength = d.AltTextMaxLength
	}
	if len(s.AltTextCustomInstructions) > 1000 {
		s.AltTextCustomInstructions = s.AltTextCustomInstructions[:1000]
	}
	return s
}

// Public hides the API key, leaving only whether one is configured.
func (s Settings) Public() map[string]any {
	return map[string]any{
		"api_key_configured":          s.APIKey != "",
		"default_style":               s.DefaultStyle,
		"default_aspect_ratio":        s.DefaultAspectRatio,
		"default_quality":             s.DefaultQuality,
		"alttext_language":            s.AltTextLanguage,
		"alttext_max_length":          s.AltTextMaxLength,
		"alttext_overwrite":           s.AltTextOverwrite,
		"alttext_only_attached":       s.AltTextOnlyAttached,
		"alttext_skip_processed":      s.AltTextSkipProcessed,
		"alttext_custom_instructions": s.AltTextCustomInstructions,
		"auto_alt_on_upload":          s.AutoAltOnUpload,
		"logging_enabled":             s.LoggingEnabled,
	}
}
