package remote

import "encoding/json"

type GenerateRequest struct {
	Prompt          string   `json:"prompt"`
	Style           string   `json:"style,omitempty"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
	Quality         string   `json:"quality,omitempty"`
	Width           int      `json:"width,omitempty"`
	Height          int      `json:"height,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

type EditRequest struct {
	Prompt          string   `json:"prompt"`
	Image           string   `json:"image"`
	EditType        string   `json:"edit_type,omitempty"`
	Style           string   `json:"style,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

type InspireRequest struct {
	Image   string `json:"image"`
	Context string `json:"context,omitempty"`
}

type ConvertRequest struct {
	Image   string `json:"image"`
	Format  string `json:"format"`
	Quality int    `json:"quality,omitempty"`
}

// ImageResponse is the payload of generate, edit and convert.
type ImageResponse struct {
	Image            string `json:"image"`
	MimeType         string `json:"mime_type,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
}

type InspireResponse struct {
	Suggestions      json.RawMessage `json:"suggestions"`
	CreditsUsed      int             `json:"credits_used"`
	CreditsRemaining int             `json:"credits_remaining"`
}

type CreditsResponse struct {
	AvailableCredits int    `json:"available_credits"`
	UsedCredits      int    `json:"used_credits"`
	Plan             string `json:"plan,omitempty"`
}

type AltTextRequest struct {
	Mode               string `json:"mode"`
	ImageURL           string `json:"image_url"`
	Context            string `json:"context,omitempty"`
	Title              string `json:"title,omitempty"`
	Language           string `json:"language,omitempty"`
	MaxLength          int    `json:"max_length,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

type AltTextResponse struct {
	AltText          string `json:"alt_text"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
}

type BatchImage struct {
	ID         int64  `json:"id"`
	ImageURL   string `json:"image_url"`
	Context    string `json:"context,omitempty"`
	Title      string `json:"title,omitempty"`
	CurrentAlt string `json:"current_alt,omitempty"`
}

type BatchOptions struct {
	Language           string `json:"language,omitempty"`
	MaxLength          int    `json:"max_length,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	SkipProcessed      bool   `json:"skip_processed"`
}

type AltTextBatchRequest struct {
	Mode    string       `json:"mode"`
	Images  []BatchImage `json:"images"`
	Options BatchOptions `json:"options"`
}

type BatchResult struct {
	ID               int64  `json:"id"`
	Success          bool   `json:"success"`
	AltText          string `json:"alt_text"`
	AlreadyProcessed bool   `json:"already_processed"`
	Error            string `json:"error,omitempty"`
}

type AltTextBatchResponse struct {
	Results          []BatchResult `json:"results"`
	CreditsUsed      int           `json:"credits_used"`
	CreditsRemaining int           `json:"credits_remaining"`
}

type AltTextConfigResponse struct {
	BatchSize int `json:"batch_size"`
}
