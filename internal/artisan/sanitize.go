package artisan

import (
	"encoding/base64"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
)

var (
	EditTypes      = []string{"general", "background", "object-removal", "style-transfer", "enhance", "color"}
	ConvertFormats = []string{"png", "jpeg", "webp"}
)

const (
	MinDimension       = 256
	MaxDimension       = 2048
	MaxPromptLength    = 2000
	MaxReferenceImages = 3
	MinImageBytes      = 100
	MaxImageBytes      = 20 << 20
)

var (
	dataURIPrefix  = regexp.MustCompile(`^data:image/[A-Za-z0-9.+-]+;base64,`)
	base64Charset  = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
	filenameUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// SanitizePrompt strips markup and enforces the 1..2000 character range.
func SanitizePrompt(p string) (string, error) {
	p = media.SanitizeText(p)
	if p == "" {
		return "", apperr.Validation("Prompt is required.")
	}
	if utf8.RuneCountInString(p) > MaxPromptLength {
		return "", apperr.Validation("Prompt must be 2000 characters or fewer.")
	}
	return p, nil
}

// pick returns v when allowed, otherwise fallback.
func pick(v string, allowed []string, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if slices.Contains(allowed, v) {
		return v
	}
	return fallback
}

// SanitizeDimension accepts 0 as unset.
func SanitizeDimension(n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if n < MinDimension || n > MaxDimension {
		return 0, apperr.Validation("Width and height must be between 256 and 2048 pixels.")
	}
	return n, nil
}

// SanitizeImage strips an optional data URI prefix and checks the payload decodes to a sane size.
// It returns the bare base64 payload and the decoded bytes.
func SanitizeImage(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	s = dataURIPrefix.ReplaceAllString(s, "")
	if s == "" {
		return "", nil, apperr.Validation("Image data is required.")
	}
	if !base64Charset.MatchString(s) {
		return "", nil, apperr.Validation("Image data is not valid base64.")
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxImageBytes+3 {
		return "", nil, apperr.Validation("Image is too large. The maximum size is 20MB.")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, apperr.Validation("Image data is not valid base64.")
	}
	if len(raw) < MinImageBytes {
		return "", nil, apperr.Validation("Image data is too small to be a valid image.")
	}
	if len(raw) > MaxImageBytes {
		return "", nil, apperr.Validation("Image is too large. The maximum size is 20MB.")
	}
	return s, raw, nil
}

func SanitizeReferences(refs []string) ([]string, error) {
	if len(refs) > MaxReferenceImages {
		return nil, apperr.Validation("A maximum of 3 reference images is allowed.")
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if strings.TrimSpace(r) == "" {
			continue
		}
		clean, _, err := SanitizeImage(r)
		if err != nil {
			return nil, err
		}
		out = append(out, clean)
	}
	return out, nil
}

// SanitizeFilename reduces name to a lowercase slug without extension.
func SanitizeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.Trim(filenameUnsafe.ReplaceAllString(name, "-"), "-")
	if len(name) > 80 {
		name = strings.Trim(name[:80], "-")
	}
	if name == "" {
		return "w3a11y-artisan"
	}
	return name
}
