package dataset

import (
	"regexp"
	"strings"
)

var (
	validNameRe     = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,63}$`)
	invalidNameChar = regexp.MustCompile(`[^a-z0-9_]+`)
	leadingDigits   = regexp.MustCompile(`^[0-9]+`)
)

// NormalizeName converts a column or artifact name into a valid
// namespace binding (artifact names double as identifiers inside
// generated code):
//   - Lowercase, max 64 chars
//   - Only [a-z0-9_] allowed, invalid runs collapsed to "_"
//   - Leading digits stripped
//   - Empty result defaults to "data"
func NormalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "data"
	}

	lower := strings.ToLower(trimmed)
	if validNameRe.MatchString(lower) {
		return lower
	}

	result := invalidNameChar.ReplaceAllString(lower, "_")
	result = leadingDigits.ReplaceAllString(result, "")
	result = strings.Trim(result, "_")

	if len(result) > 64 {
		result = result[:64]
	}
	if result == "" {
		return "data"
	}
	return result
}

// ArtifactName builds the dataset artifact name for an analyze command,
// e.g. target "sales_amount" + series "store_id" → "sales_amount_by_store".
func ArtifactName(target, seriesID string) string {
	series := NormalizeName(seriesID)
	series = strings.TrimSuffix(series, "_id")
	return NormalizeName(target) + "_by_" + series
}
