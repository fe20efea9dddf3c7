package memory

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

// MaxSlugLength bounds a slug after normalization and suffixing.
const MaxSlugLength = 120

// ErrInvalidSlugSource indicates the slug source text yields an empty slug.
var ErrInvalidSlugSource = apperrors.New(apperrors.CodeMemoryInvalidSlugSource, "slug source contains no usable characters")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var nonSlugRunPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeSlug derives a URL-safe slug from arbitrary text. Letters are
// lowercased, runs of any other character collapse into a single hyphen, and
// leading or trailing hyphens are trimmed.
func NormalizeSlug(source string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(source))
	slug = nonSlugRunPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "", ErrInvalidSlugSource
	}
	if len(slug) > MaxSlugLength {
		slug = strings.Trim(slug[:MaxSlugLength], "-")
	}
	return slug, nil
}

// SlugCandidate returns the nth candidate slug for a base. Attempt zero is the
// base itself; later attempts append a numeric suffix ("my-page-1").
func SlugCandidate(base string, attempt int) string {
	if attempt <= 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt)
}

// IsValidSlug reports whether a slug matches the canonical slug shape.
func IsValidSlug(slug string) bool {
	return slug != "" && len(slug) <= MaxSlugLength+12 && slugPattern.MatchString(slug)
}
