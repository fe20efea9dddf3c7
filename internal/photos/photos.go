// Package photos handles photo ingestion: size and media-type enforcement,
// opaque storage references and signed serving URLs.
//
// Uploads happen before page creation. The page create command then cites the
// returned references, and the service verifies each one exists so a page can
// never point at a photo that was never stored.
package photos

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

// DefaultMaxBytes caps one uploaded photo at 5 MiB.
const DefaultMaxBytes = 5 << 20

// allowedMediaTypes maps accepted upload types to their storage extension.
var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectStore persists photo bytes under opaque keys.
type ObjectStore interface {
	// Put streams one object. Keys are written at most once.
	Put(ctx context.Context, key string, r io.Reader) error

	// Exists reports whether a key holds an object.
	Exists(ctx context.Context, key string) (bool, error)

	// Open returns the object bytes for serving.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Service ingests and verifies photos.
type Service struct {
	objects  ObjectStore
	maxBytes int64
	newKey   func() string
}

// NewService creates a photo ingestion service. A non-positive maxBytes means
// the default limit.
func NewService(objects ObjectStore, maxBytes int64) (*Service, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		objects:  objects,
		maxBytes: maxBytes,
		newKey:   func() string { return strings.ToLower(ulid.Make().String()) },
	}, nil
}

// Upload stores one photo and returns its opaque reference. The media type
// must be one of the accepted image types and the body may not exceed the
// configured size limit; an oversized body is removed before returning.
func (s *Service) Upload(ctx context.Context, r io.Reader, mediaType string) (string, error) {
	mediaType = normalizeMediaType(mediaType)
	ext, ok := allowedMediaTypes[mediaType]
	if !ok {
		return "", apperrors.WithMetadata(
			apperrors.CodePhotoUnsupportedMediaType,
			fmt.Sprintf("media type %q is not an accepted image type", mediaType),
			map[string]string{"MediaType": mediaType},
		)
	}

	key := s.newKey() + ext
	limited := &io.LimitedReader{R: r, N: s.maxBytes + 1}
	if err := s.objects.Put(ctx, key, limited); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	if limited.N == 0 {
		if err := s.objects.Delete(ctx, key); err != nil {
			return "", fmt.Errorf("discard oversized photo: %w", err)
		}
		return "", apperrors.WithMetadata(
			apperrors.CodePhotoTooLarge,
			fmt.Sprintf("photo exceeds %d bytes", s.maxBytes),
			map[string]string{"MaxMiB": strconv.FormatInt(s.maxBytes>>20, 10)},
		)
	}
	return key, nil
}

// VerifyReferences checks that every reference points at a stored photo.
func (s *Service) VerifyReferences(ctx context.Context, references []string) error {
	for _, ref := range references {
		ok, err := s.objects.Exists(ctx, ref)
		if err != nil {
			return fmt.Errorf("verify photo %s: %w", ref, err)
		}
		if !ok {
			return apperrors.WithMetadata(
				apperrors.CodePhotoReferenceUnknown,
				fmt.Sprintf("photo reference %q was never uploaded", ref),
				map[string]string{"Reference": ref},
			)
		}
	}
	return nil
}

// Open returns the stored photo bytes and its media type for serving.
func (s *Service) Open(ctx context.Context, reference string) (io.ReadCloser, string, error) {
	ok, err := s.objects.Exists(ctx, reference)
	if err != nil {
		return nil, "", fmt.Errorf("check photo %s: %w", reference, err)
	}
	if !ok {
		return nil, "", apperrors.New(apperrors.CodeNotFound, "photo not found")
	}
	rc, err := s.objects.Open(ctx, reference)
	if err != nil {
		return nil, "", fmt.Errorf("open photo %s: %w", reference, err)
	}
	return rc, MediaTypeForReference(reference), nil
}

// MediaTypeForReference derives the media type from a reference extension.
func MediaTypeForReference(reference string) string {
	for mediaType, ext := range allowedMediaTypes {
		if strings.HasSuffix(reference, ext) {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func normalizeMediaType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}
