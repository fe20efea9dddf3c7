package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Memory validation errors
	CodeMemoryTitleRequired      Code = "MEMORY_TITLE_REQUIRED"
	CodeMemoryTitleTooLong       Code = "MEMORY_TITLE_TOO_LONG"
	CodeMemoryLetterTooShort     Code = "MEMORY_LETTER_TOO_SHORT"
	CodeMemoryLetterTooLong      Code = "MEMORY_LETTER_TOO_LONG"
	CodeMemoryPhotosRequired     Code = "MEMORY_PHOTOS_REQUIRED"
	CodeMemoryTooManyPhotos      Code = "MEMORY_TOO_MANY_PHOTOS"
	CodeMemoryCaptionTooLong     Code = "MEMORY_PHOTO_CAPTION_TOO_LONG"
	CodeMemoryStartDateInFuture  Code = "MEMORY_START_DATE_IN_FUTURE"
	CodeMemoryInvalidMusicURL    Code = "MEMORY_INVALID_MUSIC_URL"
	CodeMemoryInvalidSlugSource  Code = "MEMORY_INVALID_SLUG_SOURCE"
	CodeMemoryDraftPayloadBroken Code = "MEMORY_DRAFT_PAYLOAD_INVALID"

	// Customer validation errors
	CodeCustomerNameInvalid  Code = "CUSTOMER_NAME_INVALID"
	CodeCustomerEmailInvalid Code = "CUSTOMER_EMAIL_INVALID"

	// Lifecycle errors
	CodeSlugAllocationExhausted Code = "SLUG_ALLOCATION_EXHAUSTED"
	CodeInvalidTransition       Code = "MEMORY_INVALID_TRANSITION"

	// Photo ingestion errors
	CodePhotoUnsupportedMediaType Code = "PHOTO_UNSUPPORTED_MEDIA_TYPE"
	CodePhotoTooLarge             Code = "PHOTO_TOO_LARGE"
	CodePhotoReferenceUnknown     Code = "PHOTO_REFERENCE_UNKNOWN"
	CodeSignedURLInvalid          Code = "SIGNED_URL_INVALID"

	// Payment gateway errors
	CodeGatewayUnavailable Code = "PAYMENT_GATEWAY_UNAVAILABLE"
	CodeGatewayRejected    Code = "PAYMENT_GATEWAY_REJECTED"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeSlugConflict     Code = "SLUG_CONFLICT"
	CodePersistenceError Code = "PERSISTENCE_ERROR"

	// Request handling errors
	CodeRequestInvalid Code = "REQUEST_BODY_INVALID"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeUnauthorized   Code = "UNAUTHORIZED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeMemoryTitleRequired,
		CodeMemoryTitleTooLong,
		CodeMemoryLetterTooShort,
		CodeMemoryLetterTooLong,
		CodeMemoryPhotosRequired,
		CodeMemoryTooManyPhotos,
		CodeMemoryCaptionTooLong,
		CodeMemoryStartDateInFuture,
		CodeMemoryInvalidMusicURL,
		CodeMemoryInvalidSlugSource,
		CodeMemoryDraftPayloadBroken,
		CodeCustomerNameInvalid,
		CodeCustomerEmailInvalid,
		CodePhotoReferenceUnknown,
		CodeRequestInvalid:
		return http.StatusBadRequest

	case CodePhotoUnsupportedMediaType:
		return http.StatusUnsupportedMediaType

	case CodePhotoTooLarge:
		return http.StatusRequestEntityTooLarge

	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - slug races and out-of-order transitions
	case CodeSlugConflict,
		CodeSlugAllocationExhausted,
		CodeInvalidTransition:
		return http.StatusConflict

	case CodeSignedURLInvalid:
		return http.StatusForbidden

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeGatewayUnavailable, CodeGatewayRejected:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
