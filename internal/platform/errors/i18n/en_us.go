package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
var enUS = map[Code]string{
	"UNKNOWN": "Something went wrong. Please try again.",

	"MEMORY_TITLE_REQUIRED":         "Page title is required.",
	"MEMORY_TITLE_TOO_LONG":         "Page title must be at most {{.Max}} characters.",
	"MEMORY_LETTER_TOO_SHORT":       "Love letter must be at least {{.Min}} characters.",
	"MEMORY_LETTER_TOO_LONG":        "Love letter must be at most {{.Max}} characters.",
	"MEMORY_PHOTOS_REQUIRED":        "At least one photo is required.",
	"MEMORY_TOO_MANY_PHOTOS":        "A page can hold at most {{.Max}} photos.",
	"MEMORY_PHOTO_CAPTION_TOO_LONG": "Photo captions must be at most {{.Max}} characters.",
	"MEMORY_START_DATE_IN_FUTURE":   "Relationship start date cannot be in the future.",
	"MEMORY_INVALID_MUSIC_URL":      "The YouTube URL is not valid.",
	"MEMORY_INVALID_SLUG_SOURCE":    "Page title cannot be turned into a valid address.",
	"MEMORY_DRAFT_PAYLOAD_INVALID":  "The saved draft could not be read.",

	"CUSTOMER_NAME_INVALID":  "Customer name must contain 2 to 100 letters.",
	"CUSTOMER_EMAIL_INVALID": "Customer email is not valid.",

	"SLUG_ALLOCATION_EXHAUSTED": "This page name is too popular right now. Try a different title.",
	"MEMORY_INVALID_TRANSITION": "This page's payment was already settled.",

	"PHOTO_UNSUPPORTED_MEDIA_TYPE": "Photos must be JPG, PNG, GIF or WebP.",
	"PHOTO_TOO_LARGE":              "Photos must be at most {{.MaxMiB}} MiB.",
	"PHOTO_REFERENCE_UNKNOWN":      "One of the photos was not uploaded correctly.",
	"SIGNED_URL_INVALID":           "This photo link has expired. Reload the page.",

	"PAYMENT_GATEWAY_UNAVAILABLE": "The payment provider is unavailable. Please try again.",
	"PAYMENT_GATEWAY_REJECTED":    "The payment provider rejected the request.",

	"NOT_FOUND":         "Page not found.",
	"SLUG_CONFLICT":     "This page name is already taken.",
	"PERSISTENCE_ERROR": "Could not save the page. Please try again.",

	"REQUEST_BODY_INVALID": "The request could not be read.",
	"RATE_LIMITED":         "Too many requests. Please wait a moment.",
	"UNAUTHORIZED": "Not authorized.",
}
