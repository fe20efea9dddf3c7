// Package memory holds the Memory entity and its payment lifecycle.
//
// A Memory is the persisted record for one purchased love page. Records are
// created as Pending when the customer commits to checkout and move along a
// one-way graph: Pending -> Paid | Failed | Abandoned. Terminal states never
// change again except by out-of-band administrative correction.
package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
	"github.com/louisbranch/everpage/internal/platform/id"
)

// PaymentStatus describes the persisted lifecycle of a Memory.
type PaymentStatus int

const (
	// PaymentStatusUnspecified represents an invalid payment status value.
	PaymentStatusUnspecified PaymentStatus = iota
	// PaymentStatusPending indicates the record awaits a gateway outcome.
	PaymentStatusPending
	// PaymentStatusPaid indicates the gateway approved the payment.
	PaymentStatusPaid
	// PaymentStatusFailed indicates the gateway rejected the payment.
	PaymentStatusFailed
	// PaymentStatusAbandoned indicates the record aged out while Pending.
	PaymentStatusAbandoned
)

// Outcome is the three-way result reported by a payment gateway.
type Outcome int

const (
	// OutcomeUnspecified represents an invalid outcome value.
	OutcomeUnspecified Outcome = iota
	// OutcomeApproved indicates the gateway confirmed the payment.
	OutcomeApproved
	// OutcomeRejected indicates the gateway declined the payment.
	OutcomeRejected
	// OutcomePending indicates the gateway has not settled yet.
	OutcomePending
)

// Validation bounds for Memory content.
const (
	MaxTitleLength   = 100
	MinLetterLength  = 10
	MaxLetterLength  = 2000
	MaxPhotos        = 10
	MaxCaptionLength = 200
	MaxCustomerName  = 100
	MinCustomerName  = 2
	MaxCustomerEmail = 254
)

var (
	// ErrTitleRequired indicates a missing page title.
	ErrTitleRequired = apperrors.New(apperrors.CodeMemoryTitleRequired, "page title is required")
	// ErrInvalidTransition indicates a disallowed payment status change.
	ErrInvalidTransition = apperrors.New(apperrors.CodeInvalidTransition, "payment status transition is not allowed")
)

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[a-zA-Z0-9_-]{11}$`)

var customerNamePattern = regexp.MustCompile(`^[\p{L}\s]+$`)

// Photo is one stored photo reference with an optional caption.
// The reference is opaque to the lifecycle; it is owned by photo ingestion.
type Photo struct {
	Reference string
	Caption   string
}

// Memory represents one purchased love page record.
type Memory struct {
	ID    string
	Slug  string
	Title string
	// LoveLetterContent is the customer's letter text.
	LoveLetterContent string
	// RelationshipStartDate is optional; nil means the customer left it out.
	RelationshipStartDate *time.Time
	// YouTubeMusicURL is optional background music for the page.
	YouTubeMusicURL string
	Photos          []Photo
	PaymentStatus   PaymentStatus
	// ProviderRef correlates asynchronous gateway callbacks to this record.
	ProviderRef string
	// PaymentID is the provider's settled payment identifier, set on outcome.
	PaymentID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer identifies the paying customer on a create command.
type Customer struct {
	Name  string
	Email string
}

// CreateMemoryInput describes the content needed to create a Memory.
type CreateMemoryInput struct {
	// PageName optionally pins the slug; when empty the slug derives from Title.
	PageName              string
	Title                 string
	LoveLetterContent     string
	RelationshipStartDate *time.Time
	YouTubeMusicURL       string
	Photos                []Photo
}

// NewMemory builds a Pending Memory with a generated ID and timestamps.
// The slug must already be allocated by the caller.
func NewMemory(input CreateMemoryInput, slug string, now func() time.Time, idGenerator func() (string, error)) (Memory, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateMemoryInput(input, now)
	if err != nil {
		return Memory{}, err
	}

	memoryID, err := idGenerator()
	if err != nil {
		return Memory{}, fmt.Errorf("generate memory id: %w", err)
	}

	createdAt := now().UTC()
	return Memory{
		ID:                    memoryID,
		Slug:                  slug,
		Title:                 normalized.Title,
		LoveLetterContent:     normalized.LoveLetterContent,
		RelationshipStartDate: normalized.RelationshipStartDate,
		YouTubeMusicURL:       normalized.YouTubeMusicURL,
		Photos:                normalized.Photos,
		PaymentStatus:         PaymentStatusPending,
		CreatedAt:             createdAt,
		UpdatedAt:             createdAt,
	}, nil
}

// NormalizeCreateMemoryInput trims and validates memory content.
func NormalizeCreateMemoryInput(input CreateMemoryInput, now func() time.Time) (CreateMemoryInput, error) {
	if now == nil {
		now = time.Now
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateMemoryInput{}, ErrTitleRequired
	}
	if len(input.Title) > MaxTitleLength {
		return CreateMemoryInput{}, apperrors.WithMetadata(
			apperrors.CodeMemoryTitleTooLong,
			fmt.Sprintf("page title exceeds %d characters", MaxTitleLength),
			map[string]string{"Max": strconv.Itoa(MaxTitleLength)},
		)
	}

	input.LoveLetterContent = strings.TrimSpace(input.LoveLetterContent)
	if len(input.LoveLetterContent) < MinLetterLength {
		return CreateMemoryInput{}, apperrors.WithMetadata(
			apperrors.CodeMemoryLetterTooShort,
			fmt.Sprintf("love letter is shorter than %d characters", MinLetterLength),
			map[string]string{"Min": strconv.Itoa(MinLetterLength)},
		)
	}
	if len(input.LoveLetterContent) > MaxLetterLength {
		return CreateMemoryInput{}, apperrors.WithMetadata(
			apperrors.CodeMemoryLetterTooLong,
			fmt.Sprintf("love letter exceeds %d characters", MaxLetterLength),
			map[string]string{"Max": strconv.Itoa(MaxLetterLength)},
		)
	}

	if len(input.Photos) == 0 {
		return CreateMemoryInput{}, apperrors.New(apperrors.CodeMemoryPhotosRequired, "at least one photo is required")
	}
	if len(input.Photos) > MaxPhotos {
		return CreateMemoryInput{}, apperrors.WithMetadata(
			apperrors.CodeMemoryTooManyPhotos,
			fmt.Sprintf("memory holds more than %d photos", MaxPhotos),
			map[string]string{"Max": strconv.Itoa(MaxPhotos)},
		)
	}
	photos := make([]Photo, 0, len(input.Photos))
	for _, photo := range input.Photos {
		photo.Reference = strings.TrimSpace(photo.Reference)
		photo.Caption = strings.TrimSpace(photo.Caption)
		if photo.Reference == "" {
			return CreateMemoryInput{}, apperrors.New(apperrors.CodePhotoReferenceUnknown, "photo reference is empty")
		}
		if len(photo.Caption) > MaxCaptionLength {
			return CreateMemoryInput{}, apperrors.WithMetadata(
				apperrors.CodeMemoryCaptionTooLong,
				fmt.Sprintf("photo caption exceeds %d characters", MaxCaptionLength),
				map[string]string{"Max": strconv.Itoa(MaxCaptionLength)},
			)
		}
		photos = append(photos, photo)
	}
	input.Photos = photos

	if input.RelationshipStartDate != nil {
		startDate := input.RelationshipStartDate.UTC()
		if startDate.After(now().UTC()) {
			return CreateMemoryInput{}, apperrors.New(apperrors.CodeMemoryStartDateInFuture, "relationship start date is in the future")
		}
		input.RelationshipStartDate = &startDate
	}

	input.YouTubeMusicURL = strings.TrimSpace(input.YouTubeMusicURL)
	if input.YouTubeMusicURL != "" && !youtubeURLPattern.MatchString(input.YouTubeMusicURL) {
		return CreateMemoryInput{}, apperrors.New(apperrors.CodeMemoryInvalidMusicURL, "youtube music url is not valid")
	}

	input.PageName = strings.TrimSpace(input.PageName)
	return input, nil
}

// NormalizeCustomer trims and validates customer contact details.
func NormalizeCustomer(customer Customer) (Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if len(customer.Name) < MinCustomerName || len(customer.Name) > MaxCustomerName || !customerNamePattern.MatchString(customer.Name) {
		return Customer{}, apperrors.New(apperrors.CodeCustomerNameInvalid, "customer name must contain 2 to 100 letters")
	}
	customer.Email = strings.TrimSpace(customer.Email)
	if len(customer.Email) > MaxCustomerEmail || !strings.Contains(customer.Email, "@") || strings.ContainsAny(customer.Email, " \t") || len(customer.Email) < 3 {
		return Customer{}, apperrors.New(apperrors.CodeCustomerEmailInvalid, "customer email is not valid")
	}
	return customer, nil
}

// ApplyOutcome applies a gateway outcome to the memory and reports whether the
// status changed.
//
// Outcomes are idempotent: re-delivering an outcome that matches the current
// state is a no-op with changed=false and no error. An outcome that conflicts
// with a terminal state returns ErrInvalidTransition; gateways redeliver
// webhooks routinely, so callers log and swallow that error instead of
// propagating it.
func ApplyOutcome(m Memory, outcome Outcome, paymentID string, now func() time.Time) (Memory, bool, error) {
	if now == nil {
		now = time.Now
	}

	target := PaymentStatusUnspecified
	switch outcome {
	case OutcomeApproved:
		target = PaymentStatusPaid
	case OutcomeRejected:
		target = PaymentStatusFailed
	case OutcomePending:
		// Still unsettled; nothing to record.
		return m, false, nil
	default:
		return m, false, apperrors.WithMetadata(
			apperrors.CodeInvalidTransition,
			"unknown gateway outcome",
			map[string]string{"FromStatus": m.PaymentStatus.Label()},
		)
	}

	if m.PaymentStatus == target {
		return m, false, nil
	}
	if !isStatusTransitionAllowed(m.PaymentStatus, target) {
		return m, false, apperrors.WithMetadata(
			apperrors.CodeInvalidTransition,
			fmt.Sprintf("payment status transition not allowed: %s -> %s", m.PaymentStatus.Label(), target.Label()),
			map[string]string{"FromStatus": m.PaymentStatus.Label(), "ToStatus": target.Label()},
		)
	}

	updated := m
	updated.PaymentStatus = target
	if paymentID = strings.TrimSpace(paymentID); paymentID != "" {
		updated.PaymentID = paymentID
	}
	updated.UpdatedAt = now().UTC()
	return updated, true, nil
}

// isStatusTransitionAllowed reports whether a payment status transition is permitted.
// Pending is the only non-terminal state; Paid, Failed and Abandoned are final.
func isStatusTransitionAllowed(from, to PaymentStatus) bool {
	if from != PaymentStatusPending {
		return false
	}
	switch to {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusAbandoned:
		return true
	default:
		return false
	}
}

// Label returns a stable lowercase label for a payment status, matching the
// values persisted in the store.
func (s PaymentStatus) Label() string {
	switch s {
	case PaymentStatusPending:
		return "pending"
	case PaymentStatusPaid:
		return "paid"
	case PaymentStatusFailed:
		return "failed"
	case PaymentStatusAbandoned:
		return "abandoned"
	default:
		return "unspecified"
	}
}

// PaymentStatusFromLabel parses a persisted label into a PaymentStatus.
func PaymentStatusFromLabel(value string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending":
		return PaymentStatusPending, nil
	case "paid":
		return PaymentStatusPaid, nil
	case "failed":
		return PaymentStatusFailed, nil
	case "abandoned":
		return PaymentStatusAbandoned, nil
	default:
		return PaymentStatusUnspecified, fmt.Errorf("unknown payment status: %s", value)
	}
}

// Label returns a stable label for a gateway outcome.
func (o Outcome) Label() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	case OutcomePending:
		return "pending"
	default:
		return "unspecified"
	}
}
