package memory

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
}

func validInput() CreateMemoryInput {
	return CreateMemoryInput{
		Title:             "Maria & João",
		LoveLetterContent: "Ten years together and I still smile every morning.",
		Photos:            []Photo{{Reference: "photo-1", Caption: "our first trip"}},
	}
}

func TestNewMemoryDefaults(t *testing.T) {
	t.Parallel()

	idCalls := 0
	idGen := func() (string, error) {
		idCalls++
		return "memory-id-1", nil
	}

	m, err := NewMemory(validInput(), "maria-joao", fixedNow, idGen)
	if err != nil {
		t.Fatalf("new memory: %v", err)
	}
	if m.ID != "memory-id-1" {
		t.Fatalf("expected generated id, got %q", m.ID)
	}
	if idCalls != 1 {
		t.Fatalf("expected one id generation, got %d", idCalls)
	}
	if m.Slug != "maria-joao" {
		t.Fatalf("expected slug maria-joao, got %q", m.Slug)
	}
	if m.PaymentStatus != PaymentStatusPending {
		t.Fatalf("expected pending status, got %s", m.PaymentStatus.Label())
	}
	if !m.CreatedAt.Equal(fixedNow()) || !m.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("expected fixed timestamps, got created=%v updated=%v", m.CreatedAt, m.UpdatedAt)
	}
	if m.ProviderRef != "" || m.PaymentID != "" {
		t.Fatal("expected empty provider references on a fresh memory")
	}
}

func TestNewMemoryIDGeneratorFailure(t *testing.T) {
	t.Parallel()

	idGen := func() (string, error) { return "", errors.New("entropy exhausted") }
	if _, err := NewMemory(validInput(), "maria-joao", fixedNow, idGen); err == nil {
		t.Fatal("expected id generation failure to propagate")
	}
}

func TestNormalizeCreateMemoryInputValidation(t *testing.T) {
	t.Parallel()

	futureDate := fixedNow().Add(48 * time.Hour)
	pastDate := fixedNow().Add(-48 * time.Hour)

	tests := []struct {
		name     string
		mutate   func(*CreateMemoryInput)
		wantCode apperrors.Code
	}{
		{
			name:     "missing title",
			mutate:   func(in *CreateMemoryInput) { in.Title = "   " },
			wantCode: apperrors.CodeMemoryTitleRequired,
		},
		{
			name:     "title too long",
			mutate:   func(in *CreateMemoryInput) { in.Title = strings.Repeat("a", MaxTitleLength+1) },
			wantCode: apperrors.CodeMemoryTitleTooLong,
		},
		{
			name:     "letter too short",
			mutate:   func(in *CreateMemoryInput) { in.LoveLetterContent = "short" },
			wantCode: apperrors.CodeMemoryLetterTooShort,
		},
		{
			name:     "letter too long",
			mutate:   func(in *CreateMemoryInput) { in.LoveLetterContent = strings.Repeat("x", MaxLetterLength+1) },
			wantCode: apperrors.CodeMemoryLetterTooLong,
		},
		{
			name:     "no photos",
			mutate:   func(in *CreateMemoryInput) { in.Photos = nil },
			wantCode: apperrors.CodeMemoryPhotosRequired,
		},
		{
			name: "too many photos",
			mutate: func(in *CreateMemoryInput) {
				in.Photos = make([]Photo, MaxPhotos+1)
				for i := range in.Photos {
					in.Photos[i] = Photo{Reference: "ref"}
				}
			},
			wantCode: apperrors.CodeMemoryTooManyPhotos,
		},
		{
			name: "caption too long",
			mutate: func(in *CreateMemoryInput) {
				in.Photos = []Photo{{Reference: "ref", Caption: strings.Repeat("c", MaxCaptionLength+1)}}
			},
			wantCode: apperrors.CodeMemoryCaptionTooLong,
		},
		{
			name:     "empty photo reference",
			mutate:   func(in *CreateMemoryInput) { in.Photos = []Photo{{Reference: "  "}} },
			wantCode: apperrors.CodePhotoReferenceUnknown,
		},
		{
			name:     "start date in the future",
			mutate:   func(in *CreateMemoryInput) { in.RelationshipStartDate = &futureDate },
			wantCode: apperrors.CodeMemoryStartDateInFuture,
		},
		{
			name:     "invalid music url",
			mutate:   func(in *CreateMemoryInput) { in.YouTubeMusicURL = "https://vimeo.com/12345" },
			wantCode: apperrors.CodeMemoryInvalidMusicURL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := NormalizeCreateMemoryInput(input, fixedNow)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("expected domain error, got %T", err)
			}
			if appErr.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
		})
	}

	t.Run("valid past start date and music url", func(t *testing.T) {
		input := validInput()
		input.RelationshipStartDate = &pastDate
		input.YouTubeMusicURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
		normalized, err := NormalizeCreateMemoryInput(input, fixedNow)
		if err != nil {
			t.Fatalf("expected valid input, got %v", err)
		}
		if normalized.RelationshipStartDate == nil {
			t.Fatal("expected start date to survive normalization")
		}
	})

	t.Run("short youtube url", func(t *testing.T) {
		input := validInput()
		input.YouTubeMusicURL = "https://youtu.be/dQw4w9WgXcQ"
		if _, err := NormalizeCreateMemoryInput(input, fixedNow); err != nil {
			t.Fatalf("expected short url to pass, got %v", err)
		}
	})
}

func TestNormalizeCustomer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		customer Customer
		wantCode apperrors.Code
	}{
		{"valid", Customer{Name: "Maria Silva", Email: "maria@example.com"}, ""},
		{"accented name", Customer{Name: "João Ângelo", Email: "joao@example.com"}, ""},
		{"name too short", Customer{Name: "J", Email: "j@example.com"}, apperrors.CodeCustomerNameInvalid},
		{"name with digits", Customer{Name: "Maria 2", Email: "maria@example.com"}, apperrors.CodeCustomerNameInvalid},
		{"missing at sign", Customer{Name: "Maria Silva", Email: "maria.example.com"}, apperrors.CodeCustomerEmailInvalid},
		{"email too long", Customer{Name: "Maria Silva", Email: strings.Repeat("m", MaxCustomerEmail) + "@x.co"}, apperrors.CodeCustomerEmailInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeCustomer(tt.customer)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected valid customer, got %v", err)
				}
				return
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("expected domain error, got %T", err)
			}
			if appErr.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
		})
	}
}

func TestApplyOutcomeTransitions(t *testing.T) {
	t.Parallel()

	base := Memory{
		ID:            "memory-1",
		Slug:          "maria-joao",
		PaymentStatus: PaymentStatusPending,
		UpdatedAt:     fixedNow().Add(-time.Hour),
	}

	t.Run("approved settles to paid", func(t *testing.T) {
		updated, changed, err := ApplyOutcome(base, OutcomeApproved, "pay-1", fixedNow)
		if err != nil {
			t.Fatalf("apply approved: %v", err)
		}
		if !changed {
			t.Fatal("expected status change")
		}
		if updated.PaymentStatus != PaymentStatusPaid {
			t.Fatalf("expected paid, got %s", updated.PaymentStatus.Label())
		}
		if updated.PaymentID != "pay-1" {
			t.Fatalf("expected payment id recorded, got %q", updated.PaymentID)
		}
		if !updated.UpdatedAt.Equal(fixedNow()) {
			t.Fatalf("expected updated timestamp, got %v", updated.UpdatedAt)
		}
	})

	t.Run("rejected settles to failed", func(t *testing.T) {
		updated, changed, err := ApplyOutcome(base, OutcomeRejected, "", fixedNow)
		if err != nil || !changed {
			t.Fatalf("apply rejected: changed=%v err=%v", changed, err)
		}
		if updated.PaymentStatus != PaymentStatusFailed {
			t.Fatalf("expected failed, got %s", updated.PaymentStatus.Label())
		}
	})

	t.Run("pending outcome is a no-op", func(t *testing.T) {
		updated, changed, err := ApplyOutcome(base, OutcomePending, "", fixedNow)
		if err != nil {
			t.Fatalf("apply pending: %v", err)
		}
		if changed {
			t.Fatal("expected no change for pending outcome")
		}
		if !updated.UpdatedAt.Equal(base.UpdatedAt) {
			t.Fatal("expected untouched timestamps")
		}
	})

	t.Run("redelivered matching outcome is a no-op", func(t *testing.T) {
		paid := base
		paid.PaymentStatus = PaymentStatusPaid
		_, changed, err := ApplyOutcome(paid, OutcomeApproved, "pay-1", fixedNow)
		if err != nil {
			t.Fatalf("redelivery should not error: %v", err)
		}
		if changed {
			t.Fatal("expected redelivery to be a no-op")
		}
	})

	t.Run("conflicting outcome on terminal state", func(t *testing.T) {
		failed := base
		failed.PaymentStatus = PaymentStatusFailed
		_, changed, err := ApplyOutcome(failed, OutcomeApproved, "pay-2", fixedNow)
		if changed {
			t.Fatal("expected no change")
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("abandoned never settles", func(t *testing.T) {
		abandoned := base
		abandoned.PaymentStatus = PaymentStatusAbandoned
		if _, _, err := ApplyOutcome(abandoned, OutcomeRejected, "", fixedNow); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})
}

func TestPaymentStatusLabelRoundTrip(t *testing.T) {
	t.Parallel()

	statuses := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusAbandoned,
	}
	for _, status := range statuses {
		parsed, err := PaymentStatusFromLabel(status.Label())
		if err != nil {
			t.Fatalf("parse label %q: %v", status.Label(), err)
		}
		if parsed != status {
			t.Fatalf("round trip mismatch: %v != %v", parsed, status)
		}
	}

	if _, err := PaymentStatusFromLabel("bogus"); err == nil {
		t.Fatal("expected unknown label to fail")
	}
	if PaymentStatusUnspecified.Label() != "unspecified" {
		t.Fatalf("unexpected label %q", PaymentStatusUnspecified.Label())
	}
}

func TestStatusTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusAbandoned, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusFailed, false},
		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusPaid, false},
		{PaymentStatusAbandoned, PaymentStatusPaid, false},
	}
	for _, tt := range tests {
		if got := isStatusTransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Fatalf("transition %s -> %s: got %v, want %v", tt.from.Label(), tt.to.Label(), got, tt.want)
		}
	}
}
