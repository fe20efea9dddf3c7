// Package lifecycle coordinates the Memory payment lifecycle: slug
// allocation, record creation, gateway outcomes, published reads and
// abandonment sweeps.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/everpage/internal/cache"
	"github.com/louisbranch/everpage/internal/memory"
	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
	"github.com/louisbranch/everpage/internal/platform/timeouts"
	"github.com/louisbranch/everpage/internal/storage"
)

// DefaultMaxSlugAttempts bounds the slug suffix search on create.
const DefaultMaxSlugAttempts = 20

// DefaultAbandonThreshold is how long a record may stay Pending before the
// sweeper marks it Abandoned.
const DefaultAbandonThreshold = 24 * time.Hour

// Gateway creates hosted checkout sessions with the payment provider.
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
}

// PreferenceRequest carries what the provider needs to open a checkout.
type PreferenceRequest struct {
	MemoryID   string
	Slug       string
	Title      string
	PriceCents int64
	Currency   string
	Customer   memory.Customer
}

// Preference is the provider's checkout session.
type Preference struct {
	// ID is the provider reference used to correlate webhook callbacks.
	ID          string
	CheckoutURL string
	// AutoApproved marks preferences settled without an external checkout,
	// such as the development no-op gateway.
	AutoApproved bool
}

// CreateMemoryInput is the full create command: page content plus customer.
type CreateMemoryInput struct {
	Content  memory.CreateMemoryInput
	Customer memory.Customer
}

// CreateMemoryResult is the outcome of a successful create.
type CreateMemoryResult struct {
	Memory      memory.Memory
	CheckoutURL string
}

// Config wires the service dependencies.
type Config struct {
	Store   storage.MemoryStore
	Cache   *cache.Cache[memory.Memory]
	Gateway Gateway

	// PriceCents and Currency apply to every checkout; the product sells a
	// single item at a flat price.
	PriceCents int64
	Currency   string

	// MaxSlugAttempts caps the suffix search; zero means the default.
	MaxSlugAttempts int

	// Now and IDGenerator exist for tests; nil means real clock and IDs.
	Now         func() time.Time
	IDGenerator func() (string, error)
}

// Service implements the Memory lifecycle operations.
type Service struct {
	store           storage.MemoryStore
	cache           *cache.Cache[memory.Memory]
	gateway         Gateway
	priceCents      int64
	currency        string
	maxSlugAttempts int
	now             func() time.Time
	idGenerator     func() (string, error)
}

// New creates a lifecycle service. Store, Cache and Gateway are required.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.MaxSlugAttempts <= 0 {
		cfg.MaxSlugAttempts = DefaultMaxSlugAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:           cfg.Store,
		cache:           cfg.Cache,
		gateway:         cfg.Gateway,
		priceCents:      cfg.PriceCents,
		currency:        cfg.Currency,
		maxSlugAttempts: cfg.MaxSlugAttempts,
		now:             cfg.Now,
		idGenerator:     cfg.IDGenerator,
	}, nil
}

// CreateMemory validates the command, allocates a unique slug, persists a
// Pending record and opens a checkout session with the payment provider.
//
// Slug allocation races are resolved by the store's conditional insert: on a
// slug collision the service retries with the next numeric suffix. If the
// gateway call fails after the insert, the record is deleted so no slug is
// left claimed by a page nobody can pay for.
func (s *Service) CreateMemory(ctx context.Context, input CreateMemoryInput) (CreateMemoryResult, error) {
	customer, err := memory.NormalizeCustomer(input.Customer)
	if err != nil {
		return CreateMemoryResult{}, err
	}
	content, err := memory.NormalizeCreateMemoryInput(input.Content, s.now)
	if err != nil {
		return CreateMemoryResult{}, err
	}

	slugSource := content.PageName
	if slugSource == "" {
		slugSource = content.Title
	}
	base, err := memory.NormalizeSlug(slugSource)
	if err != nil {
		return CreateMemoryResult{}, err
	}

	var record memory.Memory
	inserted := false
	for attempt := 0; attempt < s.maxSlugAttempts; attempt++ {
		candidate := memory.SlugCandidate(base, attempt)
		record, err = memory.NewMemory(content, candidate, s.now, s.idGenerator)
		if err != nil {
			return CreateMemoryResult{}, err
		}
		err = s.store.InsertIfAbsent(ctx, record)
		if err == nil {
			inserted = true
			break
		}
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		return CreateMemoryResult{}, apperrors.Wrap(apperrors.CodePersistenceError, "insert memory", err)
	}
	if !inserted {
		return CreateMemoryResult{}, apperrors.WithMetadata(
			apperrors.CodeSlugAllocationExhausted,
			fmt.Sprintf("no free slug after %d attempts for %q", s.maxSlugAttempts, base),
			map[string]string{"Slug": base},
		)
	}
	s.cache.Delete(record.Slug)

	gatewayCtx, cancel := context.WithTimeout(ctx, timeouts.GatewayCall)
	defer cancel()
	pref, err := s.gateway.CreatePreference(gatewayCtx, PreferenceRequest{
		MemoryID:   record.ID,
		Slug:       record.Slug,
		Title:      record.Title,
		PriceCents: s.priceCents,
		Currency:   s.currency,
		Customer:   customer,
	})
	if err != nil {
		s.rollbackCreate(record)
		return CreateMemoryResult{}, apperrors.Wrap(apperrors.CodeGatewayUnavailable, "create checkout preference", err)
	}

	if err := s.store.SetProviderRef(ctx, record.ID, pref.ID, s.now().UTC()); err != nil {
		s.rollbackCreate(record)
		return CreateMemoryResult{}, apperrors.Wrap(apperrors.CodePersistenceError, "attach provider reference", err)
	}
	record.ProviderRef = pref.ID

	if pref.AutoApproved {
		if err := s.RecordGatewayOutcome(ctx, pref.ID, record.Slug, memory.OutcomeApproved, ""); err != nil {
			return CreateMemoryResult{}, err
		}
		record.PaymentStatus = memory.PaymentStatusPaid
	}

	return CreateMemoryResult{Memory: record, CheckoutURL: pref.CheckoutURL}, nil
}

// rollbackCreate removes a record that never got a usable checkout session.
// The delete runs on a fresh context so a canceled request still cleans up.
func (s *Service) rollbackCreate(record memory.Memory) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), timeouts.GatewayCall)
	defer cancel()
	if err := s.store.Delete(cleanupCtx, record.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("rollback memory %s (slug %s): %v", record.ID, record.Slug, err)
	}
	s.cache.Delete(record.Slug)
}

// RecordGatewayOutcome applies an asynchronous payment outcome.
//
// Lookup is by provider reference first, falling back to the slug carried in
// webhook metadata when the reference is unknown. Redeliveries and conflicts
// with terminal states are logged and swallowed; the provider retries
// webhooks until it sees success, so only infrastructure failures propagate.
func (s *Service) RecordGatewayOutcome(ctx context.Context, providerRef, slug string, outcome memory.Outcome, paymentID string) error {
	record, err := s.findForOutcome(ctx, providerRef, slug)
	if err != nil {
		return err
	}

	updated, changed, err := memory.ApplyOutcome(record, outcome, paymentID, s.now)
	if err != nil {
		log.Printf("ignoring outcome %s for memory %s in state %s: %v",
			outcome.Label(), record.ID, record.PaymentStatus.Label(), err)
		return nil
	}
	if !changed {
		return nil
	}

	ok, err := s.store.UpdateStatus(ctx, record.ID, record.PaymentStatus, updated.PaymentStatus, updated.PaymentID, updated.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceError, "update payment status", err)
	}
	if !ok {
		// A concurrent delivery won the race; this one has nothing to add.
		log.Printf("stale outcome %s for memory %s", outcome.Label(), record.ID)
		return nil
	}
	s.cache.Delete(record.Slug)
	return nil
}

func (s *Service) findForOutcome(ctx context.Context, providerRef, slug string) (memory.Memory, error) {
	providerRef = strings.TrimSpace(providerRef)
	slug = strings.TrimSpace(slug)

	if providerRef != "" {
		record, err := s.store.FindByProviderRef(ctx, providerRef)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return memory.Memory{}, apperrors.Wrap(apperrors.CodePersistenceError, "find memory by provider reference", err)
		}
	}
	if slug != "" {
		record, err := s.store.FindBySlug(ctx, slug)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return memory.Memory{}, apperrors.Wrap(apperrors.CodePersistenceError, "find memory by slug", err)
		}
	}
	return memory.Memory{}, apperrors.WithMetadata(
		apperrors.CodeNotFound,
		"no memory matches the gateway notification",
		map[string]string{"ProviderRef": providerRef, "Slug": slug},
	)
}

// GetPublished returns the Paid memory for a slug. Unpaid and missing records
// are indistinguishable to callers; both return a not-found error. Only Paid
// snapshots enter the cache, so a cache hit is always publishable.
func (s *Service) GetPublished(ctx context.Context, slug string) (memory.Memory, error) {
	slug = strings.TrimSpace(slug)
	if !memory.IsValidSlug(slug) {
		return memory.Memory{}, apperrors.New(apperrors.CodeNotFound, "page not found")
	}

	if record, ok := s.cache.Get(slug); ok {
		return record, nil
	}

	record, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return memory.Memory{}, apperrors.New(apperrors.CodeNotFound, "page not found")
		}
		return memory.Memory{}, apperrors.Wrap(apperrors.CodePersistenceError, "find memory by slug", err)
	}
	if record.PaymentStatus != memory.PaymentStatusPaid {
		return memory.Memory{}, apperrors.New(apperrors.CodeNotFound, "page not found")
	}

	s.cache.Set(slug, record)
	return record, nil
}

// SweepAbandoned marks Pending records older than threshold as Abandoned and
// returns how many it changed. Cache entries for the swept slugs are dropped.
func (s *Service) SweepAbandoned(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultAbandonThreshold
	}
	now := s.now().UTC()
	slugs, err := s.store.MarkAbandonedOlderThan(ctx, now.Add(-threshold), now)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodePersistenceError, "mark abandoned memories", err)
	}
	for _, slug := range slugs {
		s.cache.Delete(slug)
	}
	return len(slugs), nil
}

// CountPendingOlderThan reports how many records the next sweep would touch.
func (s *Service) CountPendingOlderThan(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultAbandonThreshold
	}
	cutoff := s.now().UTC().Add(-threshold)
	count, err := s.store.CountPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodePersistenceError, "count pending memories", err)
	}
	return count, nil
}
