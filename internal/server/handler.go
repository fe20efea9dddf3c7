// Package server exposes the storefront HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/everpage/internal/lifecycle"
	"github.com/louisbranch/everpage/internal/memory"
	"github.com/louisbranch/everpage/internal/payment/mercadopago"
	"github.com/louisbranch/everpage/internal/photos"
	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
	"github.com/louisbranch/everpage/internal/platform/timeouts"
)

// LifecycleService is the slice of the lifecycle API the handler uses.
type LifecycleService interface {
	CreateMemory(ctx context.Context, input lifecycle.CreateMemoryInput) (lifecycle.CreateMemoryResult, error)
	GetPublished(ctx context.Context, slug string) (memory.Memory, error)
	RecordGatewayOutcome(ctx context.Context, providerRef, slug string, outcome memory.Outcome, paymentID string) error
	SweepAbandoned(ctx context.Context, threshold time.Duration) (int, error)
	CountPendingOlderThan(ctx context.Context, threshold time.Duration) (int, error)
}

// PhotoService is the slice of the photo ingestion API the handler uses.
type PhotoService interface {
	Upload(ctx context.Context, r io.Reader, mediaType string) (string, error)
	VerifyReferences(ctx context.Context, references []string) error
	Open(ctx context.Context, reference string) (io.ReadCloser, string, error)
}

// NotificationResolver turns provider webhook callbacks into outcomes.
type NotificationResolver interface {
	ResolveNotification(ctx context.Context, topic, paymentID string) (mercadopago.Notification, bool, error)
}

// HandlerConfig wires the HTTP handler dependencies.
type HandlerConfig struct {
	Lifecycle LifecycleService
	Photos    PhotoService
	Signer    *photos.Signer

	// Notifications resolves provider webhooks; nil disables the webhook
	// route, which is the case when payment is skipped.
	Notifications NotificationResolver

	// SweepToken guards the maintenance endpoints. Empty disables them.
	SweepToken string
	// SweepThreshold is how long a record may stay Pending; zero means the
	// lifecycle default.
	SweepThreshold time.Duration
}

type handler struct {
	lifecycle      LifecycleService
	photos         PhotoService
	signer         *photos.Signer
	notifications  NotificationResolver
	sweepToken     string
	sweepThreshold time.Duration
}

// NewHandler builds the storefront route table.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if cfg.Lifecycle == nil {
		return nil, fmt.Errorf("lifecycle service is required")
	}
	if cfg.Photos == nil {
		return nil, fmt.Errorf("photo service is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("photo signer is required")
	}

	h := &handler{
		lifecycle:      cfg.Lifecycle,
		photos:         cfg.Photos,
		signer:         cfg.Signer,
		notifications:  cfg.Notifications,
		sweepToken:     cfg.SweepToken,
		sweepThreshold: cfg.SweepThreshold,
	}

	limiter := newRateLimiter(rateLimitRequests, rateLimitWindow)

	mux := http.NewServeMux()
	mux.Handle("POST /api/pages", limiter.limitRate(http.HandlerFunc(h.createPage)))
	mux.HandleFunc("GET /api/pages/{slug}", h.getPage)
	mux.Handle("POST /api/uploads", limiter.limitRate(http.HandlerFunc(h.uploadPhoto)))
	mux.Handle("POST /api/uploads/sign", limiter.limitRate(http.HandlerFunc(h.signPhoto)))
	mux.HandleFunc("GET /files/{reference}", h.servePhoto)
	if h.notifications != nil {
		mux.HandleFunc("POST /api/webhooks/mercadopago", h.paymentWebhook)
	}
	if h.sweepToken != "" {
		mux.Handle("POST /api/maintenance/sweep", requireBearer(h.sweepToken, http.HandlerFunc(h.runSweep)))
		mux.Handle("GET /api/maintenance/sweep", requireBearer(h.sweepToken, http.HandlerFunc(h.previewSweep)))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return logRequests(mux), nil
}

type createPageRequest struct {
	PageName              string `json:"page_name"`
	Title                 string `json:"title"`
	LoveLetterContent     string `json:"love_letter_content"`
	RelationshipStartDate string `json:"relationship_start_date"`
	YouTubeMusicURL       string `json:"youtube_music_url"`
	Photos                []struct {
		Reference string `json:"reference"`
		Caption   string `json:"caption"`
	} `json:"photos"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
}

type createPageResponse struct {
	Slug          string `json:"slug"`
	PaymentStatus string `json:"payment_status"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

func (h *handler) createPage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "decode create request", err))
		return
	}

	input := lifecycle.CreateMemoryInput{
		Content: memory.CreateMemoryInput{
			PageName:          req.PageName,
			Title:             req.Title,
			LoveLetterContent: req.LoveLetterContent,
			YouTubeMusicURL:   req.YouTubeMusicURL,
		},
		Customer: memory.Customer{Name: req.Customer.Name, Email: req.Customer.Email},
	}
	if req.RelationshipStartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.RelationshipStartDate)
		if err != nil {
			writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "parse relationship start date", err))
			return
		}
		input.Content.RelationshipStartDate = &startDate
	}

	references := make([]string, 0, len(req.Photos))
	for _, photo := range req.Photos {
		input.Content.Photos = append(input.Content.Photos, memory.Photo{
			Reference: photo.Reference,
			Caption:   photo.Caption,
		})
		references = append(references, strings.TrimSpace(photo.Reference))
	}
	if err := h.photos.VerifyReferences(r.Context(), references); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.lifecycle.CreateMemory(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPageResponse{
		Slug:          result.Memory.Slug,
		PaymentStatus: result.Memory.PaymentStatus.Label(),
		CheckoutURL:   result.CheckoutURL,
	})
}

type pagePhoto struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type pageResponse struct {
	Slug                  string      `json:"slug"`
	Title                 string      `json:"title"`
	LoveLetterContent     string      `json:"love_letter_content"`
	RelationshipStartDate *time.Time  `json:"relationship_start_date,omitempty"`
	YouTubeMusicURL       string      `json:"youtube_music_url,omitempty"`
	Photos                []pagePhoto `json:"photos"`
	PaymentStatus         string      `json:"payment_status"`
	Draft                 bool        `json:"draft,omitempty"`
}

func (h *handler) getPage(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	record, err := h.lifecycle.GetPublished(r.Context(), slug)
	if err == nil {
		resp, buildErr := h.buildPageResponse(record)
		if buildErr != nil {
			writeError(w, r, buildErr)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// Fresh pages arrive from checkout before the webhook settles them; a
	// draft payload in the redirect lets the customer preview the page.
	if draft := r.URL.Query().Get("draft"); draft != "" && isNotFound(err) {
		payload, draftErr := memory.DecodeDraftPayload(draft)
		if draftErr != nil {
			writeError(w, r, draftErr)
			return
		}
		resp, buildErr := h.buildDraftResponse(slug, payload)
		if buildErr != nil {
			writeError(w, r, buildErr)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeError(w, r, err)
}

func (h *handler) buildPageResponse(record memory.Memory) (pageResponse, error) {
	resp := pageResponse{
		Slug:                  record.Slug,
		Title:                 record.Title,
		LoveLetterContent:     record.LoveLetterContent,
		RelationshipStartDate: record.RelationshipStartDate,
		YouTubeMusicURL:       record.YouTubeMusicURL,
		Photos:                make([]pagePhoto, 0, len(record.Photos)),
		PaymentStatus:         record.PaymentStatus.Label(),
	}
	for _, photo := range record.Photos {
		signedPath, err := h.signer.SignedPath(photo.Reference)
		if err != nil {
			return pageResponse{}, fmt.Errorf("sign photo url: %w", err)
		}
		resp.Photos = append(resp.Photos, pagePhoto{URL: signedPath, Caption: photo.Caption})
	}
	return resp, nil
}

func (h *handler) buildDraftResponse(slug string, payload memory.DraftPayload) (pageResponse, error) {
	resp := pageResponse{
		Slug:                  slug,
		Title:                 payload.Title,
		LoveLetterContent:     payload.LoveLetterContent,
		RelationshipStartDate: payload.RelationshipStartDate,
		YouTubeMusicURL:       payload.YouTubeMusicURL,
		Photos:                make([]pagePhoto, 0, len(payload.Photos)),
		PaymentStatus:         memory.PaymentStatusPending.Label(),
		Draft:                 true,
	}
	for _, photo := range payload.Photos {
		signedPath, err := h.signer.SignedPath(photo.Reference)
		if err != nil {
			return pageResponse{}, fmt.Errorf("sign photo url: %w", err)
		}
		resp.Photos = append(resp.Photos, pagePhoto{URL: signedPath, Caption: photo.Caption})
	}
	return resp, nil
}

type uploadResponse struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
}

func (h *handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload)
	defer cancel()

	reference, err := h.photos.Upload(ctx, r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	signedPath, err := h.signer.SignedPath(reference)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign photo url: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Reference: reference, URL: signedPath})
}

type signRequest struct {
	Reference string `json:"reference"`
}

// signPhoto issues a fresh signed URL for an already stored photo. Signed
// URLs expire, so pages request a new one per render.
func (h *handler) signPhoto(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "decode sign request", err))
		return
	}
	reference := strings.TrimSpace(req.Reference)
	if err := h.photos.VerifyReferences(r.Context(), []string{reference}); err != nil {
		writeError(w, r, err)
		return
	}
	signedPath, err := h.signer.SignedPath(reference)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign photo url: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Reference: reference, URL: signedPath})
}

func (h *handler) servePhoto(w http.ResponseWriter, r *http.Request) {
	reference, err := url.PathUnescape(r.PathValue("reference"))
	if err != nil {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "photo not found"))
		return
	}
	if err := h.signer.Verify(r.URL.Query().Get("token"), reference); err != nil {
		writeError(w, r, err)
		return
	}

	rc, mediaType, err := h.photos.Open(r.Context(), reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("serve photo %s: %v", reference, err)
	}
}

// paymentWebhook ingests provider callbacks. The provider retries until it
// sees 2xx, so resolvable-but-stale callbacks still answer 200; only lookups
// and infrastructure failures report an error status.
func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "parse webhook form", err))
		return
	}
	topic := firstNonEmpty(r.Form.Get("topic"), r.Form.Get("type"))
	paymentID := firstNonEmpty(r.Form.Get("id"), r.Form.Get("data.id"))

	notification, ok, err := h.notifications.ResolveNotification(r.Context(), topic, paymentID)
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeGatewayUnavailable, "resolve webhook notification", err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	err = h.lifecycle.RecordGatewayOutcome(r.Context(), notification.ProviderRef, notification.Slug, notification.Outcome, notification.PaymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type sweepResponse struct {
	Swept int `json:"swept"`
}

type sweepPreviewResponse struct {
	Pending int `json:"pending"`
}

func (h *handler) runSweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.lifecycle.SweepAbandoned(r.Context(), h.sweepThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Swept: count})
}

func (h *handler) previewSweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.lifecycle.CountPendingOlderThan(r.Context(), h.sweepThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepPreviewResponse{Pending: count})
}

func isNotFound(err error) bool {
	var appErr *apperrors.Error
	return errors.As(err, &appErr) && appErr.Code == apperrors.CodeNotFound
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
