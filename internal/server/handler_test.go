package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/everpage/internal/lifecycle"
	"github.com/louisbranch/everpage/internal/memory"
	"github.com/louisbranch/everpage/internal/payment/mercadopago"
	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
	"github.com/louisbranch/everpage/internal/photos"
)

type fakeLifecycle struct {
	createResult lifecycle.CreateMemoryResult
	createErr    error
	published    map[string]memory.Memory

	outcomes []recordedOutcome

	sweepCount   int
	pendingCount int
}

type recordedOutcome struct {
	providerRef string
	slug        string
	outcome     memory.Outcome
	paymentID   string
}

func (f *fakeLifecycle) CreateMemory(_ context.Context, _ lifecycle.CreateMemoryInput) (lifecycle.CreateMemoryResult, error) {
	if f.createErr != nil {
		return lifecycle.CreateMemoryResult{}, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeLifecycle) GetPublished(_ context.Context, slug string) (memory.Memory, error) {
	record, ok := f.published[slug]
	if !ok {
		return memory.Memory{}, apperrors.New(apperrors.CodeNotFound, "page not found")
	}
	return record, nil
}

func (f *fakeLifecycle) RecordGatewayOutcome(_ context.Context, providerRef, slug string, outcome memory.Outcome, paymentID string) error {
	f.outcomes = append(f.outcomes, recordedOutcome{providerRef, slug, outcome, paymentID})
	return nil
}

func (f *fakeLifecycle) SweepAbandoned(_ context.Context, _ time.Duration) (int, error) {
	return f.sweepCount, nil
}

func (f *fakeLifecycle) CountPendingOlderThan(_ context.Context, _ time.Duration) (int, error) {
	return f.pendingCount, nil
}

type fakePhotos struct {
	objects    map[string][]byte
	uploadErr  error
	nextUpload string
	verified   [][]string
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{objects: make(map[string][]byte), nextUpload: "photo-1.jpg"}
}

func (f *fakePhotos) Upload(_ context.Context, r io.Reader, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[f.nextUpload] = data
	return f.nextUpload, nil
}

func (f *fakePhotos) VerifyReferences(_ context.Context, references []string) error {
	f.verified = append(f.verified, references)
	for _, ref := range references {
		if _, ok := f.objects[ref]; !ok {
			return apperrors.New(apperrors.CodePhotoReferenceUnknown, "photo reference unknown")
		}
	}
	return nil
}

func (f *fakePhotos) Open(_ context.Context, reference string) (io.ReadCloser, string, error) {
	data, ok := f.objects[reference]
	if !ok {
		return nil, "", apperrors.New(apperrors.CodeNotFound, "photo not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

type fakeResolver struct {
	notification mercadopago.Notification
	ok           bool
	err          error
}

func (f *fakeResolver) ResolveNotification(_ context.Context, _, _ string) (mercadopago.Notification, bool, error) {
	return f.notification, f.ok, f.err
}

func newTestSigner(t *testing.T) *photos.Signer {
	t.Helper()
	signer, err := photos.NewSigner([]byte("handler-test-key"), time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func newTestHandler(t *testing.T, svc *fakeLifecycle, photoSvc *fakePhotos, resolver NotificationResolver) http.Handler {
	t.Helper()
	h, err := NewHandler(HandlerConfig{
		Lifecycle:      svc,
		Photos:         photoSvc,
		Signer:         newTestSigner(t),
		Notifications:  resolver,
		SweepToken:     "sweep-secret",
		SweepThreshold: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func createBody() string {
	return `{
		"title": "Maria e Joao",
		"love_letter_content": "Ten years together and I still smile.",
		"photos": [{"reference": "photo-1.jpg", "caption": "trip"}],
		"customer": {"name": "Maria Silva", "email": "maria@example.com"}
	}`
}

func TestCreatePage(t *testing.T) {
	svc := &fakeLifecycle{
		createResult: lifecycle.CreateMemoryResult{
			Memory: memory.Memory{
				Slug:          "maria-e-joao",
				PaymentStatus: memory.PaymentStatusPending,
			},
			CheckoutURL: "https://checkout.example/maria-e-joao",
		},
	}
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("bytes")
	h := newTestHandler(t, svc, photoSvc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(createBody()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec.Body)
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	data := env.Data.(map[string]interface{})
	if data["slug"] != "maria-e-joao" {
		t.Fatalf("unexpected slug %v", data["slug"])
	}
	if data["checkout_url"] != "https://checkout.example/maria-e-joao" {
		t.Fatalf("unexpected checkout url %v", data["checkout_url"])
	}
	if len(photoSvc.verified) != 1 {
		t.Fatalf("expected photo verification, got %d calls", len(photoSvc.verified))
	}
}

func TestCreatePageRejectsUnknownPhotoReference(t *testing.T) {
	svc := &fakeLifecycle{}
	h := newTestHandler(t, svc, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(createBody()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	if env.Error == nil || env.Error.Code != "PHOTO_REFERENCE_UNKNOWN" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestCreatePageRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreatePageLocalizesValidationErrors(t *testing.T) {
	svc := &fakeLifecycle{createErr: apperrors.New(apperrors.CodeMemoryTitleRequired, "page title is required")}
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("bytes")
	h := newTestHandler(t, svc, photoSvc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(createBody()))
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	if env.Error == nil || env.Error.Message != "O título da página é obrigatório." {
		t.Fatalf("expected localized message, got %+v", env.Error)
	}
}

func TestGetPagePublished(t *testing.T) {
	svc := &fakeLifecycle{
		published: map[string]memory.Memory{
			"maria-e-joao": {
				Slug:              "maria-e-joao",
				Title:             "Maria e Joao",
				LoveLetterContent: "Ten years together.",
				Photos:            []memory.Photo{{Reference: "photo-1.jpg", Caption: "trip"}},
				PaymentStatus:     memory.PaymentStatusPaid,
			},
		},
	}
	h := newTestHandler(t, svc, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pages/maria-e-joao", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]interface{})
	if data["payment_status"] != "paid" {
		t.Fatalf("unexpected status %v", data["payment_status"])
	}
	photoList := data["photos"].([]interface{})
	photo := photoList[0].(map[string]interface{})
	url := photo["url"].(string)
	if !strings.HasPrefix(url, "/files/photo-1.jpg?token=") {
		t.Fatalf("expected signed photo url, got %q", url)
	}
	if photo["caption"] != "trip" {
		t.Fatalf("unexpected caption %v", photo["caption"])
	}
}

func TestGetPageNotFound(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pages/missing-page", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPageDraftFallback(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	draft := base64.RawURLEncoding.EncodeToString([]byte(
		`{"title":"Maria e Joao","love_letter_content":"Ten years.","photos":[{"reference":"photo-1.jpg"}]}`,
	))
	req := httptest.NewRequest(http.MethodGet, "/api/pages/maria-e-joao?draft="+draft, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]interface{})
	if data["draft"] != true {
		t.Fatalf("expected draft flag, got %v", data["draft"])
	}
	if data["payment_status"] != "pending" {
		t.Fatalf("expected pending draft, got %v", data["payment_status"])
	}
}

func TestGetPageDraftMalformed(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pages/maria-e-joao?draft=%25%25garbage", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetPageDraftIgnoredWhenPublished(t *testing.T) {
	svc := &fakeLifecycle{
		published: map[string]memory.Memory{
			"maria-e-joao": {Slug: "maria-e-joao", Title: "Published", PaymentStatus: memory.PaymentStatusPaid},
		},
	}
	h := newTestHandler(t, svc, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pages/maria-e-joao?draft=ignored", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]interface{})
	if data["title"] != "Published" {
		t.Fatalf("expected published record to win over draft, got %v", data["title"])
	}
}

func TestUploadPhoto(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("jpeg bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]interface{})
	if data["reference"] != "photo-1.jpg" {
		t.Fatalf("unexpected reference %v", data["reference"])
	}
	if !strings.HasPrefix(data["url"].(string), "/files/photo-1.jpg?token=") {
		t.Fatalf("expected signed url, got %v", data["url"])
	}
}

func TestUploadPhotoUnsupportedType(t *testing.T) {
	photoSvc := newFakePhotos()
	photoSvc.uploadErr = apperrors.New(apperrors.CodePhotoUnsupportedMediaType, "unsupported")
	h := newTestHandler(t, &fakeLifecycle{}, photoSvc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestSignPhoto(t *testing.T) {
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("jpeg bytes")
	h := newTestHandler(t, &fakeLifecycle{}, photoSvc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/sign", strings.NewReader(`{"reference": "photo-1.jpg"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]interface{})
	if data["reference"] != "photo-1.jpg" {
		t.Fatalf("unexpected reference %v", data["reference"])
	}
	if !strings.HasPrefix(data["url"].(string), "/files/photo-1.jpg?token=") {
		t.Fatalf("expected signed url, got %v", data["url"])
	}
}

func TestSignPhotoUnknownReference(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/sign", strings.NewReader(`{"reference": "missing.jpg"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	if env.Error == nil || env.Error.Code != "PHOTO_REFERENCE_UNKNOWN" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestServePhoto(t *testing.T) {
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("jpeg bytes")
	signer := newTestSigner(t)
	h, err := NewHandler(HandlerConfig{
		Lifecycle: &fakeLifecycle{},
		Photos:    photoSvc,
		Signer:    signer,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	token, err := signer.Sign("photo-1.jpg")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/files/photo-1.jpg?token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "jpeg bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestServePhotoRejectsBadToken(t *testing.T) {
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("jpeg bytes")
	h := newTestHandler(t, &fakeLifecycle{}, photoSvc, nil)

	req := httptest.NewRequest(http.MethodGet, "/files/photo-1.jpg?token=forged", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPaymentWebhook(t *testing.T) {
	svc := &fakeLifecycle{}
	resolver := &fakeResolver{
		notification: mercadopago.Notification{
			ProviderRef: "pref-1",
			Slug:        "maria-e-joao",
			Outcome:     memory.OutcomeApproved,
			PaymentID:   "555",
		},
		ok: true,
	}
	h := newTestHandler(t, svc, newFakePhotos(), resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", strings.NewReader("topic=payment&id=555"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(svc.outcomes))
	}
	got := svc.outcomes[0]
	if got.providerRef != "pref-1" || got.slug != "maria-e-joao" || got.outcome != memory.OutcomeApproved || got.paymentID != "555" {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestPaymentWebhookIgnoresOtherTopics(t *testing.T) {
	svc := &fakeLifecycle{}
	h := newTestHandler(t, svc, newFakePhotos(), &fakeResolver{ok: false})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", strings.NewReader("topic=merchant_order&id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(svc.outcomes))
	}
}

func TestPaymentWebhookRouteAbsentWithoutResolver(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without resolver, got %d", rec.Code)
	}
}

func TestSweepEndpoints(t *testing.T) {
	svc := &fakeLifecycle{sweepCount: 3, pendingCount: 5}
	h := newTestHandler(t, svc, newFakePhotos(), nil)

	// No token.
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/sweep", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodPost, "/api/maintenance/sweep", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	// Run sweep.
	req = httptest.NewRequest(http.MethodPost, "/api/maintenance/sweep", nil)
	req.Header.Set("Authorization", "Bearer sweep-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body)
	if env.Data.(map[string]interface{})["swept"] != float64(3) {
		t.Fatalf("unexpected sweep count %v", env.Data)
	}

	// Preview.
	req = httptest.NewRequest(http.MethodGet, "/api/maintenance/sweep", nil)
	req.Header.Set("Authorization", "Bearer sweep-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env = decodeEnvelope(t, rec.Body)
	if env.Data.(map[string]interface{})["pending"] != float64(5) {
		t.Fatalf("unexpected pending count %v", env.Data)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, &fakeLifecycle{}, newFakePhotos(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreatePageRateLimited(t *testing.T) {
	svc := &fakeLifecycle{
		createResult: lifecycle.CreateMemoryResult{
			Memory: memory.Memory{Slug: "maria-e-joao", PaymentStatus: memory.PaymentStatusPending},
		},
	}
	photoSvc := newFakePhotos()
	photoSvc.objects["photo-1.jpg"] = []byte("bytes")
	h := newTestHandler(t, svc, photoSvc, nil)

	var lastCode int
	for i := 0; i < rateLimitRequests+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(createBody()))
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", rateLimitRequests+1, lastCode)
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(createBody()))
	req.RemoteAddr = "203.0.113.8:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected fresh client to pass, got %d", rec.Code)
	}
}
