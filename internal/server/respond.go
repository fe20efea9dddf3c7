package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
	"github.com/louisbranch/everpage/internal/platform/errors/i18n"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes one success envelope.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps a domain error to its HTTP status and a message localized
// by the request's Accept-Language header. Errors without a domain code are
// logged and masked as internal failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeUnknown
	metadata := map[string]string(nil)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		code = appErr.Code
		metadata = appErr.Metadata
	}

	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}

	locale := i18n.MatchLocale(r.Header.Get("Accept-Language"))
	message := i18n.GetCatalog(locale).Format(i18n.Code(code), metadata)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := envelope{Error: &errorBody{Code: string(code), Message: message}}
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		log.Printf("encode error response: %v", encodeErr)
	}
}
