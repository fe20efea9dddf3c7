package memory

import (
	"encoding/base64"
	"encoding/json"
	"time"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

// DraftPayload is the client-encoded preview payload carried in the checkout
// redirect. It lets the confirmation page render content before the webhook
// lands, without the server storing anything extra.
type DraftPayload struct {
	Title                 string     `json:"title"`
	LoveLetterContent     string     `json:"love_letter_content"`
	RelationshipStartDate *time.Time `json:"relationship_start_date,omitempty"`
	YouTubeMusicURL       string     `json:"youtube_music_url,omitempty"`
	Photos                []struct {
		Reference string `json:"reference"`
		Caption   string `json:"caption,omitempty"`
	} `json:"photos,omitempty"`
}

// DecodeDraftPayload decodes a base64url JSON draft payload. Any malformed
// input maps to a single client error code; draft data is untrusted.
func DecodeDraftPayload(encoded string) (DraftPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Clients sometimes send padded values.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return DraftPayload{}, apperrors.Wrap(apperrors.CodeMemoryDraftPayloadBroken, "decode draft payload", err)
		}
	}

	var payload DraftPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return DraftPayload{}, apperrors.Wrap(apperrors.CodeMemoryDraftPayloadBroken, "unmarshal draft payload", err)
	}
	if payload.Title == "" {
		return DraftPayload{}, apperrors.New(apperrors.CodeMemoryDraftPayloadBroken, "draft payload is missing a title")
	}
	return payload, nil
}
