// Package noop provides a payment gateway that approves every checkout.
// It backs local development and deployments that skip payment entirely.
package noop

import (
	"context"

	"github.com/louisbranch/everpage/internal/lifecycle"
)

// Gateway approves checkouts without an external provider.
type Gateway struct {
	// SiteBaseURL builds the fake checkout URL pointing straight at the page.
	SiteBaseURL string
}

// CreatePreference returns an auto-approved preference; the lifecycle service
// settles the record immediately.
func (g *Gateway) CreatePreference(_ context.Context, req lifecycle.PreferenceRequest) (lifecycle.Preference, error) {
	return lifecycle.Preference{
		ID:           "noop-" + req.MemoryID,
		CheckoutURL:  g.SiteBaseURL + "/" + req.Slug,
		AutoApproved: true,
	}, nil
}

var _ lifecycle.Gateway = (*Gateway)(nil)
