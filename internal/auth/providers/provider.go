// Package providers implements federated identity verification against
// external OAuth providers. A provider exchanges an authorization code
// or ID credential for a verified email address; account lookup and
// session issuance stay with the caller.
package providers

import "context"

// Identity is the provider-asserted identity of an external user.
type Identity struct {
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier exchanges an authorization code for a verified identity.
type Verifier interface {
	// AuthURL builds the provider's authorization URL carrying the
	// optional opaque state value.
	AuthURL(state string) (string, error)
	// Exchange redeems an authorization code for the asserted identity.
	Exchange(ctx context.Context, code string) (Identity, error)
}
