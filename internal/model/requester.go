package model

// AuthMethod records how a User requester authenticated: via a
// server-issued token (carrying the token node's id) or via an OIDC
// subject string.
type AuthMethod struct {
	ServerToken *ID
	OIDCSubject string
}

// RequesterKind distinguishes the shapes a verified token can yield.
type RequesterKind uint8

const (
	RequesterUser RequesterKind = iota
	RequesterServiceAccount
	RequesterEndpoint
)

// Requester is the identity C7 yields from a verified bearer token,
// consumed by C8 when evaluating permission contexts.
type Requester struct {
	Kind RequesterKind

	// Populated when Kind == RequesterUser.
	UserID ID
	Auth   AuthMethod

	// Populated when Kind == RequesterServiceAccount.
	ServiceAccountID ID
	TokenID          ID
	GroupID          ID

	// Populated when Kind == RequesterEndpoint: the registered
	// endpoint's own id, verified against its IssuerEndpoint key.
	EndpointID ID
}

func (r Requester) IsUser() bool { return r.Kind == RequesterUser }
