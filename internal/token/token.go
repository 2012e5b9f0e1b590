// Package token implements bearer token issuance and verification
// (C7): signs server tokens with Ed25519, verifies both server and
// OIDC tokens against the issuer registry (C6), and resolves a
// verified token to a Requester by walking the graph (C4).
package token

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/issuer"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/search"
)

// clockSkew is the maximum tolerated drift when checking exp, per the
// token contract.
const clockSkew = 30 * time.Second

// claims is the JWT claim set carried by both server and OIDC tokens.
// aud is typed as jwt.ClaimStrings so it accepts either a bare string
// or an array on the wire.
type claims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies bearer tokens.
type Service struct {
	issuers    *issuer.Registry
	selfIssuer string
	signingKey ed25519.PrivateKey
	keyID      string
}

func NewService(issuers *issuer.Registry, selfIssuer, keyID string, signingKey ed25519.PrivateKey) *Service {
	return &Service{issuers: issuers, selfIssuer: selfIssuer, keyID: keyID, signingKey: signingKey}
}

// Issue mints a server token bound to tokenID (the Token node's
// external id), expiring after ttl.
func (s *Service) Issue(tokenID model.ID, ttl time.Duration, audiences []string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.selfIssuer,
			Subject:   tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if len(audiences) > 0 {
		c.Audience = audiences
	}
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	t.Header["kid"] = s.keyID
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", apierror.Wrap(apierror.KindDatabaseError, err, "signing token")
	}
	return signed, nil
}

// Verify validates raw as a bearer token and resolves it to a
// Requester by consulting rtxn's graph snapshot. rtxn and rg must be
// taken from the same point in time (the controller opens both
// together for every request).
func (s *Service) Verify(ctx context.Context, raw string, rtxn *kv.ROTxn, rg *graph.RGuard) (model.Requester, error) {
	var iss string
	var kid string

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	unverified, _, err := parser.ParseUnverified(raw, &claims{})
	if err != nil {
		return model.Requester{}, apierror.Wrap(apierror.KindUnauthorized, err, "malformed token")
	}
	if k, ok := unverified.Header["kid"].(string); ok {
		kid = k
	} else {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "token missing kid header")
	}
	if c, ok := unverified.Claims.(*claims); ok {
		iss = c.Issuer
	}
	if iss == "" {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "token missing iss claim")
	}

	key, ok := s.issuers.Find(iss, kid)
	if !ok {
		if refreshErr := s.issuers.Refresh(ctx, iss); refreshErr != nil && refreshErr != apierror.RefreshTooSoon {
			return model.Requester{}, apierror.New(apierror.KindUnauthorized, "unknown issuer or key")
		}
		key, ok = s.issuers.Find(iss, kid)
		if !ok {
			return model.Requester{}, apierror.New(apierror.KindUnauthorized, "unknown issuer or key")
		}
	}

	audiences, _ := s.issuers.Audiences(iss)

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"EdDSA", "RS256", "ES256"}), jwt.WithLeeway(clockSkew))
	if err != nil {
		return model.Requester{}, apierror.Wrap(apierror.KindUnauthorized, err, "token verification failed")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "token invalid")
	}
	if len(audiences) > 0 && !audienceMatches(c.Audience, audiences) {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "audience mismatch")
	}

	info, hasInfo := s.issuers.Info(iss)
	if hasInfo && info.Type == model.IssuerServer {
		return s.resolveServerToken(c.Subject, rtxn, rg)
	}
	if hasInfo && info.Type == model.IssuerEndpoint {
		return s.resolveEndpointToken(c.Subject)
	}
	return model.Requester{
		Kind: model.RequesterUser,
		Auth: model.AuthMethod{OIDCSubject: c.Subject},
	}, nil
}

// resolveEndpointToken implements the GlobalProxy half of spec §4.8:
// a request "signed by a registered endpoint key" is a token whose
// issuer is registered as IssuerEndpoint and whose subject is that
// endpoint's own id — endpoints authenticate as themselves, not
// through a Token node, since Endpoint is referenced only as an edge
// target and a resource's location entries, never a graph node.
func (s *Service) resolveEndpointToken(sub string) (model.Requester, error) {
	endpointID, err := model.ParseID(sub)
	if err != nil {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "malformed subject")
	}
	return model.Requester{Kind: model.RequesterEndpoint, EndpointID: endpointID}, nil
}

func audienceMatches(got jwt.ClaimStrings, allowed []string) bool {
	for _, g := range got {
		for _, a := range allowed {
			if g == a {
				return true
			}
		}
	}
	return false
}

// resolveServerToken implements spec §4.7 step 4: the node at sub
// must be a Token with exactly one outgoing OwnedByUser edge to a
// User or ServiceAccount; a ServiceAccount must additionally belong
// to exactly one Group.
func (s *Service) resolveServerToken(sub string, rtxn *kv.ROTxn, rg *graph.RGuard) (model.Requester, error) {
	tokenExtID, err := model.ParseID(sub)
	if err != nil {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "malformed subject")
	}
	tokenIdx, ok, err := search.GetIdx(rtxn, tokenExtID)
	if err != nil {
		return model.Requester{}, apierror.Wrap(apierror.KindDatabaseError, err, "resolving token subject")
	}
	if !ok {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "unknown token")
	}
	variant, ok := rg.Variant(tokenIdx)
	if !ok || variant != model.VariantToken {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "subject is not a token")
	}

	owners := rg.Neighbors(tokenIdx, graph.Outgoing, map[model.EdgeType]bool{model.EdgeOwnedByUser: true})
	if len(owners) != 1 {
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "token has no owner")
	}
	ownerIdx := owners[0].Idx
	ownerVariant, _ := rg.Variant(ownerIdx)

	ownerNode, ok, err := search.GetDocument(rtxn, ownerIdx)
	if err != nil || !ok {
		return model.Requester{}, apierror.Wrap(apierror.KindDatabaseError, err, "loading token owner")
	}

	switch ownerVariant {
	case model.VariantUser:
		return model.Requester{
			Kind:   model.RequesterUser,
			UserID: ownerNode.GetID(),
			Auth:   model.AuthMethod{ServerToken: &tokenExtID},
		}, nil
	case model.VariantServiceAccount:
		groupIdx, err := exactlyOneGroup(rg, ownerIdx)
		if err != nil {
			return model.Requester{}, err
		}
		groupNode, ok, err := search.GetDocument(rtxn, groupIdx)
		if err != nil || !ok {
			return model.Requester{}, apierror.Wrap(apierror.KindDatabaseError, err, "loading service account group")
		}
		return model.Requester{
			Kind:             model.RequesterServiceAccount,
			ServiceAccountID: ownerNode.GetID(),
			TokenID:          tokenExtID,
			GroupID:          groupNode.GetID(),
		}, nil
	default:
		return model.Requester{}, apierror.New(apierror.KindUnauthorized, "token owner has unexpected variant")
	}
}

// exactlyOneGroup finds the single Group the service account is a
// member of. Membership is modeled as a permission edge from the
// group to the service account in this catalog (see model.EdgeType),
// so the walk is over incoming permission edges.
func exactlyOneGroup(rg *graph.RGuard, serviceAccountIdx model.Idx) (model.Idx, error) {
	in := rg.Neighbors(serviceAccountIdx, graph.Incoming, nil)
	var groupIdx model.Idx
	count := 0
	for _, n := range in {
		if !n.Kind.IsPermission() {
			continue
		}
		variant, ok := rg.Variant(n.Idx)
		if !ok || variant != model.VariantGroup {
			continue
		}
		groupIdx = n.Idx
		count++
	}
	if count != 1 {
		return 0, apierror.New(apierror.KindUnauthorized, "service account must belong to exactly one group")
	}
	return groupIdx, nil
}
