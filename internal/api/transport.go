package api

import (
	"net/http"

	"golang.org/x/oauth2"
)

// authTransport attaches the current bearer token to every request that
// passes through it. The token is read per request, so a login or logout
// takes effect on the next call.
type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	token := t.tokens.Token()
	if token == "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(clone)
	return base.RoundTrip(clone)
}
