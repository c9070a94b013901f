package ims

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource obtains access tokens with the OAuth2 client-credentials grant
// and reuses them until shortly before they expire. Concurrent callers share
// a single refresh.
type TokenSource struct {
	source oauth2.TokenSource
}

// NewTokenSource creates a token source for the auth server at authURL.
func NewTokenSource(authURL, clientID, clientSecret string, httpClient *http.Client) *TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     strings.TrimSuffix(authURL, "/") + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token source outlives any single request, so it refreshes on a
	// background context; httpClient.Timeout bounds each refresh.
	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return &TokenSource{source: cfg.TokenSource(ctx)}
}

// Token returns a value for the Authorization header, e.g. "Bearer abc".
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tok, err := s.source.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return "", &UpstreamError{
				Method:     http.MethodPost,
				Path:       "/token",
				StatusCode: rErr.Response.StatusCode,
				Body:       string(rErr.Body),
			}
		}
		return "", fmt.Errorf("ims token request: %w", err)
	}
	return tok.Type() + " " + tok.AccessToken, nil
}
