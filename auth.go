// auth.go
// -------
// Credential implementations for the upstream API. The service authenticates
// with a static api-key header; Bearer tokens and OAuth2 token sources are
// supported for deployments fronted by a token-issuing gateway.
package hyperbridge

import (
	"fmt"

	"golang.org/x/oauth2"
)

// APIKeyCredential sends the upstream's native api-key header.
type APIKeyCredential struct {
	Key string
}

func (c *APIKeyCredential) Apply(headers map[string]string) error {
	if c.Key == "" {
		return fmt.Errorf("api key is empty")
	}
	headers["api-key"] = c.Key
	return nil
}

// BearerCredential sends a static Authorization: Bearer header.
type BearerCredential struct {
	Token string
}

func (c *BearerCredential) Apply(headers map[string]string) error {
	if c.Token == "" {
		return fmt.Errorf("bearer token is empty")
	}
	headers["Authorization"] = "Bearer " + c.Token
	return nil
}

// OAuth2Credential draws tokens from an oauth2.TokenSource, so refresh flows
// are handled by the source. Wrap the source with oauth2.ReuseTokenSource to
// avoid a token fetch per attempt.
type OAuth2Credential struct {
	Source oauth2.TokenSource
}

func (c *OAuth2Credential) Apply(headers map[string]string) error {
	tok, err := c.Source.Token()
	if err != nil {
		return fmt.Errorf("fetch oauth2 token: %w", err)
	}
	headers["Authorization"] = tok.Type() + " " + tok.AccessToken
	return nil
}
