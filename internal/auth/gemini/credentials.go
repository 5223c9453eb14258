// Package gemini handles Google code-assist OAuth credentials: loading from
// a base64 blob or a token file, near-expiry detection, refresh, and the
// interactive browser flow.
package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the on-disk token shape shared with the Gemini CLI. The
// expiry is a millisecond epoch.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
}

// Load reads credentials from a token file.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err = json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// Decode parses an inline base64 credentials blob.
func Decode(blob string) (*Credentials, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	var creds Credentials
	if err = json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// Save writes the credentials back to the token file.
func (c *Credentials) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// IsExpiryDateNear reports whether the token expires within the given
// window. Credentials without a usable expiry or refresh token count as
// near so a refresh is forced rather than silently suppressed.
func (c *Credentials) IsExpiryDateNear(window time.Duration) bool {
	if c == nil || c.ExpiryDate <= 0 {
		return true
	}
	expiry := time.UnixMilli(c.ExpiryDate)
	return !expiry.After(time.Now().Add(window))
}

// Token converts to the oauth2 token shape for refresh calls.
func (c *Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       time.UnixMilli(c.ExpiryDate),
	}
}

// Apply copies a refreshed oauth2 token back into the credentials.
func (c *Credentials) Apply(token *oauth2.Token) {
	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	if token.TokenType != "" {
		c.TokenType = token.TokenType
	}
	c.ExpiryDate = token.Expiry.UnixMilli()
}
