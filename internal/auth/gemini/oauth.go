package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/llmgate/llmgate/internal/browser"
)

// Installed-app OAuth client for the Gemini CLI; the secret is not
// confidential for this client type.
const (
	oauthClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	oauthClientSecret = "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"

	browserFlowTimeout  = 5 * time.Minute
	browserPollInterval = 2 * time.Second
)

var oauthScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSecret,
		Scopes:       oauthScopes,
		Endpoint:     google.Endpoint,
	}
}

// RefreshCredentials exchanges the refresh token for a new access token and
// updates creds in place.
func RefreshCredentials(ctx context.Context, creds *Credentials, client *http.Client) error {
	if creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	token, err := oauthConfig().TokenSource(ctx, creds.Token()).Token()
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	creds.Apply(token)
	return nil
}

// WaitForBrowserFlow opens the consent URL and polls the credential file
// until an external helper writes usable credentials there, or the flow
// times out.
func WaitForBrowserFlow(ctx context.Context, authURL, credsPath string) (*Credentials, error) {
	if browser.IsAvailable() {
		if err := browser.Open(authURL); err != nil {
			log.Warnf("could not open browser: %v", err)
			log.Infof("visit this URL to authorize: %s", authURL)
		}
	} else {
		log.Infof("visit this URL to authorize: %s", authURL)
	}

	deadline := time.NewTimer(browserFlowTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(browserPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("authorization timed out after %s", browserFlowTimeout)
		case <-ticker.C:
			creds, err := Load(credsPath)
			if err != nil {
				continue
			}
			if creds.AccessToken != "" {
				return creds, nil
			}
		}
	}
}

// AuthURL builds the consent URL for the interactive flow.
func AuthURL(state string) string {
	return oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}
