package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/petermyo/DecentralizeFileShare/config"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"golang.org/x/oauth2"
)

// defaultTokenLifetime is assumed when a token response carries no expires_in.
// Google access tokens last an hour.
const defaultTokenLifetime = time.Hour

// Scopes requested at sign-in. drive.file limits access to files this app created.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// OAuth performs the authorization-code and refresh-token exchanges.
type OAuth struct {
	conf        *oauth2.Config
	client      *http.Client
	userInfoURL string
}

// NewOAuth builds an OAuth client from the google config section.
func NewOAuth(cfg config.GoogleConfig, client *http.Client) *OAuth {
	if client == nil {
		client = NewHTTPClient()
	}
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client:      client,
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL returns the consent URL. Offline access with a forced consent
// prompt makes the provider issue a refresh token every time.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (*provider.Token, error) {
	tok, err := o.conf.Exchange(o.withClient(ctx), code)
	if err != nil {
		return nil, mapTokenError("exchange code", err)
	}
	return toToken(tok), nil
}

// Refresh trades a refresh token for a new access token.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*provider.Token, error) {
	src := o.conf.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapTokenError("refresh token", err)
	}
	return toToken(tok), nil
}

// Identify looks up the profile behind accessToken.
func (o *OAuth) Identify(ctx context.Context, accessToken string) (*provider.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", provider.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", provider.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: userinfo returned 401", provider.ErrGrantRevoked)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: userinfo returned %d", provider.ErrUpstream, resp.StatusCode)
	}

	var profile struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", provider.ErrUpstream, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: userinfo has no id", provider.ErrUpstream)
	}
	return &provider.Identity{ID: profile.ID, Name: profile.Name, Picture: profile.Picture}, nil
}

func (o *OAuth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.client)
}

func toToken(tok *oauth2.Token) *provider.Token {
	expiresIn := defaultTokenLifetime
	if !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	return &provider.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

func mapTokenError(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		status := rErr.Response.StatusCode
		if rErr.ErrorCode == "invalid_grant" || status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: %v", provider.ErrGrantRevoked, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", provider.ErrUpstream, op, err)
}
