package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"exampattern/internal/config"
	"exampattern/internal/models/db_models"
)

// OAuthProvider couples an oauth2 config with the endpoint that returns the
// signed-in user's profile.
type OAuthProvider struct {
	Name       db_models.AuthProvider
	Config     *oauth2.Config
	ProfileURL string
}

type oauthProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewOAuthProviders builds the providers that have credentials configured.
func NewOAuthProviders(cfg config.OAuthConfig, baseURL string) map[db_models.AuthProvider]*OAuthProvider {
	providers := map[db_models.AuthProvider]*OAuthProvider{}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers[db_models.ProviderGoogle] = &OAuthProvider{
			Name: db_models.ProviderGoogle,
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  baseURL + "/auth/google/callback",
				Scopes:       []string{"openid", "profile", "email"},
				Endpoint:     google.Endpoint,
			},
			ProfileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		}
	}
	if cfg.FacebookClientID != "" && cfg.FacebookClientSecret != "" {
		providers[db_models.ProviderFacebook] = &OAuthProvider{
			Name: db_models.ProviderFacebook,
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				RedirectURL:  baseURL + "/auth/facebook/callback",
				Scopes:       []string{"email", "public_profile"},
				Endpoint:     facebook.Endpoint,
			},
			ProfileURL: "https://graph.facebook.com/me?fields=id,name,email",
		}
	}
	return providers
}

func (p *OAuthProvider) fetchProfile(ctx context.Context, code string) (*oauthProfile, error) {
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", p.Name, err)
	}

	resp, err := p.Config.Client(ctx, tok).Get(p.ProfileURL)
	if err != nil {
		return nil, fmt.Errorf("%s profile request: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s profile request: status %d: %s", p.Name, resp.StatusCode, body)
	}

	var profile oauthProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%s profile decode: %w", p.Name, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%s profile missing id", p.Name)
	}
	return &profile, nil
}
