package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matheus3301/souk/internal/httpapi"
)

// LoginResult is what the login and OAuth callback endpoints return.
type LoginResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// AuthAPI covers account endpoints.
type AuthAPI struct {
	c *httpapi.Client
}

// NewAuthAPI creates the auth service.
func NewAuthAPI(c *httpapi.Client) *AuthAPI {
	return &AuthAPI{c: c}
}

// Login exchanges credentials for a token pair.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := a.c.Do(ctx, httpapi.Request{
		Method: http.MethodPost,
		Path:   "/auth/login/",
		Body:   map[string]string{"email": email, "password": password},
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. The backend sends a verification email.
func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var out User
	err := a.c.Do(ctx, httpapi.Request{
		Method: http.MethodPost,
		Path:   "/auth/register/",
		Body:   req,
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout blacklists the refresh token server-side.
func (a *AuthAPI) Logout(ctx context.Context, refresh string) error {
	return a.c.Post(ctx, "/auth/logout/", map[string]string{"refresh": refresh}, nil)
}

// Me returns the signed-in user.
func (a *AuthAPI) Me(ctx context.Context) (*User, error) {
	var out User
	if err := a.c.Get(ctx, "/auth/me/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OAuthURL returns the identity provider's authorization URL.
func (a *AuthAPI) OAuthURL(ctx context.Context, provider, redirectURI string) (string, error) {
	q := url.Values{}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	var out struct {
		AuthorizationURL string `json:"authorization_url"`
		URL              string `json:"url"`
	}
	err := a.c.Do(ctx, httpapi.Request{
		Method: http.MethodGet,
		Path:   "/auth/oauth/" + url.PathEscape(provider) + "/url/",
		Query:  q,
		NoAuth: true,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AuthorizationURL != "" {
		return out.AuthorizationURL, nil
	}
	return out.URL, nil
}

// OAuthCallback completes the provider flow with the code it returned.
func (a *AuthAPI) OAuthCallback(ctx context.Context, provider, code, state string) (*LoginResult, error) {
	var out LoginResult
	err := a.c.Do(ctx, httpapi.Request{
		Method: http.MethodPost,
		Path:   "/auth/oauth/" + url.PathEscape(provider) + "/callback/",
		Body:   map[string]string{"code": code, "state": state},
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks the backend to send another verification email.
func (a *AuthAPI) ResendVerification(ctx context.Context, email string) error {
	return a.c.Do(ctx, httpapi.Request{
		Method: http.MethodPost,
		Path:   "/auth/verify-email/resend/",
		Body:   map[string]string{"email": email},
		NoAuth: true,
	}, nil)
}
