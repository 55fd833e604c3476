package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goliatone/go-formsync/pkg/auth"
)

const (
	loginPath          = "/auth/login/"
	refreshPath        = "/auth/token/refresh/"
	resetRequestPath   = "/auth/password-reset/request/"
	resetSetPath       = "/auth/password-reset/set/"
	authMetricResource = "auth"
)

// User is the account returned by the login endpoint.
type User struct {
	ID    string
	Email string
	Role  string
}

type loginResponse struct {
	User struct {
		ID    any    `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Access        string `json:"access"`
	Refresh       string `json:"refresh"`
	ConsultancyID any    `json:"consultancy_id"`
	UniversityID  any    `json:"university_id"`
}

// Login exchanges credentials for tokens and stores the resulting session
// when the client has a session store.
func (c *Client) Login(ctx context.Context, email, password string) (User, auth.Session, error) {
	r, err := jsonRequest(http.MethodPost, loginPath, map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return User{}, auth.Session{}, err
	}
	r.resource = authMetricResource

	body, err := c.do(ctx, r)
	if err != nil {
		return User{}, auth.Session{}, err
	}
	var decoded loginResponse
	if err := decodeJSON(body, &decoded); err != nil {
		return User{}, auth.Session{}, err
	}
	if decoded.Access == "" {
		return User{}, auth.Session{}, &Error{Status: http.StatusOK, Message: "login response carries no access token", Body: body}
	}

	user := User{
		ID:    stringify(decoded.User.ID),
		Email: decoded.User.Email,
		Role:  decoded.User.Role,
	}
	session := auth.Session{
		AccessToken:  decoded.Access,
		RefreshToken: decoded.Refresh,
		Role:         decoded.User.Role,
	}
	switch {
	case session.Role == auth.RoleConsultancy || (session.Role == "" && decoded.ConsultancyID != nil):
		session.EntityID = stringify(decoded.ConsultancyID)
	case session.Role == auth.RoleUniversity || (session.Role == "" && decoded.UniversityID != nil):
		session.EntityID = stringify(decoded.UniversityID)
	}

	if c.auth != nil {
		if err := c.auth.Login(ctx, session); err != nil {
			return User{}, auth.Session{}, err
		}
	}
	c.logger.Info("logged in", slog.String("email", user.Email), slog.String("role", user.Role))
	return user, session, nil
}

// Logout clears the stored session. Tokens are not revoked server-side.
func (c *Client) Logout(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}
	return c.auth.Logout(ctx)
}

// refreshAccessToken is the auth.RefreshFunc of clients built with
// WithSessionStore.
func (c *Client) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	r, err := jsonRequest(http.MethodPost, refreshPath, map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", err
	}
	r.resource = authMetricResource
	body, err := c.do(ctx, r)
	if err != nil {
		return "", err
	}
	var decoded struct {
		Access string `json:"access"`
	}
	if err := decodeJSON(body, &decoded); err != nil {
		return "", err
	}
	if decoded.Access == "" {
		return "", errors.New("client: refresh response carries no access token")
	}
	return decoded.Access, nil
}

// RequestPasswordReset asks the server to email a reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	r, err := jsonRequest(http.MethodPost, resetRequestPath, map[string]string{"email": strings.TrimSpace(email)})
	if err != nil {
		return err
	}
	r.resource = authMetricResource
	_, err = c.do(ctx, r)
	return err
}

// SetPassword completes a reset with the emailed code.
func (c *Client) SetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("client: set password: empty password")
	}
	r, err := jsonRequest(http.MethodPost, resetSetPath, map[string]string{
		"email":        strings.TrimSpace(email),
		"code":         strings.TrimSpace(code),
		"new_password": newPassword,
	})
	if err != nil {
		return err
	}
	r.resource = authMetricResource
	_, err = c.do(ctx, r)
	return err
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
