package service

import (
	"context"
	"fmt"

	"spacehub/internal/client"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

type AuthService struct {
	client *client.Client
	logger *zerolog.Logger
}

func NewAuthService(c *client.Client, logger *zerolog.Logger) *AuthService {
	return &AuthService{client: c, logger: logger}
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for a token pair. The request is anonymous;
// failure leaves no client-side state behind.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var resp loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := s.client.Post(ctx, 0, "/users/login/", body, &resp); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("login failed")
		return nil, err
	}

	role := resp.User.Role
	if role == "" {
		role = models.RoleUser
	}

	return &models.Session{
		UserEmail:    resp.User.Email,
		FullName:     resp.User.FullName,
		Role:         role,
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, email, fullName, password string) error {
	body := map[string]string{"email": email, "full_name": fullName, "password": password}
	return s.client.Post(ctx, 0, "/users/register/", body, nil)
}

// Logout invalidates the refresh token server-side. Callers clear local
// state regardless of the outcome.
func (s *AuthService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	body := map[string]string{"refresh": refreshToken}
	return s.client.Post(ctx, userID, "/users/logout/", body, nil)
}

// RefreshAccessToken trades a refresh token for a fresh access token. Issued
// anonymously so an expired access token cannot wedge the refresh itself.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refreshToken}
	if err := s.client.Post(ctx, 0, "/users/token/refresh/", body, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}
	return resp.Access, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.client.Post(ctx, 0, "/users/verify-email/", map[string]string{"token": token}, nil)
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.client.Post(ctx, 0, "/users/password-reset/", map[string]string{"email": email}, nil)
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, uidb64, token string) error {
	path := fmt.Sprintf("/password-reset-confirm/%s/%s/", uidb64, token)
	return s.client.Get(ctx, 0, path, nil)
}

func (s *AuthService) SetNewPassword(ctx context.Context, uidb64, token, password string) error {
	body := map[string]string{"uidb64": uidb64, "token": token, "password": password}
	return s.client.Patch(ctx, 0, "/users/set-new-password/", body, nil)
}
