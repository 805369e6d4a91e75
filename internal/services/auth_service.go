package services

import (
	"context"
	"strings"
	"time"

	"gocart/internal/auth"
	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/repositories"
	"gocart/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	Users     repositories.UserStore
	Signer    auth.Signer
	RequestID string
}

type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login checks the bcrypt hash and issues a bearer token.
func (s AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, domain.ValidationError{Field: "username", Msg: "username and password required"}
	}
	u, err := s.Users.UserByUsername(ctx, username)
	if err != nil {
		if domain.IsNotFound(err) {
			utils.LogEvent(s.RequestID, "auth", "login", "unknown user")
			return LoginResult{}, domain.UnauthorizedError{Msg: "invalid credentials"}
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		utils.LogEvent(s.RequestID, "auth", "login", "bad password user="+u.Username)
		return LoginResult{}, domain.UnauthorizedError{Msg: "invalid credentials"}
	}
	token, err := s.Signer.Issue(domain.RequestContext{UserID: u.ID, Username: u.Username, Role: u.Role}, time.Now())
	if err != nil {
		return LoginResult{}, domain.InternalError{Msg: "failed to issue token", Err: err}
	}
	utils.LogEvent(s.RequestID, "auth", "login", "user="+u.Username+" role="+u.Role)
	return LoginResult{Token: token, User: u}, nil
}
