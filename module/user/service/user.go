package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Mehdi856/Chat-Project/service/storage"
	"github.com/Mehdi856/Chat-Project/tools/errs"
	jwtlib "github.com/Mehdi856/Chat-Project/tools/security"
)

// Service owns account lifecycle and credential checks. It also implements
// chat.TokenVerifier so the gateway handshake and the REST middleware share
// one verification path.
type Service struct {
	users *storage.Users
	jwt   jwtlib.Options
}

func New(users *storage.Users, jwt jwtlib.Options) *Service {
	return &Service{users: users, jwt: jwt}
}

func (s *Service) Register(ctx context.Context, email, username, password string) (*storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.ErrArgs.WithDetail("invalid email")
	}
	if username == "" {
		return nil, errs.ErrArgs.WithDetail("username required")
	}
	if len(password) < 6 {
		return nil, errs.ErrArgs.WithDetail("password too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &storage.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password and mints a bearer token. A missing account and a
// wrong password report the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, *storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errs.ErrRecordNotFind.Is(err) {
			return "", time.Time{}, nil, errs.ErrPassword.WrapMsg("login")
		}
		return "", time.Time{}, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", time.Time{}, nil, errs.ErrPassword.WrapMsg("login")
	}
	token, _, exp, err := jwtlib.Generate(s.jwt, u.Email)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, exp, u, nil
}

// VerifyCredential satisfies the gateway's auth boundary.
func (s *Service) VerifyCredential(token string) (string, error) {
	claims, err := jwtlib.Verify(s.jwt, token)
	if err != nil {
		return "", errs.ErrTokenInvalid.WrapMsg("verify")
	}
	return claims.UserID, nil
}
