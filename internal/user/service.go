package user

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Token verification failure taxonomy. The websocket handshake closes the
// connection on any of these; the HTTP middleware maps them all to 401.
var (
	ErrUnauthenticated   = errors.New("no token provided")
	ErrInvalidCredential = errors.New("invalid token")
	ErrUnknownIdentity   = errors.New("token valid but user not found")
	ErrEmailTaken        = errors.New("email already in use")
	ErrBadCredentials    = errors.New("invalid credentials")
)

// Store is what the service needs from persistence. *Repository satisfies
// it; tests substitute a fake.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	ListUsersExcept(ctx context.Context, id string) ([]User, error)
}

type Service struct {
	repo      Store
	jwtSecret string
}

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

func NewService(repo Store, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrBadCredentials
	}

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
	}

	if _, err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	token, err := s.signToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: token, User: u}, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrBadCredentials
	}

	u, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, ErrBadCredentials
	}

	token, err := s.signToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: token, User: u}, nil
}

func (s *Service) signToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dmchat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	})
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken resolves a raw bearer token to a user id. It is the single
// identity check for both the HTTP middleware and the websocket handshake,
// and it confirms the user row still exists so that a token signed for a
// since-deleted account is rejected.
func (s *Service) VerifyToken(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidCredential
	}

	if _, err := s.repo.GetUserByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrUnknownIdentity
		}
		return "", err
	}

	return claims.UserID, nil
}

func (s *Service) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	return s.repo.ListUsersExcept(ctx, id)
}
