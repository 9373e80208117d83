package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeStore is an in-memory Store keyed by email and id.
type fakeStore struct {
	byEmail map[string]*User
	byID    map[string]*User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byEmail: make(map[string]*User),
		byID:    make(map[string]*User),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	var out []User
	for _, u := range f.byID {
		if u.ID != id {
			out = append(out, *u)
		}
	}
	return out, nil
}

const testSecret = "test-secret"

func register(t *testing.T, s *Service, email string) *AuthResponse {
	t.Helper()
	res, err := s.Register(context.Background(), &RegisterRequest{
		Username: "someone",
		Email:    email,
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res
}

// TestVerifyTokenRoundTrip verifies a freshly issued token resolves back to
// the user it was signed for.
func TestVerifyTokenRoundTrip(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)
	res := register(t, s, "a@example.com")

	userID, err := s.VerifyToken(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if userID != res.User.ID {
		t.Errorf("resolved %q, want %q", userID, res.User.ID)
	}
}

// TestVerifyTokenMissing verifies an absent credential fails with
// ErrUnauthenticated.
func TestVerifyTokenMissing(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)

	if _, err := s.VerifyToken(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

// TestVerifyTokenMalformedOrForged verifies garbage tokens and tokens
// signed with another secret fail with ErrInvalidCredential.
func TestVerifyTokenMalformedOrForged(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"})
	forgedStr, err := forged.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatal(err)
	}

	for _, raw := range []string{"not-a-token", forgedStr} {
		if _, err := s.VerifyToken(context.Background(), raw); !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("token %q: err = %v, want ErrInvalidCredential", raw, err)
		}
	}
}

// TestVerifyTokenExpired verifies an expired token is rejected as an
// invalid credential.
func TestVerifyTokenExpired(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	raw, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.VerifyToken(context.Background(), raw); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential", err)
	}
}

// TestVerifyTokenUnknownIdentity verifies a well-signed token whose user
// record no longer exists fails with ErrUnknownIdentity, not a generic
// credential error.
func TestVerifyTokenUnknownIdentity(t *testing.T) {
	store := newFakeStore()
	s := NewService(store, testSecret)
	res := register(t, s, "a@example.com")

	delete(store.byID, res.User.ID)
	delete(store.byEmail, res.User.Email)

	if _, err := s.VerifyToken(context.Background(), res.AccessToken); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("err = %v, want ErrUnknownIdentity", err)
	}
}

// TestLoginChecksPassword verifies login succeeds against the bcrypt hash
// and rejects a wrong password without leaking which part failed.
func TestLoginChecksPassword(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)
	register(t, s, "a@example.com")

	if _, err := s.Login(context.Background(), &LoginRequest{Email: "a@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.Login(context.Background(), &LoginRequest{Email: "a@example.com", Password: "wrong"}); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password: err = %v, want ErrBadCredentials", err)
	}
	if _, err := s.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "hunter22"}); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown email: err = %v, want ErrBadCredentials", err)
	}
}

// TestRegisterRejectsDuplicateEmail verifies a second registration with the
// same email fails with ErrEmailTaken.
func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := NewService(newFakeStore(), testSecret)
	register(t, s, "a@example.com")

	_, err := s.Register(context.Background(), &RegisterRequest{
		Username: "other",
		Email:    "a@example.com",
		Password: "pw",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}
