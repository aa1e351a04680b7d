package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nutriplan/internal/domain"
)

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	password := "testpass123"
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "testuser", PasswordHash: string(hash)}, nil
		},
	}

	var created domain.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, s domain.Session) error {
			created = s
			return nil
		},
	}

	svc := NewAuthService(users, sessions, time.Hour)
	token, err := svc.Login(ctx, "testuser", password, "agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" || created.Token != token {
		t.Errorf("expected stored token %q, got %q", token, created.Token)
	}
	if created.UserID != 1 || created.UserAgent != "agent" || created.IP != "10.0.0.1" {
		t.Errorf("unexpected session %+v", created)
	}
	if got := created.ExpiresAt.Sub(created.CreatedAt); got != time.Hour {
		t.Errorf("expected 1h ttl, got %v", got)
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "testuser", PasswordHash: string(hash)}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	if _, err := svc.Login(ctx, "testuser", "wrongpass", "", ""); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_SSOOnlyUser(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: username}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	if _, err := svc.Login(context.Background(), "sso", "", "", ""); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_ValidateSession_Valid(t *testing.T) {
	ctx := context.Background()
	token := "validtoken"

	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: token, UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "testuser"}, nil
		},
	}

	svc := NewAuthService(users, sessions, 0)
	user, err := svc.ValidateSession(ctx, token, "agent")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %s", user.Username)
	}
}

func TestAuthService_ValidateSession_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn time.Duration
		agent     string
	}{
		{"expired", -time.Hour, "agent"},
		{"user agent changed", time.Hour, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted := false
			sessions := &mockSessionRepo{
				getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
					return &domain.Session{Token: tok, UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(tt.expiresIn)}, nil
				},
				deleteFn: func(ctx context.Context, tok string) error {
					deleted = true
					return nil
				},
			}

			svc := NewAuthService(&mockUserRepo{}, sessions, 0)
			if _, err := svc.ValidateSession(context.Background(), "tok", tt.agent); err != ErrSessionExpired {
				t.Errorf("expected ErrSessionExpired, got %v", err)
			}
			if !deleted {
				t.Error("expected session to be deleted")
			}
		})
	}
}

func TestAuthService_ValidateSession_Unknown(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, 0)
	if _, err := svc.ValidateSession(context.Background(), "nope", ""); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_CreateInitialUser_Success(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string) (*domain.User, error) {
			if username != "admin" {
				t.Errorf("expected username 'admin', got %s", username)
			}
			if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte("password123")) != nil {
				t.Error("password hash does not match")
			}
			return &domain.User{ID: 1, Username: username}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	if err := svc.CreateInitialUser(context.Background(), "admin", "password123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthService_CreateInitialUser_UsersExist(t *testing.T) {
	users := &mockUserRepo{
		countFn: func(ctx context.Context) (int, error) { return 1, nil },
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	if err := svc.CreateInitialUser(context.Background(), "admin", "password123"); !errors.Is(err, ErrUsersExist) {
		t.Errorf("expected ErrUsersExist, got %v", err)
	}
}

func TestAuthService_CreateInitialUser_MissingFields(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, 0)
	if err := svc.CreateInitialUser(context.Background(), " ", "pw"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_ValidateForwardAuth_ExistingUser(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "ssouser"}, nil
		},
		createFn: func(ctx context.Context, username, passwordHash string) (*domain.User, error) {
			t.Error("existing user should not be recreated")
			return nil, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	user, err := svc.ValidateForwardAuth(context.Background(), "ssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "ssouser" {
		t.Errorf("expected username 'ssouser', got %s", user.Username)
	}
}

func TestAuthService_ValidateForwardAuth_NewUser(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string) (*domain.User, error) {
			return &domain.User{ID: 2, Username: username}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, 0)
	user, err := svc.ValidateForwardAuth(context.Background(), "newssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != 2 {
		t.Errorf("expected provisioned user 2, got %d", user.ID)
	}
}

func TestAuthService_ValidateForwardAuth_Empty(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, 0)
	if _, err := svc.ValidateForwardAuth(context.Background(), ""); err == nil {
		t.Error("expected error for empty header")
	}
}

func TestAuthService_LoginWithUser_CreateRace(t *testing.T) {
	calls := 0
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, domain.ErrNotFound
			}
			return &domain.User{ID: 7, Username: username}, nil
		},
		createFn: func(ctx context.Context, username, passwordHash string) (*domain.User, error) {
			return nil, domain.ErrDuplicate
		},
	}

	var userID int64
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, s domain.Session) error {
			userID = s.UserID
			return nil
		},
	}

	svc := NewAuthService(users, sessions, 0)
	if _, err := svc.LoginWithUser(context.Background(), "racer", "agent", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if userID != 7 {
		t.Errorf("expected session for user 7, got %d", userID)
	}
}
