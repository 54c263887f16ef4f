package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/givebridge/donation-system/internal/core/domain"
)

type memAuthRepo struct {
	byEmail map[string]*domain.User
	nextID  int
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{byEmail: make(map[string]*domain.User)}
}

func (r *memAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memAuthRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, domain.ErrUserExists
	}
	r.nextID++
	clone := *user
	clone.ID = fmt.Sprintf("usr-%d", r.nextID)
	r.byEmail[user.Email] = &clone
	out := clone
	return &out, nil
}

func TestAuthRegister_Success(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	user, err := svc.Register(context.Background(), "Hope Kitchen", "ops@hopekitchen.org", "s3cret-pass", domain.RoleNGO)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Error("expected an assigned user id")
	}
	if user.Role != domain.RoleNGO {
		t.Errorf("expected role ngo, got %s", user.Role)
	}
	if user.PasswordHash == "s3cret-pass" {
		t.Error("password must not be stored in plaintext")
	}
}

func TestAuthRegister_RejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	if _, err := svc.Register(context.Background(), "X", "x@y.z", "password1", "admin"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthRegister_DuplicateEmail(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	if _, err := svc.Register(context.Background(), "A", "dup@x.org", "password1", domain.RoleDonor); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "B", "dup@x.org", "password2", domain.RoleDonor); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthLogin_Success(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	registered, err := svc.Register(context.Background(), "Vol", "vol@x.org", "password1", domain.RoleVolunteer)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, user, err := svc.Login(context.Background(), "vol@x.org", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("login returned wrong user: %s", user.ID)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != registered.ID {
		t.Errorf("sub claim: expected %s, got %v", registered.ID, claims["sub"])
	}
	if claims["role"] != domain.RoleVolunteer {
		t.Errorf("role claim: expected volunteer, got %v", claims["role"])
	}
}

func TestAuthLogin_WrongPassword(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	if _, err := svc.Register(context.Background(), "Vol", "vol@x.org", "password1", domain.RoleVolunteer); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "vol@x.org", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthLogin_UnknownEmail(t *testing.T) {
	svc := NewAuthService(newMemAuthRepo(), "secret", time.Hour)

	if _, _, err := svc.Login(context.Background(), "nobody@x.org", "password1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
