package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"negociaai/backend/internal/cpf"
	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/store"
)

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	store    CreditorStore
}

type CreditorStore interface {
	CreateCreditor(ctx context.Context, creditor domain.Creditor) (*domain.Creditor, error)
	GetCreditorByEmail(ctx context.Context, email string) (*domain.Creditor, error)
}

type creditorClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, creditorStore CreditorStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		store:    creditorStore,
	}
}

func (a *AuthManager) Register(ctx context.Context, req domain.CreditorRegisterRequest) (domain.LoginResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	cnpj := cpf.Digits(req.CNPJ)

	if name == "" {
		return domain.LoginResponse{}, fmt.Errorf("name is required")
	}
	if !cpf.ValidCNPJ(cnpj) {
		return domain.LoginResponse{}, fmt.Errorf("invalid cnpj")
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.LoginResponse{}, fmt.Errorf("invalid email")
	}
	if len(strings.TrimSpace(req.Password)) < 8 {
		return domain.LoginResponse{}, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("failed to hash password")
	}

	creditor, err := a.store.CreateCreditor(ctx, domain.Creditor{
		Name:         name,
		CNPJ:         cnpj,
		Email:        email,
		PasswordHash: hash,
		Policy:       domain.DefaultPolicy(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.LoginResponse{}, fmt.Errorf("email or cnpj already registered")
		}
		return domain.LoginResponse{}, err
	}

	return a.issueToken(*creditor)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	creditor, err := a.store.GetCreditorByEmail(ctx, email)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !verifyPassword(creditor.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	return a.issueToken(*creditor)
}

func (a *AuthManager) issueToken(creditor domain.Creditor) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := creditorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   creditor.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "negociaai",
		},
		Email: creditor.Email,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		CreditorID:  creditor.ID,
		Name:        creditor.Name,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &creditorClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{CreditorID: sub, Email: claims.Email}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
