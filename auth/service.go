package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"brasisco/account"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals the password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
)

// Registry is the slice of the account registry the auth service needs.
// account.PGRepository satisfies it.
type Registry interface {
	CreateAccount(ctx context.Context, params account.CreateParams) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// Service handles registration and credential verification. The ledger never
// sees plaintext secrets: passwords are bcrypt-hashed here and stored as
// opaque tokens in the registry.
type Service struct {
	registry  Registry
	jwtSecret []byte
	tokenTTL  time.Duration
}

// LoginResult bundles the token and account returned after a successful login.
type LoginResult struct {
	Token   string
	Account account.Account
}

// NewService creates a new authentication service.
func NewService(registry Registry, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		registry:  registry,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new customer account with the fixed starting balance.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("auth: email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	acc, err := s.registry.CreateAccount(ctx, account.CreateParams{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
	})
	if err != nil {
		return nil, err
	}

	return &acc, nil
}

// Login verifies credentials and returns a signed JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	acc, err := s.registry.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(acc.Email, acc.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, Account: acc}, nil
}

// VerifyToken validates a JWT token and returns the account email and role.
func (s *Service) VerifyToken(tokenString string) (string, account.Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", "", fmt.Errorf("auth: invalid email in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return "", "", fmt.Errorf("auth: invalid role in token")
	}
	role := account.Role(roleStr)
	switch role {
	case account.RoleCustomer, account.RoleOperator:
	default:
		return "", "", fmt.Errorf("auth: invalid role %q in token", roleStr)
	}

	return email, role, nil
}

func (s *Service) generateToken(email string, role account.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"email": email,
		"role":  string(role),
		"exp":   now.Add(s.tokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
