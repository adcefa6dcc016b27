package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/securebank/ledger/internal/models"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type UserService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewUserService(db *sql.DB, redisClient *redis.Client) *UserService {
	return &UserService{db: db, redis: redisClient}
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,alphanum,min=3,max=64" example:"jdoe"`
	Email     string `json:"email" validate:"required,email" example:"user@example.com"`
	Password  string `json:"password" validate:"required,min=8" example:"password123"`
	FirstName string `json:"first_name" validate:"omitempty,max=100" example:"John"`
	LastName  string `json:"last_name" validate:"omitempty,max=100" example:"Doe"`
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"jdoe"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  models.User `json:"user"`
}

// Register creates a regular user. Duplicate usernames or emails are a Conflict.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	user := models.User{
		Username:  req.Username,
		Email:     strings.ToLower(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleUser,
	}
	if err := s.createUser(ctx, &user, req.Password); err != nil {
		log.Printf("[AUTH] Registration failed for %s: %v", req.Username, err)
		return nil, err
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		return nil, wrapError(KindInternal, err, "Failed to generate token")
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Username: %s", user.ID, user.Username)
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *UserService) createUser(ctx context.Context, user *models.User, password string) error {
	hashedPassword, err := hashPassword(password)
	if err != nil {
		return wrapError(KindInternal, err, "An Internal Error Occurred")
	}

	user.CreatedAt = time.Now()
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO users (username, email, first_name, last_name, password, role, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id",
		user.Username, user.Email, user.FirstName, user.LastName, hashedPassword, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return conflict(err, "Username or email already exists")
	}
	return nil
}

// Login verifies credentials. Unknown user and wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user models.User
	var hashedPassword string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, first_name, last_name, password, role, created_at FROM users WHERE username = $1",
		req.Username).Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &hashedPassword, &user.Role, &user.CreatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		log.Printf("[AUTH] User not found: %s", req.Username)
		return nil, newError(KindUnauthenticated, "Invalid credentials")
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Username)
		return nil, newError(KindUnauthenticated, "Invalid credentials")
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		return nil, wrapError(KindInternal, err, "Failed to generate token")
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	return &AuthResponse{Token: token, User: user}, nil
}

// Logout revokes token until it would have expired anyway.
func (s *UserService) Logout(ctx context.Context, token string) {
	if token == "" || s.redis == nil {
		return
	}
	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	if err := s.redis.Set(ctx, BlacklistKey(token), "1", expiry).Err(); err != nil {
		log.Printf("[AUTH] Failed to blacklist token: %v", err)
	}
}

// EnsureAdmin creates the administrator account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE username = $1", username).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	admin := models.User{Username: username, Email: strings.ToLower(email), Role: models.RoleAdmin}
	if err := s.createUser(ctx, &admin, password); err != nil {
		return err
	}
	log.Printf("[AUTH] Seeded administrator %s (ID: %d)", username, admin.ID)
	return nil
}

func BlacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func generateJWT(userID int64, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"nameid": strconv.FormatInt(userID, 10),
		"role":   role,
		"exp":    time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
