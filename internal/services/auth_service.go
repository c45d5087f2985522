package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// AuthService establishes sessions from wallet signatures. A signed session
// token (HS256 JWT) replaces any notion of a client-assembled opaque token;
// downstream handlers only ever see the validated user ID.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
}

// LoginRequest is the wallet login payload
// @Description Wallet login request structure
type LoginRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,len=42,startswith=0x"`
	Signature     string `json:"signature" validate:"required"`
	Message       string `json:"message" validate:"required,max=1000"`
}

// AuthResponse is the successful login response
// @Description Authentication response structure
type AuthResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Token   string `json:"token"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Nonce issues a one-time login nonce
// @Summary Get login nonce
// @Description Issue a one-time nonce the wallet must include in the signed login message
// @Tags auth
// @Produce json
// @Param walletAddress query string true "Wallet address"
// @Success 200 {object} object{nonce=string,message=string}
// @Failure 400 {object} ErrorResponse
// @Router /auth/nonce [get]
func (s *AuthService) Nonce(w http.ResponseWriter, r *http.Request) {
	walletAddress := strings.ToLower(r.URL.Query().Get("walletAddress"))
	if len(walletAddress) != 42 || !strings.HasPrefix(walletAddress, "0x") {
		SendErrorResponse(w, "Invalid wallet address", http.StatusBadRequest, nil)
		return
	}

	nonce := generateNonce()
	if s.redis != nil {
		key := fmt.Sprintf("auth_nonce:%s", walletAddress)
		if err := s.redis.Set(r.Context(), key, nonce, 10*time.Minute).Err(); err != nil {
			log.Printf("[AUTH] Failed to store nonce for %s: %v", walletAddress, err)
			SendErrorResponse(w, "Failed to issue nonce", http.StatusInternalServerError, nil)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"nonce":   nonce,
		"message": fmt.Sprintf("Sign in to Bookmarks\n\nNonce: %s", nonce),
	})
}

// Login verifies a wallet signature and issues a session token
// @Summary Login with wallet signature
// @Description Verify an EIP-191 personal_sign signature, create the user on first login, and return a signed session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	walletAddress := strings.ToLower(req.WalletAddress)

	if s.redis != nil {
		key := fmt.Sprintf("auth_nonce:%s", walletAddress)
		nonce, err := s.redis.Get(r.Context(), key).Result()
		if err != nil || !strings.Contains(req.Message, nonce) {
			log.Printf("[AUTH] Nonce check failed for %s", walletAddress)
			SendErrorResponse(w, "Invalid or expired nonce", http.StatusUnauthorized, nil)
			return
		}
		s.redis.Del(r.Context(), key)
	}

	if !verifyWalletSignature(walletAddress, req.Message, req.Signature) {
		log.Printf("[AUTH] Signature verification failed for %s", walletAddress)
		SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	userID, err := s.upsertUser(r.Context(), walletAddress)
	if err != nil {
		log.Printf("[AUTH] User upsert failed for %s: %v", walletAddress, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(userID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %s (%s)", userID, walletAddress)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, UserID: userID, Token: token})
}

func (s *AuthService) upsertUser(ctx context.Context, walletAddress string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE wallet_address = $1`, walletAddress).Scan(&userID)
	if err == sql.ErrNoRows {
		userID = uuid.NewString()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (id, wallet_address, last_login, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW(), NOW())`,
			userID, walletAddress)
		if err != nil {
			return "", err
		}
		log.Printf("[AUTH] Created user %s for wallet %s", userID, walletAddress)
		return userID, nil
	}
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	return userID, err
}

// verifyWalletSignature checks an EIP-191 personal_sign signature against
// the claimed address.
func verifyWalletSignature(walletAddress, message, signature string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return false
	}

	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	return strings.EqualFold(recovered, walletAddress)
}

func generateJWT(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func generateNonce() string {
	b := make([]byte, 16)
	cryptorand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
