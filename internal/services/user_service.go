package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	mW "github.com/ipfsnut/bookmarks-backend/internal/middleware"
	"github.com/ipfsnut/bookmarks-backend/internal/models"
)

type UserService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// GetUser returns the caller's profile
// @Summary Get user profile
// @Description Get the authenticated user's profile joined with their token balance
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user [get]
func (s *UserService) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	err := s.db.QueryRowContext(r.Context(), `
		SELECT u.id, u.wallet_address, COALESCE(u.username, ''), COALESCE(u.farcaster_id, ''),
		       COALESCE(b.amount, 0), u.last_login, u.created_at, u.updated_at
		FROM users u
		LEFT JOIN token_balances b ON b.user_id = u.id
		WHERE u.id = $1`, userID).
		Scan(&user.ID, &user.WalletAddress, &user.Username, &user.FarcasterID,
			&user.TokenBalance, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[USERS] Profile query failed for %s: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch user", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// UpdateUser applies a partial profile update
// @Summary Update user profile
// @Description Update the mutable profile fields (username, farcaster_id)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UserPatch true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user [put]
func (s *UserService) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var patch models.UserPatch
	if err := dec.Decode(&patch); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if patch.Empty() {
		SendErrorResponse(w, "No fields to update", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&patch); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	set := []string{"updated_at = NOW()"}
	args := []any{}
	if patch.Username != nil {
		args = append(args, strings.TrimSpace(*patch.Username))
		set = append(set, fmt.Sprintf("username = $%d", len(args)))
	}
	if patch.FarcasterID != nil {
		args = append(args, *patch.FarcasterID)
		set = append(set, fmt.Sprintf("farcaster_id = $%d", len(args)))
	}

	args = append(args, userID)
	query := fmt.Sprintf(`
		UPDATE users SET %s WHERE id = $%d
		RETURNING id, wallet_address, COALESCE(username, ''), COALESCE(farcaster_id, ''), last_login, created_at, updated_at`,
		strings.Join(set, ", "), len(args))

	var user models.User
	err := s.db.QueryRowContext(r.Context(), query, args...).
		Scan(&user.ID, &user.WalletAddress, &user.Username, &user.FarcasterID,
			&user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		log.Printf("[USERS] Profile update failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to update user", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[USERS] Updated profile for user %s", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
