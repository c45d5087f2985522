package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	mW "github.com/ipfsnut/bookmarks-backend/internal/middleware"
)

// TokenService exposes the ledger over HTTP.
type TokenService struct {
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewTokenService(db *sql.DB) *TokenService {
	return &TokenService{
		ledger:    NewLedgerService(db),
		validator: NewValidationHelper(),
	}
}

// AwardRequest is the token-award payload.
// @Description Token award request structure
type AwardRequest struct {
	UserID            string `json:"userId" validate:"required"`
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	Reason            string `json:"reason" validate:"required,min=1,max=200"`
	RelatedEntityID   string `json:"relatedEntityId" validate:"omitempty,max=100"`
	RelatedEntityType string `json:"relatedEntityType" validate:"omitempty,max=50"`
}

// GetTokenBalance returns the caller's balance and recent transactions
// @Summary Get token balance
// @Description Get the authenticated user's token balance and the 10 most recent ledger transactions
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.BalanceSummary
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /token-balance [get]
func (s *TokenService) GetTokenBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	summary, err := s.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[TOKENS] Balance query failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// AwardTokens credits tokens to a user
// @Summary Award tokens
// @Description Credit tokens to a user. Users may only award to themselves; system callers may credit any user.
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AwardRequest true "Award request"
// @Param Idempotency-Key header string false "Deduplication key; repeats with the same key do not double-credit"
// @Success 200 {object} object{success=bool,balance=int64}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /token-award [post]
func (s *TokenService) AwardTokens(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.callerContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req AwardRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	dedupKey := r.Header.Get("Idempotency-Key")

	balance, err := s.ledger.Award(r.Context(), caller, req.UserID, req.Amount,
		req.Reason, req.RelatedEntityID, req.RelatedEntityType, dedupKey)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrEmptyReason):
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		case errors.Is(err, ErrForbidden):
			SendErrorResponse(w, "Cannot award tokens to another user", http.StatusForbidden, nil)
		default:
			log.Printf("[TOKENS] Award failed for user %s: %v", req.UserID, err)
			SendErrorResponse(w, "Failed to process award", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[TOKENS] Awarded %d to user %s (reason: %s)", req.Amount, req.UserID, req.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"balance": balance.Amount,
	})
}

func (s *TokenService) callerContext(r *http.Request) (CallerContext, bool) {
	if mW.IsSystemOperation(r.Context()) {
		return SystemCaller(), true
	}
	if userID, ok := mW.UserIDFromContext(r.Context()); ok {
		return UserCaller(userID), true
	}
	return CallerContext{}, false
}
