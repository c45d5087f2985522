package services

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	mW "github.com/ipfsnut/bookmarks-backend/internal/middleware"
	"github.com/ipfsnut/bookmarks-backend/internal/models"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

const (
	defaultBookmarkLimit = 50
	maxBookmarkLimit     = 100
)

// sort keys accepted from the query string, mapped to order clauses
var bookmarkSortColumns = map[string]string{
	"created_at": "created_at DESC",
	"title":      "title ASC",
	"author":     "author ASC",
}

type BookmarkService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// CreateBookmarkRequest is the bookmark creation payload.
// @Description Bookmark creation request structure
type CreateBookmarkRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=500"`
	Author      string `json:"author" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	CoverURL    string `json:"cover_url" validate:"omitempty,url,max=2000"`
}

func NewBookmarkService(db *sql.DB, redisClient *redis.Client) *BookmarkService {
	return &BookmarkService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// ListBookmarks lists bookmarks or fetches one by id
// @Summary List bookmarks
// @Description Public bookmark listing. Pass id for a single row, userOnly=true (authenticated) for the caller's rows.
// @Tags bookmarks
// @Produce json
// @Param id query string false "Fetch a single bookmark by ID"
// @Param userOnly query bool false "Only the authenticated user's bookmarks"
// @Param sortBy query string false "created_at, title or author"
// @Param limit query int false "Max rows (default 50, cap 100)"
// @Success 200 {object} object{bookmarks=[]models.Bookmark}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookmarks [get]
func (s *BookmarkService) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		bookmark, err := s.fetchBookmark(r, id)
		if err != nil {
			if err == sql.ErrNoRows {
				SendErrorResponse(w, "Bookmark not found", http.StatusNotFound, nil)
			} else {
				log.Printf("[BOOKMARKS] Fetch failed for %s: %v", id, err)
				SendErrorResponse(w, "Failed to fetch bookmark", http.StatusInternalServerError, nil)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"bookmark": bookmark})
		return
	}

	query := `SELECT id, user_id, title, author, COALESCE(description, ''), COALESCE(cover_url, ''), created_at, updated_at FROM bookmarks`
	args := []any{}

	if r.URL.Query().Get("userOnly") == "true" {
		userID, ok := mW.UserIDFromContext(r.Context())
		if !ok {
			SendErrorResponse(w, "Authentication required for userOnly", http.StatusUnauthorized, nil)
			return
		}
		query += " WHERE user_id = $1"
		args = append(args, userID)
	}

	orderBy, ok := bookmarkSortColumns[r.URL.Query().Get("sortBy")]
	if !ok {
		orderBy = bookmarkSortColumns["created_at"]
	}
	query += " ORDER BY " + orderBy

	limit := defaultBookmarkLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxBookmarkLimit {
		limit = maxBookmarkLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[BOOKMARKS] List query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch bookmarks", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Description, &b.CoverURL, &b.CreatedAt, &b.UpdatedAt); err != nil {
			log.Printf("[BOOKMARKS] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch bookmarks", http.StatusInternalServerError, nil)
			return
		}
		bookmarks = append(bookmarks, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"bookmarks": bookmarks})
}

// CreateBookmark creates a bookmark for the caller
// @Summary Create bookmark
// @Description Create a bookmark owned by the authenticated user
// @Tags bookmarks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBookmarkRequest true "Bookmark data"
// @Success 201 {object} models.Bookmark
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookmarks [post]
func (s *BookmarkService) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateBookmarkRequest
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

	bookmark := models.Bookmark{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: req.Description,
		CoverURL:    req.CoverURL,
	}

	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO bookmarks (id, user_id, title, author, description, cover_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NOW(), NOW())
		RETURNING created_at, updated_at`,
		bookmark.ID, bookmark.UserID, bookmark.Title, bookmark.Author, bookmark.Description, bookmark.CoverURL).
		Scan(&bookmark.CreatedAt, &bookmark.UpdatedAt)
	if err != nil {
		log.Printf("[BOOKMARKS] Insert failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to create bookmark", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BOOKMARKS] Created bookmark %s for user %s", bookmark.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bookmark)
}

// UpdateBookmark applies a partial update to an owned bookmark
// @Summary Update bookmark
// @Description Update mutable fields of a bookmark the caller owns
// @Tags bookmarks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id query string true "Bookmark ID"
// @Param request body models.BookmarkPatch true "Fields to change"
// @Success 200 {object} models.Bookmark
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookmarks [put]
func (s *BookmarkService) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		SendErrorResponse(w, "Missing bookmark id", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var patch models.BookmarkPatch
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

	ownerID, err := s.bookmarkOwner(r, id)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Bookmark not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[BOOKMARKS] Owner lookup failed for %s: %v", id, err)
			SendErrorResponse(w, "Failed to update bookmark", http.StatusInternalServerError, nil)
		}
		return
	}
	if ownerID != userID {
		SendErrorResponse(w, "Cannot modify another user's bookmark", http.StatusForbidden, nil)
		return
	}

	set := []string{"updated_at = NOW()"}
	args := []any{}
	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Author != nil {
		appendSet("author", *patch.Author)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.CoverURL != nil {
		appendSet("cover_url", *patch.CoverURL)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE bookmarks SET %s WHERE id = $%d
		RETURNING id, user_id, title, author, COALESCE(description, ''), COALESCE(cover_url, ''), created_at, updated_at`,
		strings.Join(set, ", "), len(args))

	var bookmark models.Bookmark
	err = s.db.QueryRowContext(r.Context(), query, args...).
		Scan(&bookmark.ID, &bookmark.UserID, &bookmark.Title, &bookmark.Author,
			&bookmark.Description, &bookmark.CoverURL, &bookmark.CreatedAt, &bookmark.UpdatedAt)
	if err != nil {
		log.Printf("[BOOKMARKS] Update failed for %s: %v", id, err)
		SendErrorResponse(w, "Failed to update bookmark", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bookmark)
}

// DeleteBookmark deletes an owned bookmark
// @Summary Delete bookmark
// @Description Delete a bookmark the caller owns
// @Tags bookmarks
// @Produce json
// @Security BearerAuth
// @Param id query string true "Bookmark ID"
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookmarks [delete]
func (s *BookmarkService) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		SendErrorResponse(w, "Missing bookmark id", http.StatusBadRequest, nil)
		return
	}

	ownerID, err := s.bookmarkOwner(r, id)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Bookmark not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[BOOKMARKS] Owner lookup failed for %s: %v", id, err)
			SendErrorResponse(w, "Failed to delete bookmark", http.StatusInternalServerError, nil)
		}
		return
	}
	if ownerID != userID {
		SendErrorResponse(w, "Cannot delete another user's bookmark", http.StatusForbidden, nil)
		return
	}

	if _, err := s.db.ExecContext(r.Context(), `DELETE FROM bookmarks WHERE id = $1`, id); err != nil {
		log.Printf("[BOOKMARKS] Delete failed for %s: %v", id, err)
		SendErrorResponse(w, "Failed to delete bookmark", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BOOKMARKS] Deleted bookmark %s (user %s)", id, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// ShareQR generates a QR code linking to a bookmark
// @Summary Bookmark share QR
// @Description Generate a short-lived share token for a bookmark and return it as a QR code PNG (base64)
// @Tags bookmarks
// @Produce json
// @Param id path string true "Bookmark ID"
// @Success 200 {object} object{shareToken=string,qrImage=string}
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookmarks/{id}/share-qr [get]
func (s *BookmarkService) ShareQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.fetchBookmark(r, id); err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Bookmark not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch bookmark", http.StatusInternalServerError, nil)
		}
		return
	}

	payload, err := json.Marshal(map[string]any{
		"bookmarkId": id,
		"timestamp":  time.Now().Unix(),
	})
	if err != nil {
		SendErrorResponse(w, "Failed to generate share token", http.StatusInternalServerError, nil)
		return
	}

	shareToken := base64.URLEncoding.EncodeToString(payload)

	if s.redis != nil {
		key := fmt.Sprintf("share:%s", shareToken)
		if err := s.redis.Set(r.Context(), key, payload, 24*time.Hour).Err(); err != nil {
			log.Printf("[BOOKMARKS] Failed to store share token for %s: %v", id, err)
		}
	}

	shareURL := fmt.Sprintf("%s/b/%s", strings.TrimRight(viper.GetString("server.public_url"), "/"), shareToken)
	qr, err := qrcode.New(shareURL, qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to encode QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"shareToken": shareToken,
		"qrImage":    base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func (s *BookmarkService) fetchBookmark(r *http.Request, id string) (*models.Bookmark, error) {
	var b models.Bookmark
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, user_id, title, author, COALESCE(description, ''), COALESCE(cover_url, ''), created_at, updated_at
		FROM bookmarks WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Description, &b.CoverURL, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BookmarkService) bookmarkOwner(r *http.Request, id string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(r.Context(),
		`SELECT user_id FROM bookmarks WHERE id = $1`, id).Scan(&ownerID)
	return ownerID, err
}
