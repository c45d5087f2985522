package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ipfsnut/bookmarks-backend/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

//go:embed bisac_codes.json
var bisacData []byte

const (
	defaultBisacLimit = 50
	maxBisacLimit     = 200
)

// BisacService serves the static BISAC subject classification dataset.
// The data is embedded at build time; query results are memoized since the
// dataset never changes at runtime.
type BisacService struct {
	codes []models.BisacCode
	cache *gocache.Cache
}

func NewBisacService() (*BisacService, error) {
	var codes []models.BisacCode
	if err := json.Unmarshal(bisacData, &codes); err != nil {
		return nil, fmt.Errorf("loading BISAC dataset: %w", err)
	}

	return &BisacService{
		codes: codes,
		cache: gocache.New(1*time.Hour, 10*time.Minute),
	}, nil
}

// LookupBisacCodes queries the BISAC dataset
// @Summary Look up BISAC codes
// @Description Query the static BISAC subject dataset by search term, category, or explicit code list
// @Tags bisac
// @Produce json
// @Param type query string true "search, categories, by_category or by_codes"
// @Param q query string false "Search term (type=search)"
// @Param category query string false "Category name (type=by_category)"
// @Param codes query string false "Comma-separated codes (type=by_codes)"
// @Param limit query int false "Max rows (default 50, cap 200)"
// @Success 200 {object} object{bisacCodes=[]models.BisacCode}
// @Failure 400 {object} ErrorResponse
// @Router /bisac-codes [get]
func (s *BisacService) LookupBisacCodes(w http.ResponseWriter, r *http.Request) {
	queryType := r.URL.Query().Get("type")
	if queryType == "" {
		queryType = "search"
	}

	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	codesParam := r.URL.Query().Get("codes")

	limit := defaultBisacLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxBisacLimit {
		limit = maxBisacLimit
	}

	cacheKey := fmt.Sprintf("%s|%s|%s|%s|%d", queryType, q, category, codesParam, limit)
	if cached, found := s.cache.Get(cacheKey); found {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cached)
		return
	}

	var results []models.BisacCode
	switch queryType {
	case "search":
		results = s.search(q, limit)
	case "categories":
		results = s.categories(limit)
	case "by_category":
		results = s.byCategory(category, limit)
	case "by_codes":
		results = s.byCodes(codesParam, limit)
	default:
		SendErrorResponse(w, "Unknown query type", http.StatusBadRequest, nil)
		return
	}

	response := map[string]any{"bisacCodes": results}
	s.cache.Set(cacheKey, response, gocache.DefaultExpiration)

	log.Printf("[BISAC] %s query returned %d codes", queryType, len(results))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *BisacService) search(q string, limit int) []models.BisacCode {
	q = strings.ToLower(strings.TrimSpace(q))
	results := []models.BisacCode{}
	for _, c := range s.codes {
		if len(results) >= limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(c.Label), q) || strings.Contains(strings.ToLower(c.Code), q) {
			results = append(results, c)
		}
	}
	return results
}

// categories returns one representative entry per distinct category.
func (s *BisacService) categories(limit int) []models.BisacCode {
	seen := map[string]bool{}
	results := []models.BisacCode{}
	for _, c := range s.codes {
		if seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		results = append(results, models.BisacCode{Code: c.Code, Label: c.Category, Category: c.Category})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Category < results[j].Category })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *BisacService) byCategory(category string, limit int) []models.BisacCode {
	category = strings.ToUpper(strings.TrimSpace(category))
	results := []models.BisacCode{}
	for _, c := range s.codes {
		if len(results) >= limit {
			break
		}
		if c.Category == category {
			results = append(results, c)
		}
	}
	return results
}

func (s *BisacService) byCodes(codesParam string, limit int) []models.BisacCode {
	wanted := map[string]bool{}
	for _, code := range strings.Split(codesParam, ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			wanted[code] = true
		}
	}

	results := []models.BisacCode{}
	for _, c := range s.codes {
		if len(results) >= limit {
			break
		}
		if wanted[c.Code] {
			results = append(results, c)
		}
	}
	return results
}
