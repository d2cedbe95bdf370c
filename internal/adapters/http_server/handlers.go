// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"legal_reporting/internal/adapters/csvexport"
	"legal_reporting/internal/app"
	"legal_reporting/internal/domain"
)

type Handlers struct{ Q *app.QueryService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/health", h.health)
	s.mux.Get("/stats", h.stats)
	s.mux.Get("/businesses", h.businesses)
	s.mux.Get("/businesses/", h.businesses)

	s.mux.Group(func(r chi.Router) {
		r.Use(s.exportLimit)
		r.Get("/reviews/business/{business_id}", h.businessReviews)
		r.Get("/reviews/user/{reviewer_id}", h.userReviews)
		r.Get("/reviews", h.searchReviews)
		r.Get("/reviews/", h.searchReviews)
		r.Get("/users/{reviewer_id}", h.userAccount)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses; notFound is the
// detail used for domain.ErrNotFound.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", notFound)
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Parameter", ve.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

// writeCSV encodes before any header goes out, so an encoding failure is
// still reported as a 500.
func writeCSV[T any](w http.ResponseWriter, filename string, rows []T) {
	body, err := csvexport.Encode(rows)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("csv export failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if err := csvexport.Attach(w, filename, body); err != nil {
		log.Error().Err(err).Str("file", filename).Msg("failed to write csv body")
	}
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	c, err := h.Q.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, c)
}

type businessJSON struct {
	BusinessID   string `json:"business_id"`
	BusinessName string `json:"business_name"`
}

func (h *Handlers) businesses(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Q.Businesses(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := make([]businessJSON, 0, len(bs))
	for _, b := range bs {
		out = append(out, businessJSON(b))
	}
	writeJSON(w, out)
}

func (h *Handlers) businessReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "business_id")
	rs, err := h.Q.ReviewsForBusiness(r.Context(), id)
	if err != nil {
		writeError(w, r, err, fmt.Sprintf("no reviews found for business %s", id))
		return
	}
	writeCSV(w, fmt.Sprintf("reviews_business_%s.csv", id), csvexport.Reviews(rs))
}

func (h *Handlers) userReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reviewer_id")
	rs, err := h.Q.ReviewsForUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err, fmt.Sprintf("no reviews found for user %s", id))
		return
	}
	writeCSV(w, fmt.Sprintf("reviews_user_%s.csv", id), csvexport.Reviews(rs))
}

func (h *Handlers) userAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reviewer_id")
	acc, err := h.Q.UserAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err, fmt.Sprintf("user %s not found", id))
		return
	}
	writeCSV(w, fmt.Sprintf("user_account_info_%s.csv", id), csvexport.UserAccount(acc))
}

func (h *Handlers) searchReviews(w http.ResponseWriter, r *http.Request) {
	q, err := searchParams(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	page, err := h.Q.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	w.Header().Set("X-Limit", strconv.Itoa(page.Limit))
	w.Header().Set("X-Offset", strconv.Itoa(page.Offset))
	writeCSV(w, fmt.Sprintf("reviews_limit%d_offset%d.csv", page.Limit, page.Offset), csvexport.Reviews(page.Items))
}

// searchParams reads the query string; empty values count as absent.
func searchParams(r *http.Request) (app.ReviewSearch, error) {
	v := r.URL.Query()
	str := func(k string) *string {
		if s := v.Get(k); s != "" {
			return &s
		}
		return nil
	}
	var q app.ReviewSearch
	q.StartDate, q.EndDate, q.Country = str("start_date"), str("end_date"), str("country")

	ints := []struct {
		name string
		dst  **int
	}{
		{"min_rating", &q.MinRating},
		{"max_rating", &q.MaxRating},
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, p := range ints {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, domain.Invalid(p.name, "must be an integer, got '%s'", s)
		}
		*p.dst = &n
	}
	return q, nil
}
