package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"
)

// LeaderboardProvider is satisfied by the ranking service directly or by the
// Redis snapshot cache wrapping it.
type LeaderboardProvider interface {
	Leaderboard(ctx context.Context, mode string, topN int, zone *time.Location) (domain.Leaderboard, error)
}

// Handler exposes the submission, review and leaderboard use cases over JSON.
type Handler struct {
	attempts    *app.AttemptService
	rankings    LeaderboardProvider
	defaultTopN int
}

func NewHandler(attempts *app.AttemptService, rankings LeaderboardProvider, defaultTopN int) *Handler {
	if defaultTopN <= 0 {
		defaultTopN = 20
	}
	return &Handler{attempts: attempts, rankings: rankings, defaultTopN: defaultTopN}
}

// Register wires routes into mux. Submission and review need an
// authenticated participant; leaderboard reads are public.
func (h *Handler) Register(mux *http.ServeMux, auth *Authenticator) {
	mux.Handle("POST /api/attempts", auth.WithAuth(RequireParticipant(http.HandlerFunc(h.handleSubmit))))
	mux.Handle("GET /api/attempts/{id}", auth.WithAuth(RequireParticipant(http.HandlerFunc(h.handleReview))))
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
}

type submissionItemRequest struct {
	OrderNo     int    `json:"order_no"`
	QuestionID  *int64 `json:"question_id"`
	SelectedIdx *int   `json:"selected_idx"`
	CorrectIdx  int    `json:"correct_idx"`
}

type submissionRequest struct {
	Mode        string                  `json:"mode"`
	QuestionCnt int                     `json:"questionCnt"`
	TotalTimeMs int64                   `json:"totalTimeMs"`
	// Score is accepted for wire compatibility but never trusted; the server
	// recomputes it from the items.
	Score int                     `json:"score"`
	Items []submissionItemRequest `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := ParticipantFromContext(r.Context())

	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	items := make([]domain.SubmissionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.SubmissionItem{
			OrderNo:     it.OrderNo,
			QuestionID:  it.QuestionID,
			SelectedIdx: it.SelectedIdx,
			CorrectIdx:  it.CorrectIdx,
		})
	}

	attempt, err := h.attempts.Submit(r.Context(), userID, domain.Submission{
		Mode:        req.Mode,
		QuestionCnt: req.QuestionCnt,
		TotalTimeMs: req.TotalTimeMs,
		Items:       items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := ParticipantFromContext(r.Context())

	attemptID, err := domain.ParseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "attempt not found"})
		return
	}

	items, err := h.attempts.Review(r.Context(), userID, attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode is required"})
		return
	}

	topN := h.defaultTopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid top"})
			return
		}
		topN = n
	}

	var zone *time.Location
	if raw := r.URL.Query().Get("tz"); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid timezone"})
			return
		}
		zone = loc
	}

	lb, err := h.rankings.Leaderboard(r.Context(), mode, topN, zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Code})
		return
	}
	if errors.Is(err, domain.ErrAttemptNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "attempt not found"})
		return
	}
	var integrity *domain.IntegrityError
	if errors.As(err, &integrity) {
		log.Printf("integrity violation: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	log.Printf("request failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
