package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"
	"quiz-rank-service/internal/infra/memory"
)

func TestWebSocketLeaderboardFeed(t *testing.T) {
	store := memory.NewAttemptStore()
	ranking := app.NewRankingService(store, memory.NewStaticProfileDirectory(nil), time.UTC)
	hub := app.NewLeaderboardHub(ranking, 10)
	service := app.NewAttemptService(store, memory.NewStaticQuestionStore(nil), hub)
	wsHandler := NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard?mode=rank_5s"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot first, empty this week.
	initial := readLeaderboard(conn, t)
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial leaderboard, got %d entries", len(initial.Entries))
	}

	sel := 0
	if _, err := service.Submit(context.Background(), "u1", domain.Submission{
		Mode:        "rank_5s",
		QuestionCnt: 1,
		TotalTimeMs: 3000,
		Items: []domain.SubmissionItem{
			{OrderNo: 1, SelectedIdx: &sel, CorrectIdx: 0},
		},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	update := readLeaderboard(conn, t)
	if len(update.Entries) != 1 || update.Entries[0].UserID != "u1" || update.Entries[0].Score != 1 {
		t.Fatalf("expected recomputed leaderboard with u1 at score 1, got %+v", update.Entries)
	}
}

func TestWebSocketRequiresMode(t *testing.T) {
	store := memory.NewAttemptStore()
	ranking := app.NewRankingService(store, memory.NewStaticProfileDirectory(nil), time.UTC)
	wsHandler := NewWSHandler(app.NewLeaderboardHub(ranking, 10))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/leaderboard", nil)
	wsHandler.ServeWS(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without mode, got %d", rec.Code)
	}
}

func readLeaderboard(conn *websocket.Conn, t *testing.T) domain.Leaderboard {
	t.Helper()
	var msg struct {
		Type    string             `json:"type"`
		Payload domain.Leaderboard `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard frame, got %s", msg.Type)
	}
	return msg.Payload
}
