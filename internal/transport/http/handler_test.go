package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"
	"quiz-rank-service/internal/infra/memory"
)

func TestSubmitIgnoresClientScore(t *testing.T) {
	ts, auth, _ := newTestServer(t)
	defer ts.Close()

	// One correct item out of five, but the client claims a perfect score.
	body := `{
		"mode": "rank_5s",
		"questionCnt": 5,
		"totalTimeMs": 12000,
		"score": 5,
		"items": [
			{"order_no": 1, "question_id": 1, "selected_idx": 1, "correct_idx": 1},
			{"order_no": 2, "question_id": 2, "selected_idx": 0, "correct_idx": 1},
			{"order_no": 3, "question_id": 3, "selected_idx": null, "correct_idx": 0},
			{"order_no": 4, "question_id": 4, "selected_idx": 2, "correct_idx": 0},
			{"order_no": 5, "question_id": null, "selected_idx": 0, "correct_idx": 1}
		]
	}`

	resp := doJSON(t, ts, "POST", "/api/attempts", token(t, auth, "u1"), body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var attempt domain.Attempt
	if err := json.NewDecoder(resp.Body).Decode(&attempt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if attempt.Score != 1 {
		t.Fatalf("expected server-recomputed score 1, got %d", attempt.Score)
	}
	if attempt.UserID != "u1" {
		t.Fatalf("expected owner u1, got %s", attempt.UserID)
	}
}

func TestSubmitReturnsReasonCode(t *testing.T) {
	ts, auth, _ := newTestServer(t)
	defer ts.Close()

	body := `{
		"mode": "rank_5s",
		"questionCnt": 5,
		"totalTimeMs": 1000,
		"items": [
			{"order_no": 1, "selected_idx": 0, "correct_idx": 0},
			{"order_no": 2, "selected_idx": 0, "correct_idx": 0},
			{"order_no": 3, "selected_idx": 0, "correct_idx": 0},
			{"order_no": 4, "selected_idx": 0, "correct_idx": 0}
		]
	}`

	resp := doJSON(t, ts, "POST", "/api/attempts", token(t, auth, "u1"), body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error != domain.CodeItemsLengthMismatch {
		t.Fatalf("expected %s, got %s", domain.CodeItemsLengthMismatch, errResp.Error)
	}
}

func TestSubmitRequiresAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)
	defer ts.Close()

	resp := doJSON(t, ts, "POST", "/api/attempts", "", `{"mode":"rank_5s"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestReviewHidesForeignAttempts(t *testing.T) {
	ts, auth, service := newTestServer(t)
	defer ts.Close()

	attempt := submitSample(t, service, "u1")

	resp := doJSON(t, ts, "GET", fmt.Sprintf("/api/attempts/%d", attempt.ID), token(t, auth, "u2"), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", resp.StatusCode)
	}

	owned := doJSON(t, ts, "GET", fmt.Sprintf("/api/attempts/%d", attempt.ID), token(t, auth, "u1"), "")
	defer owned.Body.Close()
	if owned.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", owned.StatusCode)
	}
	var items []domain.ReviewItem
	if err := json.NewDecoder(owned.Body).Decode(&items); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 review items, got %d", len(items))
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts, _, service := newTestServer(t)
	defer ts.Close()

	submitSample(t, service, "u1")

	resp := doJSON(t, ts, "GET", "/api/leaderboard?mode=rank_5s&top=5", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var lb domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected one ranked entry, got %+v", lb.Entries)
	}

	missing := doJSON(t, ts, "GET", "/api/leaderboard", "", "")
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without mode, got %d", missing.StatusCode)
	}

	badTZ := doJSON(t, ts, "GET", "/api/leaderboard?mode=rank_5s&tz=Not/AZone", "", "")
	defer badTZ.Body.Close()
	if badTZ.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timezone, got %d", badTZ.StatusCode)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Authenticator, *app.AttemptService) {
	t.Helper()

	store := memory.NewAttemptStore()
	questions := memory.NewStaticQuestionStore(map[int64]domain.ReviewQuestion{
		1: {ID: 1, Text: "Pick one", Options: []string{"a", "b"}},
	})
	profiles := memory.NewStaticProfileDirectory(map[string]string{"u1": "Alice"})
	ranking := app.NewRankingService(store, profiles, time.UTC)
	service := app.NewAttemptService(store, questions)

	auth := NewAuthenticator("test-secret")
	handler := NewHandler(service, ranking, 20)

	mux := http.NewServeMux()
	handler.Register(mux, auth)
	return httptest.NewServer(mux), auth, service
}

func submitSample(t *testing.T, service *app.AttemptService, userID string) domain.Attempt {
	t.Helper()
	sel0 := 0
	sel1 := 1
	q1 := int64(1)
	attempt, err := service.Submit(context.Background(), userID, domain.Submission{
		Mode:        "rank_5s",
		QuestionCnt: 2,
		TotalTimeMs: 8000,
		Items: []domain.SubmissionItem{
			{OrderNo: 1, QuestionID: &q1, SelectedIdx: &sel0, CorrectIdx: 0},
			{OrderNo: 2, SelectedIdx: &sel1, CorrectIdx: 0},
		},
	})
	if err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	return attempt
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, bearer, body string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func token(t *testing.T, auth *Authenticator, uid string) string {
	t.Helper()
	tok, err := auth.SignToken(uid, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
