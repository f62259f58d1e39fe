package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"member-archive/internal/config"
	"member-archive/internal/models"
	"member-archive/internal/scrape"
	"member-archive/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, adminKey string) (*Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := scrape.NewEngine(log, scrape.EngineConfig{
		APIID:      123456,
		APIHash:    "0123456789abcdef",
		QueryDelay: time.Millisecond,
	})
	orch := scrape.NewOrchestrator(log, st, engine, scrape.OrchestratorOptions{
		ExportDir:  t.TempDir(),
		ExportBase: "api_test",
	})

	cfg := config.Config{
		AdminSecretKey: adminKey,
		CORSOrigins:    []string{"*"},
	}
	return NewServer(log, st, nil, orch, cfg), st
}

func doRequest(s *Server, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth_ReportsStoreState(t *testing.T) {
	s, st := newTestServer(t, "")

	if err := st.Upsert(context.Background(), models.Member{ID: 1, SourceGroup: "@golang"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	w := doRequest(s, "GET", "/api/v1/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["total_members"] != float64(1) {
		t.Errorf("total_members = %v, want 1", body["total_members"])
	}
	if body["redis"] != "not_configured" {
		t.Errorf("redis = %v, want not_configured", body["redis"])
	}
}

func TestMembersByGroup_ValidatesInput(t *testing.T) {
	s, _ := newTestServer(t, "")

	tests := []struct {
		name     string
		path     string
		expected int
	}{
		{"invalid group", "/api/v1/members/x!", http.StatusBadRequest},
		{"group too short", "/api/v1/members/ab", http.StatusBadRequest},
		{"bad limit", "/api/v1/members/golang?limit=abc", http.StatusBadRequest},
		{"limit too large", "/api/v1/members/golang?limit=99999", http.StatusBadRequest},
		{"valid empty group", "/api/v1/members/golang", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "GET", tt.path, nil, nil)
			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d (body %s)", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestMembersByGroup_ReturnsRows(t *testing.T) {
	s, st := newTestServer(t, "")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := st.Upsert(ctx, models.Member{ID: i, Username: "user", SourceGroup: "@golang"}); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	w := doRequest(s, "GET", "/api/v1/members/golang?limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %s, want MISS without redis", w.Header().Get("X-Cache"))
	}

	var body struct {
		SourceGroup string                `json:"source_group"`
		Count       int                   `json:"count"`
		Members     []models.StoredMember `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.SourceGroup != "@golang" {
		t.Errorf("source_group = %s, want @golang", body.SourceGroup)
	}
	if body.Count != 2 || len(body.Members) != 2 {
		t.Errorf("expected 2 members with limit 2, got count=%d len=%d", body.Count, len(body.Members))
	}
}

func TestStats_AggregatesGroups(t *testing.T) {
	s, st := newTestServer(t, "")
	ctx := context.Background()

	_ = st.Upsert(ctx, models.Member{ID: 1, SourceGroup: "@g_one1"})
	_ = st.Upsert(ctx, models.Member{ID: 2, SourceGroup: "@g_one1"})
	_ = st.Upsert(ctx, models.Member{ID: 1, SourceGroup: "@g_two2"})

	w := doRequest(s, "GET", "/api/v1/stats", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		TotalMembers int64               `json:"total_members"`
		Groups       []models.GroupStats `json:"groups"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.TotalMembers != 3 {
		t.Errorf("total_members = %d, want 3", body.TotalMembers)
	}
	if len(body.Groups) != 2 {
		t.Errorf("expected 2 groups, got %d", len(body.Groups))
	}
}

func TestTriggerScrape_RequiresAdminKey(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")

	payload := []byte(`{"target":"@golang","max":10}`)

	w := doRequest(s, "POST", "/api/v1/admin/scrape", payload, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", w.Code)
	}

	w = doRequest(s, "POST", "/api/v1/admin/scrape", payload, map[string]string{
		"Content-Type": "application/json",
		"X-Admin-Key":  "wrong",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong key: expected 403, got %d", w.Code)
	}
}

func TestTriggerScrape_UnconfiguredAdminKey(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := doRequest(s, "POST", "/api/v1/admin/scrape", []byte(`{"target":"@golang"}`), map[string]string{
		"Content-Type": "application/json",
		"X-Admin-Key":  "anything",
	})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 without configured key, got %d", w.Code)
	}
}

func TestTriggerScrape_RunsCycle(t *testing.T) {
	s, st := newTestServer(t, "sekrit")

	w := doRequest(s, "POST", "/api/v1/admin/scrape", []byte(`{"target":"@golang","max":10}`), map[string]string{
		"Content-Type": "application/json",
		"X-Admin-Key":  "sekrit",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}

	var body struct {
		SourceGroup string `json:"source_group"`
		Scraped     int    `json:"scraped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Scraped == 0 {
		t.Error("expected a non-empty scrape batch")
	}

	count, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != int64(body.Scraped) {
		t.Errorf("store count %d does not match scraped %d", count, body.Scraped)
	}

	w = doRequest(s, "POST", "/api/v1/admin/scrape", []byte(`{"target":"not valid!"}`), map[string]string{
		"Content-Type": "application/json",
		"X-Admin-Key":  "sekrit",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid target: expected 400, got %d", w.Code)
	}
}

func TestLegacyHealthz(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := doRequest(s, "GET", "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
