package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"busboard/internal/board"
	"busboard/internal/bus"
	"busboard/internal/config"
	"busboard/internal/events"
	"busboard/internal/form"
	"busboard/internal/journal"
	"busboard/internal/store"
)

func setupTest(t *testing.T) (*http.ServeMux, *journal.Writer, *store.Store) {
	t.Helper()
	cfg := config.Config{HTTPPort: "0", HistoryLimit: 100, EventBufferSize: 16}
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	b := bus.New()
	bd := board.New()
	forms, err := form.New(b, bd)
	if err != nil {
		t.Fatal(err)
	}
	writer := journal.New(st, 32, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	writer.Start(ctx)
	hub := events.NewHub(cfg.EventBufferSize)

	router := NewRouter(cfg, b, forms, bd, st, writer, hub)
	mux := http.NewServeMux()
	router.Register(mux)
	return mux, writer, st
}

func postForm(t *testing.T, mux *http.ServeMux, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSubscribeAndPublishFlow(t *testing.T) {
	mux, _, _ := setupTest(t)

	rr := postForm(t, mux, "/subscribers", url.Values{"subscriberName": {"alice"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("subscribe status %d: %s", rr.Code, rr.Body.String())
	}

	rr = postForm(t, mux, "/publish", url.Values{"message": {"hi"}, "recipients": {"alice,bob"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("publish status %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Delivered int    `json:"delivered"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Delivered != 1 || out.MessageID == "" {
		t.Fatalf("unexpected publish response %+v", out)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	var snapshot struct {
		Rows []board.Row `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if len(snapshot.Rows) != 1 || snapshot.Rows[0].LastContent != "hi" {
		t.Fatalf("board not updated: %+v", snapshot.Rows)
	}
}

func TestPublishToUnknownRecipientIsNotAnError(t *testing.T) {
	mux, _, _ := setupTest(t)
	rr := postForm(t, mux, "/publish", url.Values{"message": {"hi"}, "recipients": {"nobody"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out struct {
		Delivered int `json:"delivered"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", out.Delivered)
	}
}

func TestSubscribeRejectsBlankName(t *testing.T) {
	mux, _, _ := setupTest(t)
	rr := postForm(t, mux, "/subscribers", url.Values{"subscriberName": {"  "}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPublishRejectsMissingFields(t *testing.T) {
	mux, _, _ := setupTest(t)
	if rr := postForm(t, mux, "/publish", url.Values{"recipients": {"a"}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", rr.Code)
	}
	if rr := postForm(t, mux, "/publish", url.Values{"message": {"hi"}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing recipients, got %d", rr.Code)
	}
}

func TestMethodGuards(t *testing.T) {
	mux, _, _ := setupTest(t)
	for _, path := range []string{"/subscribers", "/publish"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rr.Code)
		}
	}
}

func TestRemoveSubscriber(t *testing.T) {
	mux, _, _ := setupTest(t)
	postForm(t, mux, "/subscribers", url.Values{"subscriberName": {"alice"}})

	req := httptest.NewRequest(http.MethodDelete, "/subscribers/alice", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status %d", rr.Code)
	}

	rr = postForm(t, mux, "/publish", url.Values{"message": {"hi"}, "recipients": {"alice"}})
	var out struct {
		Delivered int `json:"delivered"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Delivered != 0 {
		t.Fatalf("expected no deliveries after removal, got %d", out.Delivered)
	}
}

func TestRemoveUnknownSubscriberIsNoop(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodDelete, "/subscribers/ghost", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown name, got %d", rr.Code)
	}
}

func TestBrowserFormGetsRedirect(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodPost, "/subscribers", strings.NewReader(url.Values{"subscriberName": {"alice"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for browser form, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
}

func TestPublishIsJournalled(t *testing.T) {
	mux, writer, st := setupTest(t)
	postForm(t, mux, "/subscribers", url.Values{"subscriberName": {"alice"}})
	postForm(t, mux, "/publish", url.Values{"message": {"hi"}, "recipients": {"alice"}})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	writer.Stop(stopCtx)

	msgs, err := st.ListMessages(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" || msgs[0].Delivered != 1 {
		t.Fatalf("journal missing publish: %+v", msgs)
	}
}

func TestIndexServesFormPage(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "subscriberName") || !strings.Contains(body, "recipients") {
		t.Fatalf("form page missing expected fields")
	}
}

func TestAvatarEndpoint(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/avatars/alice.png", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("avatar status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux, _, _ := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/ops/status", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"subscribers", "counters", "journal"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("status missing %q: %v", key, out)
		}
	}
}
