package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"newsroom/internal/api"
	"newsroom/internal/config"
	"newsroom/internal/daemon"
	"newsroom/internal/logging"
	"newsroom/internal/testsupport"
)

type testServer struct {
	t    *testing.T
	base string
}

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *testServer, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.Addr()
	if addr == "" {
		t.Fatalf("daemon has no API address")
	}
	return d, &testServer{t: t, base: "http://" + addr}, cfg
}

func (ts *testServer) do(method, path string, headers map[string]string, body any) (*http.Response, []byte) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.base+path, reader)
	if err != nil {
		ts.t.Fatalf("new request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	payload, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return resp, payload
}

func asWriter(id int64) map[string]string {
	return map[string]string{"X-Actor-Id": fmt.Sprint(id), "X-Actor-Role": "writer"}
}

func asEditor(id int64) map[string]string {
	return map[string]string{"X-Actor-Id": fmt.Sprint(id), "X-Actor-Role": "editor"}
}

func asPublisher(id int64) map[string]string {
	return map[string]string{"X-Actor-Id": fmt.Sprint(id), "X-Actor-Role": "publisher"}
}

func createDraft(ts *testServer, title string, author int64) api.Article {
	ts.t.Helper()
	resp, payload := ts.do(http.MethodPost, "/articles", asWriter(author), api.CreateArticleRequest{
		Title: title,
	})
	if resp.StatusCode != http.StatusCreated {
		ts.t.Fatalf("create draft: status %d: %s", resp.StatusCode, payload)
	}
	var out api.ArticleResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		ts.t.Fatalf("decode create response: %v", err)
	}
	return out.Article
}

func TestTransitionEndpointsDriveLifecycle(t *testing.T) {
	_, ts, _ := startDaemon(t)

	article := createDraft(ts, "API Lifecycle", 1)
	if article.Status != "DRAFT" {
		t.Fatalf("expected DRAFT, got %s", article.Status)
	}

	resp, payload := ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/submit", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d: %s", resp.StatusCode, payload)
	}

	resp, payload = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), asEditor(2), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d: %s", resp.StatusCode, payload)
	}
	var approved api.ArticleResponse
	if err := json.Unmarshal(payload, &approved); err != nil {
		t.Fatalf("decode approve response: %v", err)
	}
	if approved.Article.Status != "PUBLISHED" || approved.Article.PublishedAt == "" {
		t.Fatalf("unexpected article after approve: %+v", approved.Article)
	}

	// Repeat approve: stale state must surface as 409.
	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), asEditor(2), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repeat approve: expected 409, got %d", resp.StatusCode)
	}

	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/archive", article.ID), asPublisher(4), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	_, ts, _ := startDaemon(t)

	// NotFound.
	resp, _ := ts.do(http.MethodPost, "/articles/9999/submit", asWriter(1), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing article: expected 404, got %d", resp.StatusCode)
	}

	article := createDraft(ts, "Error Mapping", 1)
	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/submit", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed: %d", resp.StatusCode)
	}

	// Forbidden: a writer approving.
	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("writer approve: expected 403, got %d", resp.StatusCode)
	}

	// ValidationError: approve with a past publish instant.
	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), asEditor(2),
		api.TransitionRequest{PublishAt: past})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("past publishAt: expected 400, got %d", resp.StatusCode)
	}

	// Missing actor headers.
	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing actor: expected 400, got %d", resp.StatusCode)
	}
}

func TestPipelineEndpointScopesByRole(t *testing.T) {
	_, ts, _ := startDaemon(t)

	article := createDraft(ts, "Pipeline Via API", 1)
	resp, _ := ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/submit", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed: %d", resp.StatusCode)
	}

	resp, payload := ts.do(http.MethodGet, "/pipeline", asWriter(1), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pipeline: status %d", resp.StatusCode)
	}
	var writerView api.Pipeline
	if err := json.Unmarshal(payload, &writerView); err != nil {
		t.Fatalf("decode pipeline: %v", err)
	}
	if len(writerView.AwaitingReview) != 0 {
		t.Fatalf("writer must not see awaiting_review")
	}

	resp, payload = ts.do(http.MethodGet, "/pipeline", asEditor(2), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pipeline: status %d", resp.StatusCode)
	}
	var editorView api.Pipeline
	if err := json.Unmarshal(payload, &editorView); err != nil {
		t.Fatalf("decode pipeline: %v", err)
	}
	if len(editorView.AwaitingReview) != 1 {
		t.Fatalf("editor must see the in-review article")
	}
}

func TestSweepEndpointPublishesDueArticles(t *testing.T) {
	_, ts, _ := startDaemon(t)

	article := createDraft(ts, "Due Via API", 1)
	resp, _ := ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/submit", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed: %d", resp.StatusCode)
	}
	soon := time.Now().Add(150 * time.Millisecond).Format(time.RFC3339Nano)
	resp, payload := ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/approve", article.ID), asEditor(2),
		api.TransitionRequest{PublishAt: soon})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d: %s", resp.StatusCode, payload)
	}
	time.Sleep(200 * time.Millisecond)

	resp, payload = ts.do(http.MethodPost, "/sweep", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sweep: status %d", resp.StatusCode)
	}
	var sweep api.SweepResponse
	if err := json.Unmarshal(payload, &sweep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if sweep.Published != 1 {
		t.Fatalf("expected 1 published, got %d", sweep.Published)
	}
}

func TestPreviewTokenEndpoints(t *testing.T) {
	_, ts, _ := startDaemon(t)

	article := createDraft(ts, "Preview Me", 1)

	resp, payload := ts.do(http.MethodPost, fmt.Sprintf("/articles/%d/preview", article.ID), asWriter(1), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("mint preview: status %d: %s", resp.StatusCode, payload)
	}
	var token api.PreviewTokenResponse
	if err := json.Unmarshal(payload, &token); err != nil {
		t.Fatalf("decode preview token: %v", err)
	}

	resp, payload = ts.do(http.MethodGet, "/preview/"+token.Token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve preview: status %d", resp.StatusCode)
	}
	var resolved api.ArticleResponse
	if err := json.Unmarshal(payload, &resolved); err != nil {
		t.Fatalf("decode preview article: %v", err)
	}
	if resolved.Article.ID != article.ID {
		t.Fatalf("preview resolved wrong article")
	}

	resp, _ = ts.do(http.MethodGet, "/preview/bogus-token", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bogus token: expected 404, got %d", resp.StatusCode)
	}
}

func TestBearerTokenGuardsAPI(t *testing.T) {
	_, ts, _ := startDaemon(t, testsupport.WithAPIToken("secret"))

	resp, _ := ts.do(http.MethodGet, "/status", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: expected 401, got %d", resp.StatusCode)
	}

	resp, _ = ts.do(http.MethodGet, "/status", map[string]string{"Authorization": "Bearer secret"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated: expected 200, got %d", resp.StatusCode)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	_, _, cfg := startDaemon(t)

	store := testsupport.MustOpenStore(t, cfg)
	second, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatalf("second daemon instance must fail to start")
	}
}

func TestStatusEndpointReportsHealth(t *testing.T) {
	_, ts, _ := startDaemon(t)

	createDraft(ts, "Health Check", 1)

	resp, payload := ts.do(http.MethodGet, "/status", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || !status.SweeperRunning {
		t.Fatalf("daemon should report running: %+v", status)
	}
	if status.Articles.Draft != 1 || status.Articles.Total != 1 {
		t.Fatalf("unexpected article counts: %+v", status.Articles)
	}
}
