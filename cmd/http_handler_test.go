package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/infrastructure/persistence/model"
	"reviewflow/internal/infrastructure/persistence/repository"
	"reviewflow/internal/infrastructure/persistence/uow"
	queueinfra "reviewflow/internal/infrastructure/queue"
	"reviewflow/internal/usecase/ingest"
)

const testSecret = "local-dev-secret"

type stubReviewService struct {
	called   bool
	delivery ingest.Delivery
	outcome  ingest.Outcome
	err      error

	logsLimit    int
	reviewsLimit int
	logs         []review.TaskLogEntry
	listErr      error
}

func (s *stubReviewService) Ingest(_ context.Context, delivery ingest.Delivery) (ingest.Outcome, error) {
	s.called = true
	s.delivery = delivery
	return s.outcome, s.err
}

func (s *stubReviewService) ListTaskLogs(_ context.Context, limit int) ([]review.TaskLogEntry, error) {
	s.logsLimit = limit
	return s.logs, s.listErr
}

func (s *stubReviewService) ListRecentReviews(_ context.Context, limit int) ([]review.ReviewResult, error) {
	s.reviewsLimit = limit
	return nil, s.listErr
}

func newWebhookRequest(body string, event string, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/github/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

func serve(t *testing.T, handler http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return resp, body
}

func TestWebhookPassesDeliveryToService(t *testing.T) {
	t.Parallel()

	job := review.WorkItem{TaskID: 5, PRID: 7, Repo: "widgets", Owner: "acme", InstallationID: 42, HeadSHA: "abc123", Action: review.ActionOpened}
	svc := &stubReviewService{outcome: ingest.Outcome{Status: ingest.OutcomeQueued, TaskID: 5, Job: &job}}
	handler := newHTTPHandler(svc, httpHandlerConfig{})

	req := newWebhookRequest(`{"action":"opened"}`, "pull_request", "sha256=abcd")
	req.Header.Set("X-GitHub-Delivery", "delivery-42")
	resp, body := serve(t, handler, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, http.StatusOK, resp.Body.String())
	}
	if !svc.called {
		t.Fatal("service called = false, want true")
	}
	if svc.delivery.EventType != "pull_request" || svc.delivery.DeliveryID != "delivery-42" || svc.delivery.Signature != "sha256=abcd" {
		t.Fatalf("delivery = %+v", svc.delivery)
	}
	if string(svc.delivery.Body) != `{"action":"opened"}` {
		t.Fatalf("body = %q, want raw payload", svc.delivery.Body)
	}
	if body["received"] != true || body["status"] != "queued" {
		t.Fatalf("response = %#v", body)
	}
	jobBody, ok := body["job"].(map[string]any)
	if !ok || jobBody["taskId"] != float64(5) || jobBody["headSha"] != "abc123" {
		t.Fatalf("job = %#v", body["job"])
	}
}

func TestWebhookGeneratesDeliveryIDWhenMissing(t *testing.T) {
	t.Parallel()

	svc := &stubReviewService{outcome: ingest.Outcome{Status: ingest.OutcomeIgnored}}
	handler := newHTTPHandler(svc, httpHandlerConfig{})

	resp, body := serve(t, handler, newWebhookRequest(`{}`, "push", "sha256=00"))

	if resp.Code != http.StatusAccepted || body["status"] != "ignored" {
		t.Fatalf("status = %d, body = %#v", resp.Code, body)
	}
	if len(svc.delivery.DeliveryID) != 36 {
		t.Fatalf("delivery id = %q, want generated uuid", svc.delivery.DeliveryID)
	}
}

func TestWebhookOutcomeResponses(t *testing.T) {
	t.Parallel()

	cases := map[ingest.OutcomeStatus]struct {
		code int
		want map[string]any
	}{
		ingest.OutcomePong:    {http.StatusOK, map[string]any{"status": "pong"}},
		ingest.OutcomeIgnored: {http.StatusAccepted, map[string]any{"status": "ignored"}},
		ingest.OutcomeClosed:  {http.StatusOK, map[string]any{"received": true, "status": "closed", "taskId": float64(9)}},
	}
	for status, tc := range cases {
		svc := &stubReviewService{outcome: ingest.Outcome{Status: status, TaskID: 9}}
		resp, body := serve(t, newHTTPHandler(svc, httpHandlerConfig{}), newWebhookRequest(`{}`, "pull_request", "sha256=00"))

		if resp.Code != tc.code {
			t.Fatalf("%s: status = %d, want %d", status, resp.Code, tc.code)
		}
		if fmt.Sprint(body) != fmt.Sprint(tc.want) {
			t.Fatalf("%s: body = %#v, want %#v", status, body, tc.want)
		}
	}
}

func TestWebhookErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err     error
		code    int
		message string
	}{
		{review.ErrAuthentication, http.StatusUnauthorized, "invalid signature"},
		{review.ErrMissingEventHeader, http.StatusBadRequest, review.ErrMissingEventHeader.Error()},
		{&review.MissingFieldError{Field: "repository.name"}, http.StatusBadRequest, "missing required field repository.name"},
		{errs.Mark(errors.New("dial tcp: refused"), review.ErrPersistence), http.StatusInternalServerError, "failed to persist review task"},
		{errs.Mark(errors.New("redis down"), review.ErrPublish), http.StatusInternalServerError, "failed to enqueue review job"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		svc := &stubReviewService{err: tc.err}
		resp, body := serve(t, newHTTPHandler(svc, httpHandlerConfig{}), newWebhookRequest(`{}`, "pull_request", "sha256=00"))

		if resp.Code != tc.code {
			t.Fatalf("%v: status = %d, want %d", tc.err, resp.Code, tc.code)
		}
		if body["error"] != tc.message {
			t.Fatalf("%v: error = %#v, want %q", tc.err, body["error"], tc.message)
		}
	}
}

func TestWebhookRejectsNonPostAndOversizedBodies(t *testing.T) {
	t.Parallel()

	svc := &stubReviewService{}
	handler := newHTTPHandler(svc, httpHandlerConfig{WebhookPath: "/hooks/github"})

	resp, _ := serve(t, handler, httptest.NewRequest(http.MethodGet, "/hooks/github", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", resp.Code)
	}

	oversized := strings.Repeat("a", maxWebhookBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/hooks/github", strings.NewReader(oversized))
	resp, body := serve(t, handler, req)
	if resp.Code != http.StatusBadRequest || body["error"] != "payload too large" {
		t.Fatalf("oversized status = %d, body = %#v", resp.Code, body)
	}
	if svc.called {
		t.Fatal("service called for rejected request")
	}

	resp, _ = serve(t, handler, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d, want 404", resp.Code)
	}
}

func TestReadEndpoints(t *testing.T) {
	t.Parallel()

	taskID := uint64(3)
	svc := &stubReviewService{logs: []review.TaskLogEntry{{ID: 1, TaskID: &taskID, EventType: "pull_request"}}}
	handler := newHTTPHandler(svc, httpHandlerConfig{})

	resp, body := serve(t, handler, httptest.NewRequest(http.MethodGet, "/logs?limit=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("logs status = %d", resp.Code)
	}
	if svc.logsLimit != 10 {
		t.Fatalf("logs limit = %d, want 10", svc.logsLimit)
	}
	if logs, ok := body["logs"].([]any); !ok || len(logs) != 1 {
		t.Fatalf("logs = %#v", body["logs"])
	}

	resp, body = serve(t, handler, httptest.NewRequest(http.MethodGet, "/reviews?limit=abc", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("reviews status = %d", resp.Code)
	}
	if svc.reviewsLimit != 0 {
		t.Fatalf("reviews limit = %d, want 0 for unparsable input", svc.reviewsLimit)
	}
	if reviews, ok := body["reviews"].([]any); !ok || len(reviews) != 0 {
		t.Fatalf("reviews = %#v, want empty list", body["reviews"])
	}

	resp, body = serve(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health status = %d, body = %#v", resp.Code, body)
	}

	failing := &stubReviewService{listErr: errors.New("db down")}
	resp, _ = serve(t, newHTTPHandler(failing, httpHandlerConfig{}), httptest.NewRequest(http.MethodGet, "/logs", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("failing logs status = %d, want 500", resp.Code)
	}
}

type pipeline struct {
	handler http.Handler
	db      *gorm.DB
	redis   *miniredis.Miniredis
}

func setupPipeline(t *testing.T) pipeline {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "reviewflow.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := ingest.NewService(
		repository.NewReviewRepository(db),
		uow.NewUnitOfWork(db),
		queueinfra.NewRedisPublisher(client, queueinfra.DefaultQueueName),
		ingest.Options{WebhookSecret: testSecret},
	)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	return pipeline{
		handler: newHTTPHandler(svc, httpHandlerConfig{WebhookPath: "/github/webhook"}),
		db:      db,
		redis:   mr,
	}
}

func (p pipeline) count(t *testing.T, table any) int64 {
	t.Helper()
	var n int64
	if err := p.db.Model(table).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", table, err)
	}
	return n
}

func (p pipeline) queued(t *testing.T) []review.WorkItem {
	t.Helper()
	if !p.redis.Exists(queueinfra.DefaultQueueName) {
		return nil
	}
	values, err := p.redis.List(queueinfra.DefaultQueueName)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	items := make([]review.WorkItem, 0, len(values))
	for _, raw := range values {
		var item review.WorkItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			t.Fatalf("decode work item: %v", err)
		}
		items = append(items, item)
	}
	return items
}

func prPayload(action string) string {
	return fmt.Sprintf(`{
		"action": %q,
		"number": 7,
		"installation": {"id": 42},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"pull_request": {"number": 7, "base": {"sha": "base000"}, "head": {"sha": "abc123"}},
		"sender": {"login": "octocat"}
	}`, action)
}

func TestPipelineOpenedIsPersistedAndQueued(t *testing.T) {
	p := setupPipeline(t)

	body := prPayload("opened")
	req := newWebhookRequest(body, "pull_request", ingest.Sign([]byte(body), testSecret))
	req.Header.Set("X-GitHub-Delivery", "d-1")
	resp, out := serve(t, p.handler, req)

	if resp.Code != http.StatusOK || out["status"] != "queued" {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var task model.ReviewTask
	if err := p.db.First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if task.Status != string(review.StatusQueued) || task.InstallationID != 42 || task.PRNumber != 7 || task.HeadSHA != "abc123" {
		t.Fatalf("task = %+v", task)
	}
	if got := p.count(t, &model.ReviewTaskLog{}); got != 1 {
		t.Fatalf("log rows = %d, want 1", got)
	}

	items := p.queued(t)
	want := review.WorkItem{
		TaskID:         task.ID,
		PRID:           7,
		Repo:           "widgets",
		Owner:          "acme",
		InstallationID: 42,
		BaseSHA:        "base000",
		HeadSHA:        "abc123",
		Action:         review.ActionOpened,
	}
	if len(items) != 1 || items[0] != want {
		t.Fatalf("queued = %+v, want [%+v]", items, want)
	}
}

func TestPipelineClosedIsPersistedButNotQueued(t *testing.T) {
	p := setupPipeline(t)

	for _, action := range []string{"opened", "synchronize", "closed"} {
		body := prPayload(action)
		resp, _ := serve(t, p.handler, newWebhookRequest(body, "pull_request", ingest.Sign([]byte(body), testSecret)))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body = %s", action, resp.Code, resp.Body.String())
		}
		if action == "closed" {
			var out map[string]any
			_ = json.Unmarshal(resp.Body.Bytes(), &out)
			if out["status"] != "closed" || out["received"] != true {
				t.Fatalf("closed response = %#v", out)
			}
		}
	}

	var task model.ReviewTask
	if err := p.db.First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if task.Status != string(review.StatusClosed) {
		t.Fatalf("task status = %q, want closed", task.Status)
	}
	if got := p.count(t, &model.ReviewTask{}); got != 1 {
		t.Fatalf("task rows = %d, want 1", got)
	}
	if got := p.count(t, &model.ReviewTaskLog{}); got != 3 {
		t.Fatalf("log rows = %d, want 3", got)
	}
	for _, item := range p.queued(t) {
		if item.Action == review.ActionClosed {
			t.Fatalf("closed event was queued: %+v", item)
		}
	}
	if got := len(p.queued(t)); got != 2 {
		t.Fatalf("queued items = %d, want 2", got)
	}
}

func TestPipelineUnsignedRequestWritesNothing(t *testing.T) {
	p := setupPipeline(t)

	resp, out := serve(t, p.handler, newWebhookRequest(prPayload("opened"), "pull_request", ""))
	if resp.Code != http.StatusUnauthorized || out["error"] != "invalid signature" {
		t.Fatalf("status = %d, body = %#v", resp.Code, out)
	}

	if got := p.count(t, &model.Installation{}); got != 0 {
		t.Fatalf("installation rows = %d, want 0", got)
	}
	if got := p.count(t, &model.ReviewTask{}); got != 0 {
		t.Fatalf("task rows = %d, want 0", got)
	}
	if got := p.count(t, &model.ReviewTaskLog{}); got != 0 {
		t.Fatalf("log rows = %d, want 0", got)
	}
	if items := p.queued(t); len(items) != 0 {
		t.Fatalf("queued items = %+v, want none", items)
	}
}

func TestPipelineLogsVisibleThroughReadAPI(t *testing.T) {
	p := setupPipeline(t)

	body := prPayload("reopened")
	if resp, _ := serve(t, p.handler, newWebhookRequest(body, "pull_request", ingest.Sign([]byte(body), testSecret))); resp.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.Code)
	}

	resp, out := serve(t, p.handler, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("logs status = %d", resp.Code)
	}
	logs, ok := out["logs"].([]any)
	if !ok || len(logs) != 1 {
		t.Fatalf("logs = %#v", out["logs"])
	}
	entry := logs[0].(map[string]any)
	if entry["event_type"] != "pull_request" || entry["action"] != "reopened" || entry["status"] != "queued" {
		t.Fatalf("log entry = %#v", entry)
	}
}
