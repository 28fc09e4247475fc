package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/billruns"
	"billing-backend/internal/blocking"
	"billing-backend/internal/creation"
	"billing-backend/internal/engine/current"
	"billing-backend/internal/engine/legacy"
	"billing-backend/internal/queue"
	"billing-backend/internal/regions"
	"billing-backend/internal/setup"
)

const anglian = "b1f6f3a4-0001-4b5e-9c1a-000000000001"

type recordingQueue struct {
	msgs []queue.Message
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	q.msgs = append(q.msgs, msg)
	return nil
}

type recordingLegacy struct {
	batches []legacy.Batch
}

func (l *recordingLegacy) Request(ctx context.Context, batch legacy.Batch) error {
	_ = ctx
	l.batches = append(l.batches, batch)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	billRuns *billruns.MemoryRepo
	queue    *recordingQueue
	legacy   *recordingLegacy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	regionRepo := regions.NewMemoryRepo(regions.DevRegions()...)
	billRepo := billruns.NewMemoryRepo(regionRepo.Names())
	sessions := setup.NewService(setup.NewMemoryRepo())
	q := &recordingQueue{}
	old := &recordingLegacy{}

	dispatcher := &creation.Dispatcher{
		Current:  &current.Starter{Repo: billRepo, Queue: q},
		Legacy:   old,
		Sessions: sessions,
	}
	h := NewHandler(sessions, blocking.NewService(billRepo, true), dispatcher, regionRepo)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userEmail", "billing@example.com")
		c.Next()
	})
	h.RegisterRoutes(router.Group("/api/v1"))
	return &testEnv{router: router, billRuns: billRepo, queue: q, legacy: old}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) newSession(t *testing.T, answers map[string]string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/bill-runs/setup", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", resp.Code)
	}
	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if answers != nil {
		resp = e.do(t, http.MethodPatch, "/api/v1/bill-runs/setup/"+created.SessionID, answers)
		if resp.Code != http.StatusOK {
			t.Fatalf("update session: expected 200, got %d: %s", resp.Code, resp.Body.String())
		}
	}
	return created.SessionID
}

type errorEnvelope struct {
	Error struct {
		Code    string    `json:"code"`
		Message string    `json:"message"`
		Details CheckView `json:"details"`
	} `json:"error"`
}

func TestSubmitAnnualStartsCurrentEngineAndDeletesSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, map[string]string{"region": anglian, "type": "annual"})

	check := env.do(t, http.MethodGet, "/api/v1/bill-runs/setup/"+id+"/check", nil)
	if check.Code != http.StatusOK {
		t.Fatalf("check: expected 200, got %d", check.Code)
	}
	var view CheckView
	if err := json.Unmarshal(check.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if !view.CanCreate || view.Trigger != "current" || view.Region != "Anglian" {
		t.Fatalf("unexpected check view: %+v", view)
	}

	resp := env.do(t, http.MethodPost, "/api/v1/bill-runs/setup/"+id+"/submit", nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(env.queue.msgs) != 1 {
		t.Fatalf("expected one queued job, got %d", len(env.queue.msgs))
	}
	run, err := env.billRuns.GetByID(context.Background(), env.queue.msgs[0].BillRunID)
	if err != nil {
		t.Fatalf("created run: %v", err)
	}
	if run.CreatedBy != "billing@example.com" || run.Status != billruns.StatusQueued {
		t.Fatalf("unexpected run: %+v", run)
	}

	if got := env.do(t, http.MethodGet, "/api/v1/bill-runs/setup/"+id, nil); got.Code != http.StatusNotFound {
		t.Fatalf("expected session deleted, got %d", got.Code)
	}
}

func TestSubmitBlockedByExistingAnnual(t *testing.T) {
	env := newTestEnv(t)
	first := env.newSession(t, map[string]string{"region": anglian, "type": "annual"})
	if resp := env.do(t, http.MethodPost, "/api/v1/bill-runs/setup/"+first+"/submit", nil); resp.Code != http.StatusAccepted {
		t.Fatalf("first submit: expected 202, got %d", resp.Code)
	}

	second := env.newSession(t, map[string]string{"region": anglian, "type": "annual"})
	resp := env.do(t, http.MethodPost, "/api/v1/bill-runs/setup/"+second+"/submit", nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	var body errorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "bill_run_exists" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Details.WarningMessage != "You can only have one annual bill run per region in a financial year" {
		t.Fatalf("unexpected warning %q", body.Error.Details.WarningMessage)
	}
	if len(body.Error.Details.BillRuns) != 1 || body.Error.Details.BillRuns[0].Link == "" {
		t.Fatalf("expected blocking bill run in view: %+v", body.Error.Details.BillRuns)
	}
	if len(env.queue.msgs) != 1 {
		t.Fatalf("blocked submit must not start an engine")
	}
	if got := env.do(t, http.MethodGet, "/api/v1/bill-runs/setup/"+second, nil); got.Code != http.StatusOK {
		t.Fatalf("blocked session must be kept, got %d", got.Code)
	}
}

func TestSubmitSupplementaryWithoutAnnualCannotCreate(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, map[string]string{"region": anglian, "type": "supplementary"})

	resp := env.do(t, http.MethodPost, "/api/v1/bill-runs/setup/"+id+"/submit", nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var body errorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "cannot_create" || body.Error.Message != cannotCreateMessage("Supplementary") {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
	if body.Error.Details.ToFinancialYearEnding != 0 || body.Error.Details.CanCreate {
		t.Fatalf("unexpected view: %+v", body.Error.Details)
	}
}

func TestSubmitSupplementaryBothEngines(t *testing.T) {
	env := newTestEnv(t)
	env.billRuns.Seed(billruns.BillRun{
		ID:                    "annual-2025",
		RegionID:              anglian,
		BatchType:             billruns.BatchAnnual,
		Scheme:                billruns.SchemeSROC,
		Status:                billruns.StatusSent,
		ToFinancialYearEnding: 2025,
	})
	id := env.newSession(t, map[string]string{"region": anglian, "type": "supplementary"})

	resp := env.do(t, http.MethodPost, "/api/v1/bill-runs/setup/"+id+"/submit", nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var body submitResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Trigger != "both" || body.ToFinancialYearEnding != 2025 {
		t.Fatalf("unexpected response: %+v", body)
	}
	if len(env.queue.msgs) != 1 || len(env.legacy.batches) != 1 {
		t.Fatalf("expected both engines, got current=%d legacy=%d", len(env.queue.msgs), len(env.legacy.batches))
	}
	if env.legacy.batches[0].FinancialYearEnding != 2025 || env.legacy.batches[0].BatchType != billruns.BatchSupplementary {
		t.Fatalf("unexpected legacy batch: %+v", env.legacy.batches[0])
	}
}

func TestUpdateValidatesAnswers(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, nil)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{name: "unknown type", body: map[string]string{"type": "weekly"}, want: http.StatusBadRequest},
		{name: "bad year", body: map[string]string{"year": "20x5"}, want: http.StatusBadRequest},
		{name: "bad season", body: map[string]string{"season": "spring"}, want: http.StatusBadRequest},
		{name: "unknown region", body: map[string]string{"region": "nowhere"}, want: http.StatusUnprocessableEntity},
		{name: "valid", body: map[string]string{"type": "two_part_tariff", "year": "2021", "season": "summer"}, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPatch, "/api/v1/bill-runs/setup/"+id, tc.body)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}

	if resp := env.do(t, http.MethodPatch, "/api/v1/bill-runs/setup/missing", map[string]string{"type": "annual"}); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing session, got %d", resp.Code)
	}
}

func TestCheckIncompleteSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, map[string]string{"type": "annual"})

	resp := env.do(t, http.MethodGet, "/api/v1/bill-runs/setup/"+id+"/check", nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "incomplete" || body.Error.Details["field"] != "region" {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
}
