package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/pool"
	mockpub "github.com/codeforge/judge-harness/internal/publisher/mock"
	mockrepo "github.com/codeforge/judge-harness/internal/repository/mock"
	"github.com/codeforge/judge-harness/internal/synth"
	"github.com/codeforge/judge-harness/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testDeps struct {
	store    *mockrepo.TestCaseStore
	verdicts *mockrepo.VerdictStore
	judge    *mockrepo.Judge
	pub      *mockpub.MockPublisher
}

func setupTestRouter(t *testing.T, checks map[string]HealthCheck) (*gin.Engine, *testDeps) {
	t.Helper()
	deps := &testDeps{
		store:    mockrepo.NewTestCaseStore(),
		verdicts: mockrepo.NewVerdictStore(),
		judge:    &mockrepo.Judge{},
		pub:      mockpub.NewMockPublisher(),
	}
	logger := zap.NewNop()

	workers := pool.NewWorkerPool(2, 4, logger)
	workers.Start(context.Background())
	t.Cleanup(workers.Stop)

	limits := domain.ExecutionLimits{CPUTimeLimit: 2, WallTimeLimit: 5, MemoryLimitKB: 262144, MaxFileSizeKB: 1024}
	runUC := usecase.NewRunBatchUsecase(deps.store, synth.Default(), deps.judge, workers, limits, logger)
	enqueueUC := usecase.NewEnqueueGradingUsecase(deps.verdicts, deps.pub, logger)
	verdictUC := usecase.NewGetVerdictUsecase(deps.verdicts, logger)

	return NewRouter(runUC, enqueueUC, verdictUC, checks, logger, 100, 1<<20), deps
}

func (d *testDeps) addCase(input, expected string) uuid.UUID {
	tc := &domain.TestCase{ID: uuid.New(), Input: input, ExpectedOutput: expected}
	d.store.AddTestCase(tc)
	return tc.ID
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunHandler_Success(t *testing.T) {
	router, deps := setupTestRouter(t, nil)
	ids := []uuid.UUID{deps.addCase("[2,7,11,15], 9", "[0,1]"), deps.addCase("[1,", "[0,1]")}

	w := postJSON(router, "/api/v1/run", map[string]any{
		"language":      "python",
		"code":          "def two_sum(nums, target):\n    return [0, 1]\n",
		"function_name": "two_sum",
		"test_case_ids": ids,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Outcomes []domain.JudgeOutcome `json:"outcomes"`
		Passed   int                   `json:"test_cases_passed"`
		Total    int                   `json:"total_test_cases"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Total != 2 || resp.Passed != 1 {
		t.Errorf("expected 1/2 passed, got %d/%d", resp.Passed, resp.Total)
	}
	if resp.Outcomes[1].Failure != domain.FailureMalformedInput {
		t.Errorf("expected malformed input on second case, got %q", resp.Outcomes[1].Failure)
	}
}

func TestRunHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing fields", map[string]any{"language": "python"}, http.StatusBadRequest},
		{"unsupported language", map[string]any{
			"language": "swift", "code": "func f() {}", "function_name": "f", "test_case_ids": []string{uuid.NewString()},
		}, http.StatusBadRequest},
		{"empty test case list", map[string]any{
			"language": "python", "code": "def f(): pass", "function_name": "f", "test_case_ids": []string{},
		}, http.StatusBadRequest},
		{"unknown problem", map[string]any{
			"problem_id": uuid.NewString(), "language": "python", "code": "def f(): pass", "function_name": "f",
			"test_case_ids": []string{uuid.NewString()},
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, deps := setupTestRouter(t, nil)
			w := postJSON(router, "/api/v1/run", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if deps.judge.CallCount() != 0 {
				t.Error("judge should not be called")
			}
		})
	}
}

func validSubmission() map[string]any {
	return map[string]any{
		"problem_id":    uuid.NewString(),
		"language":      "cpp",
		"code":          "int add(int a, int b) { return a + b; }",
		"function_name": "add",
	}
}

func TestSubmitHandler_Success(t *testing.T) {
	router, deps := setupTestRouter(t, nil)

	w := postJSON(router, "/api/v1/submissions", validSubmission())
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != domain.VerdictQueued {
		t.Errorf("expected QUEUED, got %s", resp.Status)
	}
	if len(deps.pub.Published) != 1 {
		t.Errorf("expected 1 published job, got %d", len(deps.pub.Published))
	}
}

func TestSubmitHandler_InvalidLanguage(t *testing.T) {
	router, _ := setupTestRouter(t, nil)
	body := validSubmission()
	body["language"] = "cobol"

	w := postJSON(router, "/api/v1/submissions", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_EmptyBody(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewBuffer([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_PublishFailure(t *testing.T) {
	router, deps := setupTestRouter(t, nil)
	deps.pub.PublishFn = func(ctx context.Context, job *domain.GradingJob) error {
		return errors.New("broker down")
	}

	w := postJSON(router, "/api/v1/submissions", validSubmission())
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_BodyTooLarge(t *testing.T) {
	router, _ := setupTestRouter(t, nil)
	body := validSubmission()
	body["code"] = strings.Repeat("x", 2<<20)

	w := postJSON(router, "/api/v1/submissions", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestGetByIDHandler_Success(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	submitW := postJSON(router, "/api/v1/submissions", validSubmission())
	var submitResp domain.SubmitResponse
	_ = json.Unmarshal(submitW.Body.Bytes(), &submitResp)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+submitResp.JobID.String(), nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", getW.Code, getW.Body.String())
	}

	var verdict domain.Verdict
	if err := json.Unmarshal(getW.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("failed to unmarshal verdict: %v", err)
	}
	if verdict.JobID != submitResp.JobID {
		t.Errorf("expected job ID %s, got %s", submitResp.JobID, verdict.JobID)
	}
	if verdict.Status != domain.VerdictQueued {
		t.Errorf("expected status QUEUED, got %s", verdict.Status)
	}
}

func TestGetByIDHandler_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/00000000-0000-0000-0000-000000000001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetByIDHandler_InvalidUUID(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLanguageHandler(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string][]domain.LanguageInfo
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	languages := resp["languages"]
	if len(languages) != len(domain.Languages()) {
		t.Errorf("expected %d languages, got %d", len(domain.Languages()), len(languages))
	}
	synthesizable := 0
	for _, l := range languages {
		if l.JudgeID == 0 {
			t.Errorf("language %s has no judge id", l.Name)
		}
		if l.Synthesizable {
			synthesizable++
		}
	}
	if synthesizable != 4 {
		t.Errorf("expected 4 synthesizable languages, got %d", synthesizable)
	}
}

func TestLanguageHandler_SynthesizableFilter(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages?synthesizable=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string][]domain.LanguageInfo
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp["languages"]) != 4 {
		t.Errorf("expected 4 languages, got %d", len(resp["languages"]))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/languages?synthesizable=maybe", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	checks := map[string]HealthCheck{
		"redis":    func(ctx context.Context) error { return nil },
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
	}
	router, _ := setupTestRouter(t, checks)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.Services["redis"] != "ok" || resp.Services["postgres"] != "down" {
		t.Errorf("unexpected services %v", resp.Services)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestStreamRun(t *testing.T) {
	router, deps := setupTestRouter(t, nil)
	ids := []uuid.UUID{deps.addCase("2", "4"), deps.addCase("3", "9")}

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/run/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(domain.RunRequest{
		Language:     "javascript",
		Code:         "function square(n) { return n * n; }",
		FunctionName: "square",
		TestCaseIDs:  ids,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	outcomes := 0
	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch frame.Type {
		case "outcome":
			outcomes++
			if frame.Outcome == nil || frame.Outcome.TestCaseID != ids[frame.Index] {
				t.Errorf("outcome frame does not match its index: %+v", frame)
			}
		case "result":
			if outcomes != 2 {
				t.Errorf("expected 2 outcome frames before the result, got %d", outcomes)
			}
			if frame.Result == nil || len(frame.Result.Outcomes) != 2 {
				t.Fatalf("expected a 2-outcome result, got %+v", frame.Result)
			}
			return
		default:
			t.Fatalf("unexpected frame %+v", frame)
		}
	}
}

func TestStreamRun_RejectsInvalidRequest(t *testing.T) {
	router, _ := setupTestRouter(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/run/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteJSON(domain.RunRequest{Language: "ruby", Code: "x", FunctionName: "f", TestCaseIDs: []uuid.UUID{uuid.New()}})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame streamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "error" || !strings.Contains(frame.Error, "unsupported language") {
		t.Errorf("expected unsupported language error, got %+v", frame)
	}
}

func TestStreamVerdict(t *testing.T) {
	router, deps := setupTestRouter(t, nil)
	jobID := uuid.New()
	_ = deps.verdicts.Save(context.Background(), &domain.Verdict{JobID: jobID, Status: domain.VerdictCompleted, Accepted: true})

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/submissions/" + jobID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var verdict domain.Verdict
	if err := conn.ReadJSON(&verdict); err != nil {
		t.Fatalf("read: %v", err)
	}
	if verdict.Status != domain.VerdictCompleted || !verdict.Accepted {
		t.Errorf("unexpected verdict %+v", verdict)
	}
}
