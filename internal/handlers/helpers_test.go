package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/config"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/services"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// stubAssessments keeps rows in insertion order.
type stubAssessments struct {
	mu   sync.Mutex
	rows []*models.CandidateAssessment
}

func (s *stubAssessments) CreateOrGet(_ context.Context, _ *gorm.DB, a *models.CandidateAssessment) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.SubmissionKey == a.SubmissionKey {
			return r.ID, true, nil
		}
	}
	a.ID = fmt.Sprintf("a%d", len(s.rows)+1)
	cp := *a
	s.rows = append(s.rows, &cp)
	return a.ID, false, nil
}

func (s *stubAssessments) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.CandidateAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *stubAssessments) GetBySubmissionKey(_ context.Context, _ *gorm.DB, key string) (*models.CandidateAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.SubmissionKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *stubAssessments) List(_ context.Context, _ *gorm.DB, f repositories.AssessmentFilters) ([]*models.CandidateAssessment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CandidateAssessment
	for _, r := range s.rows {
		if f.SuspiciousOnly && !r.SuspiciousActivity {
			continue
		}
		out = append(out, r)
	}
	total := int64(len(out))
	if f.Offset >= len(out) {
		return []*models.CandidateAssessment{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

type stubRepository struct {
	assessments *stubAssessments
}

func (r *stubRepository) Assessment() repositories.AssessmentRepository { return r.assessments }
func (r *stubRepository) User() repositories.UserRepository             { return nil }
func (r *stubRepository) Ping(context.Context) error { return nil }
func (r *stubRepository) Close() error               { return nil }

// fakeParser accepts "Bearer <user-type>" tokens.
type fakeParser struct{}

func (fakeParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	if token == "bad" {
		return nil, fmt.Errorf("signature is invalid")
	}
	claims := &casdoorsdk.Claims{}
	claims.User.Id = "user-" + token
	claims.User.Type = token
	claims.User.DisplayName = "Test " + token
	return claims, nil
}

type testServer struct {
	router *gin.Engine
	sm     services.ServiceManager
	repo   *stubRepository
}

func newTestServer(t *testing.T, auth *CasdoorAuthMiddleware) *testServer {
	t.Helper()

	logger := testLogger()
	repo := &stubRepository{assessments: &stubAssessments{}}
	reg := prometheus.NewRegistry()
	v := validator.New()

	cfg := services.DefaultServiceManagerConfig()
	cfg.AutoSubmitDelay = 0
	sm := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Validator: v,
		Logger:    logger.Slog(),
		Registry:  reg,
	}, cfg)
	if err := sm.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { sm.Shutdown(context.Background()) })

	if auth == nil {
		auth = NewCasdoorAuthMiddleware(config.CasdoorConfig{}, nil, false, logger)
	}

	router := gin.New()
	SetupMiddleware(router, logger)
	NewHandlerManager(sm, v, logger, auth, reg).SetupRoutes(router)

	return &testServer{router: router, sm: sm, repo: repo}
}

func (s *testServer) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body %s", w.Code, want, w.Body.String())
	}
}
