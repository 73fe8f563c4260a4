package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"finbot/internal/chat"
	"finbot/internal/logger"
	"finbot/internal/models"
	"finbot/internal/pagination"
	"finbot/internal/services"
	"finbot/internal/validator"
)

const testUserID = "0191b8a0-0000-7000-8000-000000000001"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// --- mock services ---

type mockUserService struct {
	createUserFn     func(email, password, name string) (*models.User, error)
	getUserByEmailFn func(email string) (*models.User, error)
	getUserByIDFn    func(id string) (*models.User, error)
	attemptLoginFn   func(email, password string) (*models.User, error)
}

func (m *mockUserService) CreateUser(email, password, name string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, name)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

type mockTransactionService struct {
	createTransactionFn   func(userID string, in services.TransactionInput) (*services.TransactionResult, error)
	getUserTransactionsFn func(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn  func(userID, id string) (*models.Transaction, error)
	updateTransactionFn   func(userID, id string, in services.TransactionUpdate) (*services.TransactionResult, error)
	deleteTransactionFn   func(userID, id string) error
}

func (m *mockTransactionService) CreateTransaction(userID string, in services.TransactionInput) (*services.TransactionResult, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(userID, in)
	}
	return &services.TransactionResult{Transaction: &models.Transaction{}}, nil
}

func (m *mockTransactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(userID, id string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(userID, id)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) UpdateTransaction(userID, id string, in services.TransactionUpdate) (*services.TransactionResult, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(userID, id, in)
	}
	return &services.TransactionResult{Transaction: &models.Transaction{}}, nil
}

func (m *mockTransactionService) DeleteTransaction(userID, id string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(userID, id)
	}
	return nil
}

type mockBudgetService struct {
	createBudgetFn     func(userID string, in services.BudgetInput) (*models.Budget, error)
	getUserBudgetsFn   func(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	getBudgetDetailFn  func(userID, id string) (*services.BudgetDetail, error)
	getCurrentBudgetFn func(userID string, at time.Time) (*services.BudgetDetail, error)
	updateBudgetFn     func(userID, id string, in services.BudgetInput, version *int) (*models.Budget, error)
	deleteBudgetFn     func(userID, id string) error
	recalculateFn      func(userID, id string) (*models.Budget, error)
}

func (m *mockBudgetService) CreateBudget(userID string, in services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, in)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(_, _ string) (*models.Budget, error) {
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetBudgetDetail(userID, id string) (*services.BudgetDetail, error) {
	if m.getBudgetDetailFn != nil {
		return m.getBudgetDetailFn(userID, id)
	}
	return &services.BudgetDetail{Budget: &models.Budget{}}, nil
}

func (m *mockBudgetService) GetCurrentBudget(userID string, at time.Time) (*services.BudgetDetail, error) {
	if m.getCurrentBudgetFn != nil {
		return m.getCurrentBudgetFn(userID, at)
	}
	return &services.BudgetDetail{Budget: &models.Budget{}}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, id string, in services.BudgetInput, version *int) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, id, in, version)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, id string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, id)
	}
	return nil
}

func (m *mockBudgetService) RecalculateBudget(userID, id string) (*models.Budget, error) {
	if m.recalculateFn != nil {
		return m.recalculateFn(userID, id)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) SetCategoryAllocation(_ string, _ models.BudgetPeriod, _ time.Time, _ string, _ int64) (*models.Budget, error) {
	return &models.Budget{}, nil
}

type mockReportService struct {
	getSummaryFn        func(userID string, period models.BudgetPeriod, at time.Time) (*services.Summary, error)
	getTrendsFn         func(userID string, months int) (*services.Trends, error)
	getAnalysisFn       func(userID string, start, end time.Time) (*services.Analysis, error)
	getBudgetOverviewFn func(userID string, months int) (*services.BudgetOverview, error)
	getPeriodSummaryFn  func(userID string, start, end time.Time) (*services.PeriodSummary, error)
}

func (m *mockReportService) GetSummary(userID string, period models.BudgetPeriod, at time.Time) (*services.Summary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(userID, period, at)
	}
	return &services.Summary{}, nil
}

func (m *mockReportService) GetTrends(userID string, months int) (*services.Trends, error) {
	if m.getTrendsFn != nil {
		return m.getTrendsFn(userID, months)
	}
	return &services.Trends{}, nil
}

func (m *mockReportService) GetAnalysis(userID string, start, end time.Time) (*services.Analysis, error) {
	if m.getAnalysisFn != nil {
		return m.getAnalysisFn(userID, start, end)
	}
	return &services.Analysis{}, nil
}

func (m *mockReportService) GetBudgetOverview(userID string, months int) (*services.BudgetOverview, error) {
	if m.getBudgetOverviewFn != nil {
		return m.getBudgetOverviewFn(userID, months)
	}
	return &services.BudgetOverview{}, nil
}

func (m *mockReportService) GetPeriodSummary(userID string, start, end time.Time) (*services.PeriodSummary, error) {
	if m.getPeriodSummaryFn != nil {
		return m.getPeriodSummaryFn(userID, start, end)
	}
	return &services.PeriodSummary{}, nil
}

type mockActivationService struct {
	createCodeFn     func(createdBy, userID string, duration time.Duration, maxIdentities int) (*models.ActivationCode, error)
	verifyCodeFn     func(code string) (*models.ActivationCode, error)
	activateFn       func(code string, channel models.ChatChannel, identity string) (*models.ChatLink, error)
	getUserLinksFn   func(userID string) ([]models.ChatLink, error)
	listCodesFn      func(page pagination.PageRequest, filter services.ActivationCodeFilter) (*pagination.PageResponse[models.ActivationCode], error)
	extendCodeFn     func(code string, duration time.Duration) (*models.ActivationCode, error)
	deactivateCodeFn func(code string) error
}

func (m *mockActivationService) CreateCode(createdBy, userID string, duration time.Duration, maxIdentities int) (*models.ActivationCode, error) {
	if m.createCodeFn != nil {
		return m.createCodeFn(createdBy, userID, duration, maxIdentities)
	}
	return &models.ActivationCode{}, nil
}

func (m *mockActivationService) VerifyCode(code string) (*models.ActivationCode, error) {
	if m.verifyCodeFn != nil {
		return m.verifyCodeFn(code)
	}
	return &models.ActivationCode{}, nil
}

func (m *mockActivationService) Activate(code string, channel models.ChatChannel, identity string) (*models.ChatLink, error) {
	if m.activateFn != nil {
		return m.activateFn(code, channel, identity)
	}
	return &models.ChatLink{}, nil
}

func (m *mockActivationService) GetUserLinks(userID string) ([]models.ChatLink, error) {
	if m.getUserLinksFn != nil {
		return m.getUserLinksFn(userID)
	}
	return nil, nil
}

func (m *mockActivationService) ResolveIdentity(_ models.ChatChannel, _ string) (*models.ChatLink, error) {
	return &models.ChatLink{}, nil
}

func (m *mockActivationService) ListCodes(page pagination.PageRequest, filter services.ActivationCodeFilter) (*pagination.PageResponse[models.ActivationCode], error) {
	if m.listCodesFn != nil {
		return m.listCodesFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.ActivationCode{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockActivationService) ExtendCode(code string, duration time.Duration) (*models.ActivationCode, error) {
	if m.extendCodeFn != nil {
		return m.extendCodeFn(code, duration)
	}
	return &models.ActivationCode{}, nil
}

func (m *mockActivationService) DeactivateCode(code string) error {
	if m.deactivateCodeFn != nil {
		return m.deactivateCodeFn(code)
	}
	return nil
}

func (m *mockActivationService) ExpireStale(_ time.Time) (int64, int64, error) {
	return 0, 0, nil
}

// mockAuditService records the actions it was asked to log.
type mockAuditService struct {
	mu      sync.Mutex
	actions []string
}

func (m *mockAuditService) Log(_, action, _, _, _ string, _ map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

func (m *mockAuditService) logged(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		if a == action {
			return true
		}
	}
	return false
}

type mockBot struct {
	status     chat.Status
	restartErr error
	restarts   int
}

func (m *mockBot) Status() chat.Status { return m.status }

func (m *mockBot) Restart(_ context.Context) error {
	m.restarts++
	if m.restartErr != nil {
		return m.restartErr
	}
	m.status.Running = true
	return nil
}

type mockMessageHandler struct {
	handleFn func(ctx context.Context, msg chat.Message) string
}

func (m *mockMessageHandler) Handle(ctx context.Context, msg chat.Message) string {
	if m.handleFn != nil {
		return m.handleFn(ctx, msg)
	}
	return ""
}

// --- test helpers ---

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// dataOf returns the "data" object of a success envelope.
func dataOf(t *testing.T, result map[string]interface{}) map[string]interface{} {
	t.Helper()
	if result["success"] != true {
		t.Fatalf("expected success=true, got %v", result)
	}
	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", result["data"])
	}
	return data
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
