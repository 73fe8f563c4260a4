package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"finbot/internal/config"
	"finbot/internal/logger"
	"finbot/internal/testutil"
)

const testAPIKey = "gateway-secret"

// testApp holds the full application stack for end-to-end tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		BudgetWarningThreshold:    80,
		BudgetCriticalThreshold:   90,
		ActivationDefaultDuration: 7 * 24 * time.Hour,
	}
	router := NewRouter(NewServices(db, cfg, nil), Options{InternalAPIKey: testAPIKey})
	return &testApp{DB: db, Router: router}
}

func (app *testApp) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// request makes an HTTP request with an optional bearer token.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return app.do(method, path, body, headers)
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// data returns the payload of a success envelope.
func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	result := parseJSON(t, rec)
	if result["success"] != true {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	d, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %s", rec.Body.String())
	}
	return d
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, _ := parseJSON(t, rec)["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"password123","name":"Test User"}`, email)
	rec := app.request(http.MethodPost, "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	d := data(t, rec)
	user := d["user"].(map[string]interface{})
	return d["token"].(string), user["id"].(string)
}

// loginAdmin creates an admin fixture and logs in as it.
func (app *testApp) loginAdmin(t *testing.T) string {
	t.Helper()
	admin := testutil.CreateTestAdmin(t, app.DB)
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, admin.Email, testutil.TestPassword)
	rec := app.request(http.MethodPost, "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login failed: %d %s", rec.Code, rec.Body.String())
	}
	return data(t, rec)["token"].(string)
}
