package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/config"
	"github.com/goblog-dev/goblog/internal/db"
	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"github.com/goblog-dev/goblog/internal/throttle"
	"gorm.io/gorm"
)

func newAuthTestServer(t *testing.T, policy throttle.Policy) (*gin.Engine, *gorm.DB, *throttle.Guard) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "auth.db"))
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate database: %v", errMigrate)
	}

	guard := throttle.NewGuard(policy)
	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	handler := NewAuthHandler(conn, jwtCfg, guard)

	engine := gin.New()
	engine.POST("/v0/auth/register", handler.Register)
	engine.POST("/v0/auth/login", handler.Login)
	engine.POST("/v0/throttle/reset", func(c *gin.Context) {
		SetCurrentUser(c, &models.User{ID: 1, Username: "root", Admin: true})
	}, handler.ResetThrottle)
	return engine, conn, guard
}

func makeLoginUser(t *testing.T, conn *gorm.DB, username, password string) {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{Username: username, Name: username, Password: hash}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	engine, conn, _ := newAuthTestServer(t, throttle.DefaultPolicy())
	makeLoginUser(t, conn, "alice", "s3cret")

	rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if errParse := json.Unmarshal(rec.Body.Bytes(), &out); errParse != nil {
		t.Fatalf("parse response: %v", errParse)
	}
	if out.Token == "" {
		t.Fatalf("expected a token in the response")
	}
	claims, errJWT := security.ParseUserToken("test-secret", out.Token)
	if errJWT != nil {
		t.Fatalf("parse token: %v", errJWT)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected token for alice, got %q", claims.Username)
	}
}

func TestLoginFailureReportsRemainingAttempts(t *testing.T) {
	engine, conn, _ := newAuthTestServer(t, throttle.DefaultPolicy())
	makeLoginUser(t, conn, "alice", "s3cret")

	rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var out struct {
		Remaining int `json:"remaining_attempts"`
	}
	if errParse := json.Unmarshal(rec.Body.Bytes(), &out); errParse != nil {
		t.Fatalf("parse response: %v", errParse)
	}
	if out.Remaining != 4 {
		t.Fatalf("expected 4 remaining attempts, got %d", out.Remaining)
	}
}

func TestLoginLockoutBlocksCorrectPassword(t *testing.T) {
	policy := throttle.Policy{MaxAttempts: 2, LockoutDuration: 15 * time.Minute, ResetWindow: 30 * time.Minute}
	engine, conn, _ := newAuthTestServer(t, policy)
	makeLoginUser(t, conn, "alice", "s3cret")

	postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "wrong"})
	rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "wrong"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the locking attempt, got %d", rec.Code)
	}

	// The lock holds even with valid credentials.
	rec = postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while locked, got %d", rec.Code)
	}
	var out struct {
		Retry int `json:"retry_after_minutes"`
	}
	if errParse := json.Unmarshal(rec.Body.Bytes(), &out); errParse != nil {
		t.Fatalf("parse response: %v", errParse)
	}
	if out.Retry <= 0 || out.Retry > 15 {
		t.Fatalf("expected retry_after_minutes in (0, 15], got %d", out.Retry)
	}
}

func TestLoginUnknownUserCountsAsFailure(t *testing.T) {
	engine, _, guard := newAuthTestServer(t, throttle.DefaultPolicy())

	rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "ghost", "password": "whatever"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := guard.RemainingAttempts("ghost"); got != 4 {
		t.Fatalf("expected failure recorded for unknown user, remaining %d", got)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	engine, _, _ := newAuthTestServer(t, throttle.DefaultPolicy())

	rec := postJSON(t, engine, "/v0/auth/register", gin.H{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = postJSON(t, engine, "/v0/auth/register", gin.H{"username": "alice", "password": "other"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}
}

func TestLoginRecordsAudit(t *testing.T) {
	engine, conn, _ := newAuthTestServer(t, throttle.DefaultPolicy())
	makeLoginUser(t, conn, "alice", "s3cret")

	rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var count int64
	if errCount := conn.Model(&models.LoginAudit{}).Where("username = ?", "alice").Count(&count).Error; errCount != nil {
		t.Fatalf("count audits: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one audit row, got %d", count)
	}
}

func TestThrottleResetUnblocksLockedAccount(t *testing.T) {
	engine, conn, _ := newAuthTestServer(t, throttle.Policy{MaxAttempts: 2, LockoutDuration: 15 * time.Minute, ResetWindow: 30 * time.Minute})
	makeLoginUser(t, conn, "bob", "s3cret")

	for i := 0; i < 2; i++ {
		postJSON(t, engine, "/v0/auth/login", gin.H{"username": "bob", "password": "wrong"})
	}
	if rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "bob", "password": "s3cret"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while locked, got %d", rec.Code)
	}

	rec := postJSON(t, engine, "/v0/throttle/reset", gin.H{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from reset, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Cleared int `json:"cleared"`
	}
	if errParse := json.Unmarshal(rec.Body.Bytes(), &out); errParse != nil {
		t.Fatalf("parse response: %v", errParse)
	}
	if out.Cleared == 0 {
		t.Fatalf("expected reset to clear records")
	}

	if rec := postJSON(t, engine, "/v0/auth/login", gin.H{"username": "bob", "password": "s3cret"}); rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed after reset, got %d: %s", rec.Code, rec.Body.String())
	}
}
