package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bugmarket/config"
	"bugmarket/database"
	"bugmarket/logger"
	"bugmarket/middleware"
	"bugmarket/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	t.Cleanup(func() {
		database.DB = oldDB
		sqlDB.Close()
	})

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		JWT:       config.JWTConfig{Secret: "router-test", ExpireTime: time.Hour},
		RateLimit: config.RateLimitConfig{LoginMaxAttempts: 5, LoginWindow: time.Minute},
	}
	middleware.InitJWT(cfg)
	return SetupRouter(cfg, Options{Logger: logger.Discard()}), mock
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := setupRouter(t)

	w := serve(r, "GET", "/health", "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, "GET", "/metrics", "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "bugmarket_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := setupRouter(t)

	for _, path := range []string{"/api/user/profile", "/api/order/my", "/api/admin/orders"} {
		w := serve(r, "GET", path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := serve(r, "POST", "/api/bug/1/take", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesCheckRoleFromDatabase(t *testing.T) {
	r, mock := setupRouter(t)

	// token 中声称是超级管理员，数据库中已降为普通用户
	token, err := middleware.GenerateToken(5, "bob", models.RoleSuperAdmin, time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "status"}).AddRow(5, "bob", 0, 0))

	w := serve(r, "POST", "/api/admin/db/reset", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminOnlyRoutesRejectAdmin(t *testing.T) {
	r, mock := setupRouter(t)

	token, err := middleware.GenerateToken(2, "admin", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	for _, route := range [][2]string{
		{"POST", "/api/admin/manual-intervention"},
		{"PUT", "/api/admin/time-rules/1"},
		{"POST", "/api/admin/time-rules/sweep"},
		{"GET", "/api/admin/operation-logs"},
		{"POST", "/api/admin/users"},
	} {
		mock.ExpectQuery("SELECT .* FROM `users`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "status"}).AddRow(2, "admin", 1, 0))
		w := serve(r, route[0], route[1], token)
		assert.Equal(t, http.StatusForbidden, w.Code, route[1])
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoRouteAndCORS(t *testing.T) {
	r, _ := setupRouter(t)

	w := serve(r, "GET", "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":404`)

	w = serve(r, "OPTIONS", "/api/bug", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://bug.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://bug.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://bug.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
