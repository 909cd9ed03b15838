package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/soundmates/server/api/rest"
	"github.com/soundmates/server/api/sse"
	"github.com/soundmates/server/audit"
	"github.com/soundmates/server/cache"
	"github.com/soundmates/server/config"
	"github.com/soundmates/server/events"
	"github.com/soundmates/server/messaging"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/scheduler"
	"github.com/soundmates/server/social"
	"github.com/soundmates/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TestServer wraps a real HTTP server with all subsystems wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Audit  *audit.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Sec    config.SecurityConfig
}

const testAdminKey = "integration-admin-key"

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	auditSvc := audit.New(db, logger)
	sched := scheduler.New(logger)

	// ---- Services ----
	socialSvc := social.NewService(db, pubsub, logger)
	messagingSvc := messaging.NewService(db, pubsub, logger)
	eventsSvc := events.NewService(db, c, logger)

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(sec))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes (mirrors main.go) ----
	authH := apirest.NewAuthHandler(db, c, sec)
	userH := apirest.NewUserHandler(db)
	socialH := apirest.NewSocialHandler(socialSvc, auditSvc, config.SocialConfig{DiscoverLimit: 50})
	messagingH := apirest.NewMessagingHandler(messagingSvc, socialSvc)
	settingsH := apirest.NewSettingsHandler(db)
	eventsH := apirest.NewEventsHandler(eventsSvc, config.EventsConfig{RecommendLimit: 8, SearchLimit: 8})
	adminH := apirest.NewAdminHandler(db, eventsSvc, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		usersG := api.Group("/users")
		usersG.Use(mw.Auth(sec, c))
		usersG.GET("/me", userH.GetProfile)
		usersG.PATCH("/me", userH.UpdateProfile)
		usersG.PUT("/me/music-token", userH.LinkMusicToken)
		usersG.DELETE("/me/music-token", userH.UnlinkMusicToken)
		usersG.PUT("/me/listening-vector", userH.UpsertListeningVector)
		usersG.GET("/:id", userH.GetProfile)
		usersG.GET("/:id/listening-vector", userH.GetListeningVector)

		socialG := api.Group("/social")
		socialG.Use(mw.Auth(sec, c))
		socialG.GET("/friends", socialH.ListFriends)
		socialG.DELETE("/friends/:id", socialH.Unfriend)
		socialG.POST("/requests", socialH.SendRequest)
		socialG.GET("/requests/incoming", socialH.ListIncoming)
		socialG.GET("/requests/outgoing", socialH.ListOutgoing)
		socialG.DELETE("/requests/:id", socialH.WithdrawRequest)
		socialG.POST("/requests/:id/accept", socialH.AcceptRequest)
		socialG.POST("/requests/:id/decline", socialH.DeclineRequest)
		socialG.POST("/block/:id", socialH.Block)
		socialG.DELETE("/block/:id", socialH.Unblock)
		socialG.GET("/discover", socialH.Discover)

		messagesG := api.Group("/messages")
		messagesG.Use(mw.Auth(sec, c))
		messagesG.GET("/direct/:id", messagingH.GetDirectThread)
		messagesG.GET("/threads/:id", messagingH.ListMessages)
		messagesG.POST("/threads/:id", messagingH.PostMessage)
		messagesG.DELETE("/threads/:id/:msg_id", messagingH.DeleteMessage)

		settingsG := api.Group("/settings")
		settingsG.Use(mw.Auth(sec, c))
		settingsG.GET("", settingsH.GetSettings)
		settingsG.PUT("/:name", settingsH.UpdateSetting)

		eventsG := api.Group("/events")
		eventsG.Use(mw.Auth(sec, c))
		eventsG.GET("/search", eventsH.Search)
		eventsG.GET("/recommend", eventsH.Recommend)
		eventsG.GET("/trending", eventsH.Trending)
		eventsG.GET("/:id", eventsH.Get)
		eventsG.POST("/:id/attend", eventsH.Attend)
		eventsG.DELETE("/:id/attend", eventsH.Leave)
		eventsG.GET("/:id/attendees", eventsH.Attendees)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(testAdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/users/:id/ban", adminH.BanUser)
		adminG.POST("/concerts/purge", adminH.PurgeConcerts)
		adminG.POST("/concerts/ingest", eventsH.Ingest)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, sec, logger)
	r.GET("/sse", sseH.ServeSSE)

	// ---- Start server ----
	server := httptest.NewServer(r)

	return &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Audit:  auditSvc,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		Sec:    sec,
	}
}

// Close shuts down background workers and the HTTP server.
func (ts *TestServer) Close() {
	ts.Sched.Stop()
	ts.Audit.Stop(nil)
	ts.Server.Close()
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("DELETE", ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token.
func (ts *TestServer) Login(t *testing.T, userID string) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"user_id":  userID,
		"username": userID,
		"password": "pass1234",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return result["token"].(string)
}

var uniqueCounter int64

// UniqueID returns a process-unique identifier with the given prefix.
func UniqueID(prefix string) string {
	n := atomic.AddInt64(&uniqueCounter, 1)
	return prefix + "-" + strconv.FormatInt(n, 10)
}
