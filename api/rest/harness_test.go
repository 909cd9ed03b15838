package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundmates/server/api/rest"
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

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "test-admin-key"

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   72 * time.Hour,
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
}

// newTestServer wires the full route table the way main does, against an
// in-memory DB and local cache.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	socialSvc := social.NewService(db, ps, logger)
	messagingSvc := messaging.NewService(db, ps, logger)
	eventsSvc := events.NewService(db, c, logger)

	authH := rest.NewAuthHandler(db, c, testSec)
	userH := rest.NewUserHandler(db)
	socialH := rest.NewSocialHandler(socialSvc, auditSvc, config.SocialConfig{DiscoverLimit: 50})
	messagingH := rest.NewMessagingHandler(messagingSvc, socialSvc)
	settingsH := rest.NewSettingsHandler(db)
	eventsH := rest.NewEventsHandler(eventsSvc, config.EventsConfig{RecommendLimit: 8, SearchLimit: 8})
	adminH := rest.NewAdminHandler(db, eventsSvc, sched, logger)

	r := gin.New()
	api := r.Group("/api")

	authG := api.Group("/auth")
	authG.POST("/login", authH.Login)
	authG.POST("/logout", mw.Auth(testSec, c), authH.Logout)
	authG.POST("/refresh", mw.Auth(testSec, c), authH.Refresh)

	usersG := api.Group("/users")
	usersG.Use(mw.Auth(testSec, c))
	usersG.GET("/me", userH.GetProfile)
	usersG.PATCH("/me", userH.UpdateProfile)
	usersG.PUT("/me/music-token", userH.LinkMusicToken)
	usersG.DELETE("/me/music-token", userH.UnlinkMusicToken)
	usersG.PUT("/me/listening-vector", userH.UpsertListeningVector)
	usersG.GET("/:id", userH.GetProfile)
	usersG.GET("/:id/listening-vector", userH.GetListeningVector)

	socialG := api.Group("/social")
	socialG.Use(mw.Auth(testSec, c))
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
	messagesG.Use(mw.Auth(testSec, c))
	messagesG.GET("/direct/:id", messagingH.GetDirectThread)
	messagesG.GET("/threads/:id", messagingH.ListMessages)
	messagesG.POST("/threads/:id", messagingH.PostMessage)
	messagesG.DELETE("/threads/:id/:msg_id", messagingH.DeleteMessage)

	settingsG := api.Group("/settings")
	settingsG.Use(mw.Auth(testSec, c))
	settingsG.GET("", settingsH.GetSettings)
	settingsG.PUT("/:name", settingsH.UpdateSetting)

	eventsG := api.Group("/events")
	eventsG.Use(mw.Auth(testSec, c))
	eventsG.GET("/search", eventsH.Search)
	eventsG.GET("/recommend", eventsH.Recommend)
	eventsG.GET("/trending", eventsH.Trending)
	eventsG.GET("/:id", eventsH.Get)
	eventsG.POST("/:id/attend", eventsH.Attend)
	eventsG.DELETE("/:id/attend", eventsH.Leave)
	eventsG.GET("/:id/attendees", eventsH.Attendees)

	adminG := api.Group("/admin")
	adminG.Use(rest.AdminAuth(testAdminKey))
	adminG.GET("/metrics", adminH.Metrics)
	adminG.POST("/users/:id/ban", adminH.BanUser)
	adminG.POST("/concerts/purge", adminH.PurgeConcerts)
	adminG.POST("/concerts/ingest", eventsH.Ingest)
	adminG.GET("/scheduler", adminH.ListSchedulerTasks)

	return &testServer{router: r, db: db, cache: c}
}

// do performs a JSON request. Headers come in key/value pairs.
func (ts *testServer) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// login registers (or re-logs) a user and returns a Bearer token.
func (ts *testServer) login(t *testing.T, userID string) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/auth/login", map[string]string{
		"user_id":  userID,
		"username": userID,
		"password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code, "login %s: %s", userID, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
