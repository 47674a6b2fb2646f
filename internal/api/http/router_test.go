package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/realtime"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/service"
)

type testServer struct {
	app        *fiber.App
	users      repository.UserRepository
	events     repository.EventRepository
	hub        *realtime.Hub
	membership *service.MembershipService
}

func newTestServer(t *testing.T, perMinute int64) *testServer {
	t.Helper()

	metrics := observability.NewMetrics()
	users := repository.NewMemoryUserRepository()
	eventRepo := repository.NewMemoryEventRepository()
	dispatcher := events.NewInMemoryDispatcher(nil)
	service.NewNotificationService(dispatcher, users, nil).RegisterHandlers()

	hub := realtime.NewHub(nil, metrics)
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, users)
	eventService := service.NewEventService(eventRepo, users, dispatcher, nil)
	membership := service.NewMembershipService(config.MembershipConfig{MaxRetries: 3, BroadcastNoopLeave: true}, service.MembershipDependencies{
		Events:      eventRepo,
		Broadcaster: hub,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})

	rateLimiter, err := NewRateLimiter(config.RateLimitConfig{PerMinute: perMinute}, nil, "test")
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:  zap.NewNop(),
		Metrics: metrics,
		Timeout: 5 * time.Second,
		CORS:    config.CORSConfig{AllowOrigins: "*"},
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("event-service", "test", metrics, nil),
		Users:          handlers.NewUsersHandler(authService),
		Events:         handlers.NewEventsHandler(eventService, membership),
		Realtime:       handlers.NewRealtimeHandler(hub, membership, nil, time.Second),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), users),
		RateLimiter:    rateLimiter,
	})

	return &testServer{app: app, users: users, events: eventRepo, hub: hub, membership: membership}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func (s *testServer) signUp(t *testing.T, name, email string) (string, string) {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/sign-up", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	return user["id"].(string), data["auth"].(map[string]any)["token"].(string)
}

func (s *testServer) createEvent(t *testing.T, token string, date time.Time) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/events/", token, map[string]string{
		"name":        "Jazz Night",
		"description": "Live quartet",
		"eventDate":   date.Format(time.RFC3339),
		"location":    "Blue Room",
		"category":    "Music",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["data"].(map[string]any)["id"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t, "Ada", "ada@example.com")

	status, body := s.do(t, fiber.MethodPost, "/api/sign-up", "", map[string]string{
		"name": "Ada", "email": "ADA@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/api/sign-up", "", map[string]string{"email": "bad"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/api/sign-in", "", map[string]string{
		"email": "ada@example.com", "password": "secret123",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["data"].(map[string]any)["auth"].(map[string]any)["token"])

	status, _ = s.do(t, fiber.MethodPost, "/api/sign-in", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestEventLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	_, creatorToken := s.signUp(t, "Ada", "ada@example.com")
	_, otherToken := s.signUp(t, "Bo", "bo@example.com")

	id := s.createEvent(t, creatorToken, time.Now().Add(48*time.Hour))

	status, body := s.do(t, fiber.MethodGet, "/events/"+id, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	event := body["data"].(map[string]any)
	assert.Equal(t, "Jazz Night", event["name"])
	assert.Equal(t, "Music", event["category"])
	assert.EqualValues(t, 0, event["attendeeCount"])

	status, body = s.do(t, fiber.MethodPut, "/events/"+id, otherToken, map[string]string{"name": "Hijacked"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, fiber.MethodPut, "/events/"+id, creatorToken, map[string]string{"name": "Jazz Night II"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Jazz Night II", body["data"].(map[string]any)["name"])
	assert.Equal(t, "Blue Room", body["data"].(map[string]any)["location"])

	status, body = s.do(t, fiber.MethodGet, "/events/mine", creatorToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, fiber.MethodGet, "/events/mine", otherToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = s.do(t, fiber.MethodGet, "/events/upcoming", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, fiber.MethodGet, "/events/past", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = s.do(t, fiber.MethodPost, "/events/filter", "", map[string]string{"category": "Music"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.do(t, fiber.MethodPost, "/events/filter", "", map[string]string{"category": "Karaoke"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodDelete, "/events/"+id, otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodDelete, "/events/"+id, creatorToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, fiber.MethodGet, "/events/"+id, "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)

	status, body := s.do(t, fiber.MethodGet, "/events/mine", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, fiber.MethodPost, "/events/some-id/join", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(t, fiber.MethodGet, "/events/upcoming", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestCreateEventValidation(t *testing.T) {
	s := newTestServer(t, 0)
	_, token := s.signUp(t, "Ada", "ada@example.com")

	status, body := s.do(t, fiber.MethodPost, "/events/", token, map[string]string{"name": "Only a name"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestJoinAndLeaveOverREST(t *testing.T) {
	s := newTestServer(t, 0)
	_, creatorToken := s.signUp(t, "Ada", "ada@example.com")
	userID, userToken := s.signUp(t, "Bo", "bo@example.com")
	id := s.createEvent(t, creatorToken, time.Now().Add(24*time.Hour))

	status, body := s.do(t, fiber.MethodPost, "/events/"+id+"/join", userToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, id, data["eventId"])
	assert.EqualValues(t, 1, data["attendeeCount"])
	assert.Equal(t, true, data["changed"])

	status, body = s.do(t, fiber.MethodPost, "/events/"+id+"/join", userToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["attendeeCount"])
	assert.Equal(t, false, body["data"].(map[string]any)["changed"])

	user, err := s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, user.UpcomingEvents)

	status, body = s.do(t, fiber.MethodPost, "/events/"+id+"/leave", userToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["data"].(map[string]any)["attendeeCount"])

	user, err = s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, user.UpcomingEvents)

	status, body = s.do(t, fiber.MethodPost, "/events/unknown/join", userToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestEventReadsPopulateUsers(t *testing.T) {
	s := newTestServer(t, 0)
	creatorID, creatorToken := s.signUp(t, "Ada", "ada@example.com")
	userID, userToken := s.signUp(t, "Bo", "bo@example.com")
	id := s.createEvent(t, creatorToken, time.Now().Add(24*time.Hour))

	status, body := s.do(t, fiber.MethodPost, "/events/"+id+"/join", userToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	_, err := s.membership.Join(context.Background(), domain.NewIdentifier(id), domain.NewIdentifier("ghost"))
	require.NoError(t, err)

	status, body = s.do(t, fiber.MethodGet, "/events/"+id, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	event := body["data"].(map[string]any)
	assert.Equal(t, map[string]any{"id": creatorID, "name": "Ada"}, event["creator"])
	assert.Equal(t, []any{
		map[string]any{"id": userID, "name": "Bo", "email": "bo@example.com"},
		map[string]any{"id": "ghost"},
	}, event["attendees"])
	assert.EqualValues(t, 2, event["attendeeCount"])

	for _, path := range []string{"/events/upcoming", "/events/mine"} {
		status, body = s.do(t, fiber.MethodGet, path, creatorToken, nil)
		require.Equal(t, fiber.StatusOK, status, path)
		items := body["data"].([]any)
		require.Len(t, items, 1, path)
		listed := items[0].(map[string]any)
		assert.Equal(t, map[string]any{"id": creatorID, "name": "Ada"}, listed["creator"], path)
		assert.Equal(t, []any{userID, "ghost"}, listed["attendees"], path)
	}
}

func TestRealtimeHandler_HandleMessage(t *testing.T) {
	s := newTestServer(t, 0)
	_, creatorToken := s.signUp(t, "Ada", "ada@example.com")
	id := s.createEvent(t, creatorToken, time.Now().Add(24*time.Hour))

	observer := &recordingConn{}
	s.hub.Register(observer)
	defer s.hub.Unregister(observer)
	handler := handlers.NewRealtimeHandler(s.hub, s.membership, nil, time.Second)

	handler.HandleMessage([]byte(`{"event":"joinEvent","data":["`+id+`","u1"]}`), "")
	handler.HandleMessage([]byte(`{"event":"joinEvent","data":["`+id+`","u2"]}`), "")
	handler.HandleMessage([]byte(`{"event":"joinEvent","data":["`+id+`","u3"]}`), "someone-else")
	handler.HandleMessage([]byte(`garbage`), "")
	handler.HandleMessage([]byte(`{"event":"joinEvent","data":["missing-event","u1"]}`), "")
	handler.HandleMessage([]byte(`{"event":"leaveEvent","data":{"eventId":"`+id+`","userId":"u1"}}`), "u1")

	stored, err := s.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, stored.Attendees)

	require.Eventually(t, func() bool { return len(observer.frames()) == 3 }, 2*time.Second, 5*time.Millisecond)

	var counts []float64
	for _, msg := range observer.frames() {
		var frame struct {
			Event string `json:"event"`
			Data  struct {
				EventID       string  `json:"eventId"`
				AttendeeCount float64 `json:"attendeeCount"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &frame))
		assert.Equal(t, "attendeeUpdate", frame.Event)
		assert.Equal(t, id, frame.Data.EventID)
		counts = append(counts, frame.Data.AttendeeCount)
	}
	assert.Equal(t, []float64{1, 2, 1}, counts)
}

func TestWebsocketRouteRejectsPlainHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	status, _ := s.do(t, fiber.MethodGet, "/ws", "", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	s := newTestServer(t, 2)
	creds := map[string]string{"email": "nobody@example.com", "password": "secret123"}

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, fiber.MethodPost, "/api/sign-in", "", creds)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	}
	status, body := s.do(t, fiber.MethodPost, "/api/sign-in", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", errorCode(body))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body["data"], "requests")
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(fiber.MethodGet, "/health/live", nil)
	req.Header.Set(observability.RequestIDHeader, "req-123")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(observability.RequestIDHeader))
}

type recordingConn struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *recordingConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}
