package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmainah/resolveit-app/internal/config"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/events"
	"github.com/danmainah/resolveit-app/internal/http/handlers"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/memstore"
	"github.com/danmainah/resolveit-app/internal/service"
	"github.com/danmainah/resolveit-app/internal/ws"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

type testAPI struct {
	engine        *gin.Engine
	store         *memstore.Store
	tokens        *service.TokenManager
	cases         *service.CaseStateMachine
	notifications *service.NotificationService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:             "test",
		StoreDriver:     config.StoreDriverMemory,
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(ctx, 0)
	go hub.Run()

	store := memstore.New()
	tokens := service.NewTokenManager("access-secret-for-router-tests-0001", "refresh-secret-for-router-tests-001", time.Minute, time.Hour)
	notifications := service.NewNotificationService(store.Notifications(), hub, 2, time.Second)
	sm := service.NewCaseStateMachine(service.CaseStateMachineDeps{
		Cases:        store.Cases(),
		Panels:       store.Panels(),
		Users:        store.Users(),
		Notifier:     notifications,
		Publisher:    hub,
		Audit:        events.NopSink{},
		StoreTimeout: time.Second,
	})
	panels := service.NewPanelService(sm, store.Panels(), store.Users())
	agreements := service.NewAgreementService(sm, store.Agreements(), notifications)
	users := service.NewUserService(store.Users(), notifications, time.Second)
	auth := service.NewAuthService(store.Users(), tokens)

	engine := SetupRouter(cfg, tokens,
		handlers.NewAuthHandler(auth, users),
		handlers.NewCaseHandler(sm, panels),
		handlers.NewAdminHandler(sm, panels, users),
		handlers.NewAgreementHandler(agreements),
		handlers.NewNotificationHandler(notifications),
		handlers.NewWSHandler(hub, tokens, sm),
		handlers.NewHealthHandler(nil, cfg.StoreDriver),
	)

	api := &testAPI{engine: engine, store: store, tokens: tokens, cases: sm, notifications: notifications}
	t.Cleanup(func() {
		sm.Wait()
		notifications.Wait()
		cancel()
	})
	return api
}

// user создаёт пользователя и возвращает его вместе с access токеном.
func (a *testAPI) user(t *testing.T, role string, verified bool) (*models.User, string) {
	t.Helper()

	u := &models.User{
		Name:         "User " + role,
		Email:        uuid.NewString() + "@resolveit.test",
		PasswordHash: "x",
		Role:         role,
		IsVerified:   verified,
	}
	require.NoError(t, a.store.Users().Create(context.Background(), u))

	pair, err := a.tokens.GeneratePair(u)
	require.NoError(t, err)
	return u, pair.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "router-test")

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestRouter_CaseLifecycleSettledByAgreement(t *testing.T) {
	api := newTestAPI(t)

	_, adminToken := api.user(t, models.RoleAdmin, true)
	plaintiff, plaintiffToken := api.user(t, models.RoleUser, true)
	defendant, defendantToken := api.user(t, models.RoleUser, true)
	lawyer, _ := api.user(t, models.RoleLawyer, true)
	scholar, _ := api.user(t, models.RoleReligiousScholar, true)
	expert, _ := api.user(t, models.RoleSocialExpert, true)

	w, env := api.do(t, http.MethodPost, "/api/cases", plaintiffToken, map[string]any{
		"case_type":         "FAMILY",
		"issue_description": "Спор о разделе имущества после развода",
		"opposite_name":     "Иван Петров",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	filed := decodeData[models.Case](t, env)
	assert.Equal(t, valueobject.CaseStatusPending, filed.Status)
	assert.Equal(t, plaintiff.ID, filed.PlaintiffID)

	casePath := "/api/admin/cases/" + filed.ID.String()

	w, env = api.do(t, http.MethodPost, casePath+"/contact", plaintiffToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "ACCESS_DENIED", env.Error.Code)

	w, env = api.do(t, http.MethodPost, casePath+"/contact", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, valueobject.CaseStatusAwaitingResponse, decodeData[models.Case](t, env).Status)

	w, env = api.do(t, http.MethodPost, casePath+"/response", adminToken, map[string]any{
		"accepted":     true,
		"defendant_id": defendant.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, valueobject.CaseStatusAccepted, decodeData[models.Case](t, env).Status)

	w, _ = api.do(t, http.MethodPost, casePath+"/panel", adminToken, map[string]any{
		"members": []map[string]any{
			{"user_id": lawyer.ID, "role": "LAWYER"},
			{"user_id": scholar.ID, "role": "RELIGIOUS_SCHOLAR"},
			{"user_id": expert.ID, "role": "SOCIAL_EXPERT"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = api.do(t, http.MethodPost, casePath+"/mediation", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, valueobject.CaseStatusMediationInProgress, decodeData[models.Case](t, env).Status)

	w, env = api.do(t, http.MethodGet, "/api/cases/"+filed.ID.String()+"/timeline", defendantToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.CaseUpdate](t, env), 4)

	w, env = api.do(t, http.MethodPost, "/api/agreements", adminToken, map[string]any{
		"case_id": filed.ID,
		"content": "Стороны договорились о разделе имущества поровну.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	agreement := decodeData[models.Agreement](t, env)
	agreementPath := "/api/agreements/" + agreement.ID.String()

	type signResult struct {
		Consensus  bool   `json:"consensus"`
		CaseStatus string `json:"case_status"`
	}

	w, env = api.do(t, http.MethodPost, agreementPath+"/sign", plaintiffToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decodeData[signResult](t, env).Consensus)

	w, env = api.do(t, http.MethodPost, agreementPath+"/sign", plaintiffToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_SIGNED", env.Error.Code)

	w, env = api.do(t, http.MethodPost, agreementPath+"/sign", defendantToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeData[signResult](t, env)
	assert.True(t, result.Consensus)
	assert.Equal(t, string(valueobject.CaseStatusResolved), result.CaseStatus)

	w, env = api.do(t, http.MethodGet, "/api/cases/"+filed.ID.String(), plaintiffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, valueobject.CaseStatusResolved, decodeData[models.Case](t, env).Status)

	w, env = api.do(t, http.MethodPatch, "/api/cases/"+filed.ID.String()+"/status", adminToken, map[string]any{
		"status": "PENDING",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, _ = api.do(t, http.MethodGet, agreementPath+"/export", defendantToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "Стороны договорились о разделе имущества поровну.")
}

func TestRouter_Authentication(t *testing.T) {
	api := newTestAPI(t)

	w, env := api.do(t, http.MethodGet, "/api/cases/my", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = api.do(t, http.MethodGet, "/api/cases/my", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = api.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Мария Иванова",
		"email":    "Maria@Example.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered struct {
		User   models.User        `json:"user"`
		Tokens service.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	assert.Equal(t, "maria@example.com", registered.User.Email)

	w, env = api.do(t, http.MethodGet, "/api/auth/me", registered.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registered.User.ID, decodeData[models.User](t, env).ID)

	w, env = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "maria@example.com",
		"password": "Wrong123",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
		"refresh_token": registered.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_UnverifiedUserCannotFile(t *testing.T) {
	api := newTestAPI(t)
	_, adminToken := api.user(t, models.RoleAdmin, true)
	guest, guestToken := api.user(t, models.RoleUser, false)

	body := map[string]any{
		"case_type":         "BUSINESS",
		"issue_description": "Партнёр не выплатил долю прибыли",
		"opposite_name":     "ООО Ромашка",
	}

	w, env := api.do(t, http.MethodPost, "/api/cases", guestToken, body)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCESS_DENIED", env.Error.Code)

	w, _ = api.do(t, http.MethodPut, "/api/admin/users/"+guest.ID.String()+"/verify", adminToken, map[string]any{"verified": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = api.do(t, http.MethodPost, "/api/cases", guestToken, body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	api.cases.Wait()
	api.notifications.Wait()

	w, env = api.do(t, http.MethodGet, "/api/notifications/unread/count", guestToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	count := decodeData[map[string]int](t, env)
	assert.Equal(t, 1, count["count"])
}

func TestRouter_ValidationAndParams(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.user(t, models.RoleUser, true)

	w, env := api.do(t, http.MethodGet, "/api/cases/not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = api.do(t, http.MethodPost, "/api/cases", token, map[string]any{
		"case_type":         "ALIENS",
		"issue_description": "короткое",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "case_type")
	assert.Contains(t, env.Error.Fields, "opposite_name")

	w, env = api.do(t, http.MethodGet, "/api/cases/"+uuid.NewString(), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, config.StoreDriverMemory, health.Checks["store_driver"])

	w, _ = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resolveit_http_requests_total")
}
