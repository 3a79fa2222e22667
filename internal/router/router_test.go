package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"giftpos/internal/config"
	"giftpos/internal/dto"
	"giftpos/internal/infra"
	"giftpos/internal/middleware"
	"giftpos/internal/repository"
	"giftpos/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

type testEnv struct {
	app   *App
	repo  repository.OrderRepository
	token string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                 "test",
		JWTSecret:           testSecret,
		MasterPassword:      "admin123",
		FulfillmentSequence: "5",
		RateLimit:           1000,
		SyncInterval:        time.Hour,
	}
	db, err := infra.NewDatabase("sqlite://:memory:")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app, err := New(ctx, cfg, db, nil, infra.NewCloudClient("", "", 0, nil))
	require.NoError(t, err)
	t.Cleanup(app.Reconciler.Stop)

	return &testEnv{app: app, repo: repository.NewOrderRepository(db), token: mintToken(t, "cajero")}
}

func mintToken(t *testing.T, rol string) string {
	t.Helper()
	claims := middleware.JWTClaims{
		OperatorID: "op-1",
		Username:   "caja1",
		Rol:        rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(w, req)
	return w
}

func TestRouter_RequiresToken(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/orders", nil, env.token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_CancelNeedsSupervisor(t *testing.T) {
	env := setupTestEnv(t)
	o := testutil.NewOrder("pending", nil)
	require.NoError(t, env.repo.Upsert(context.Background(), o))

	body := dto.CancelOrderRequest{Reason: "pedido duplicado"}
	w := env.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/cancel", body, env.token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/cancel", body, mintToken(t, "supervisor"))
	require.Equal(t, http.StatusOK, w.Code)
}

// Full cycle against the local store: advance to ready, get bounced to the
// detail editor for the missing guide, attach it, ship, then roll back with
// the master password.
func TestRouter_FulfillmentCycle(t *testing.T) {
	env := setupTestEnv(t)
	o := testutil.NewOrder("pending", nil)
	require.NoError(t, env.repo.Upsert(context.Background(), o))
	base := "/v1/orders/" + o.ID.String()

	for _, want := range []string{"production", "ready"} {
		w := env.do(t, http.MethodPost, base+"/advance", nil, env.token)
		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.TransitionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Order.FulfillmentStatus)
	}

	w := env.do(t, http.MethodPost, base+"/advance", nil, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"detail_edit"`)

	carrier := "Andreani"
	w = env.do(t, http.MethodPut, base+"/shipping", dto.ShippingRequest{
		Carrier:   &carrier,
		GuideFile: []byte("%PDF-1.4"),
	}, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, base+"/advance", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, base+"/retreat", nil, env.token)
	require.Equal(t, http.StatusAccepted, w.Code)
	var pending dto.TransitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.NotNil(t, pending.Rollback)

	w = env.do(t, http.MethodGet, "/v1/session", nil, env.token)
	var sess dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, 1, sess.OpenModals, "the password prompt pauses auto sync")

	w = env.do(t, http.MethodPost, "/v1/rollbacks/"+pending.Rollback.ID+"/approve", dto.ApproveRollbackRequest{Password: "admin123"}, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repo.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "ready", stored.FulfillmentStatus)
	statuses := make([]string, 0, len(stored.FulfillmentHistory))
	for _, h := range stored.FulfillmentHistory {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []string{"production", "ready", "shipped", "ready"}, statuses)
}

func TestRouter_SyncWithoutCloud(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/sync", nil, env.token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_HealthReportsMissingRedis(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "error", body["redis"])
}
