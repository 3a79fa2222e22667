package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"giftpos/internal/authgate"
	"giftpos/internal/dto"
	"giftpos/internal/model"
	"giftpos/internal/orderlock"
	"giftpos/internal/reconcile"
	"giftpos/internal/service"
	"giftpos/internal/session"
	"giftpos/internal/testutil"
	"giftpos/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSyncer struct {
	result  reconcile.Result
	err     error
	running bool
	manual  int
}

func (f *fakeSyncer) ManualSync(context.Context) (reconcile.Result, error) {
	f.manual++
	return f.result, f.err
}
func (f *fakeSyncer) Start(context.Context) bool { f.running = true; return true }
func (f *fakeSyncer) Stop()                      { f.running = false }
func (f *fakeSyncer) Running() bool              { return f.running }

type env struct {
	engine *gin.Engine
	repo   *testutil.MemoryOrderRepo
	state  *session.State
	syncer *fakeSyncer
}

func newEnv(t *testing.T, orders ...*model.Order) *env {
	t.Helper()
	repo := testutil.NewMemoryOrderRepo(orders...)
	state := session.NewState()
	gate := authgate.New(authgate.MasterPassword("admin123"), state)
	svc := service.NewFulfillmentService(repo, workflow.FiveStage, gate, orderlock.New(), &testutil.Recorder{}, &testutil.RecordingNotifier{})
	syncer := &fakeSyncer{}

	oh := NewOrdersHandler(svc)
	sess := NewSessionHandler(context.Background(), state, syncer)

	r := gin.New()
	r.GET("/v1/orders", oh.List)
	r.GET("/v1/orders/:id", oh.Get)
	r.POST("/v1/orders/:id/advance", oh.Advance)
	r.POST("/v1/orders/:id/retreat", oh.Retreat)
	r.PUT("/v1/orders/:id/fulfillment", oh.SetStatus)
	r.POST("/v1/orders/:id/payments", oh.RegisterPayment)
	r.POST("/v1/orders/:id/cancel", oh.Cancel)
	r.POST("/v1/rollbacks/:id/approve", oh.ApproveRollback)
	r.DELETE("/v1/rollbacks/:id", oh.CancelRollback)
	r.POST("/v1/sync", sess.Sync)
	r.GET("/v1/session", sess.Status)
	r.POST("/v1/session/modals", sess.OpenModal)
	r.DELETE("/v1/session/modals/:id", sess.CloseModal)
	r.PUT("/v1/session/visibility", sess.SetVisibility)
	r.POST("/v1/session/view", sess.ActivateView)
	r.DELETE("/v1/session/view", sess.DeactivateView)

	return &env{engine: r, repo: repo, state: state, syncer: syncer}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAdvance_OK(t *testing.T) {
	o := testutil.NewOrder("pending", nil)
	e := newEnv(t, o)

	w := e.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.TransitionResponse](t, w)
	require.NotNil(t, resp.Order)
	assert.Equal(t, "production", resp.Order.FulfillmentStatus)
	assert.Equal(t, "ready", resp.Order.NextStage)
}

func TestAdvance_MissingGuideRedirects(t *testing.T) {
	o := testutil.NewOrder("ready", nil)
	e := newEnv(t, o)

	w := e.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/advance", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "detail_edit", body["redirect"])
	assert.Equal(t, "ready", e.repo.Get(o.ID).FulfillmentStatus)
}

func TestRetreat_RequiresPassword(t *testing.T) {
	o := testutil.NewOrder("ready", nil)
	e := newEnv(t, o)

	w := e.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/retreat", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[dto.TransitionResponse](t, w)
	require.NotNil(t, resp.Rollback)
	assert.Equal(t, "production", resp.Rollback.Target)
	assert.True(t, e.state.AnyModalOpen())

	w = e.do(t, http.MethodPost, "/v1/rollbacks/"+resp.Rollback.ID+"/approve", dto.ApproveRollbackRequest{Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "ready", e.repo.Get(o.ID).FulfillmentStatus)

	w = e.do(t, http.MethodPost, "/v1/rollbacks/"+resp.Rollback.ID+"/approve", dto.ApproveRollbackRequest{Password: "admin123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "production", decode[dto.OrderResponse](t, w).FulfillmentStatus)
	assert.False(t, e.state.AnyModalOpen())
}

func TestCancelRollback(t *testing.T) {
	o := testutil.NewOrder("ready", nil)
	e := newEnv(t, o)

	w := e.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/retreat", nil)
	resp := decode[dto.TransitionResponse](t, w)
	require.NotNil(t, resp.Rollback)

	w = e.do(t, http.MethodDelete, "/v1/rollbacks/"+resp.Rollback.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, "/v1/rollbacks/"+resp.Rollback.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ready", e.repo.Get(o.ID).FulfillmentStatus)
}

func TestSetStatus_ValidatesBody(t *testing.T) {
	o := testutil.NewOrder("pending", nil)
	e := newEnv(t, o)

	w := e.do(t, http.MethodPut, "/v1/orders/"+o.ID.String()+"/fulfillment", map[string]string{"fulfillment_status": "lost"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, http.MethodPut, "/v1/orders/"+o.ID.String()+"/fulfillment", dto.FulfillmentUpdateRequest{FulfillmentStatus: "ready"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", e.repo.Get(o.ID).FulfillmentStatus)
}

func TestOrders_NotFoundAndBadID(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/v1/orders/not-a-uuid/advance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestList(t *testing.T) {
	e := newEnv(t, testutil.NewOrder("pending", nil), testutil.NewOrder("ready", nil))

	w := e.do(t, http.MethodGet, "/v1/orders?fulfillment_status=ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.OrderListResponse](t, w)
	assert.EqualValues(t, 1, resp.Total)
}

func TestSessionModals(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/session/modals", dto.OpenModalRequest{Kind: "payment"})
	require.Equal(t, http.StatusCreated, w.Code)
	modal := decode[dto.ModalResponse](t, w)
	assert.True(t, e.state.AnyModalOpen())

	w = e.do(t, http.MethodGet, "/v1/session", nil)
	assert.Equal(t, 1, decode[dto.SessionResponse](t, w).OpenModals)

	w = e.do(t, http.MethodDelete, "/v1/session/modals/"+modal.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, "/v1/session/modals/"+modal.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, e.state.AnyModalOpen())

	w = e.do(t, http.MethodPost, "/v1/session/modals", map[string]string{"kind": "print"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSessionVisibilityAndView(t *testing.T) {
	e := newEnv(t)

	f := false
	w := e.do(t, http.MethodPut, "/v1/session/visibility", dto.VisibilityRequest{Foreground: &f})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.state.Foreground())

	w = e.do(t, http.MethodPost, "/v1/session/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.SessionResponse](t, w).SyncRunning)

	w = e.do(t, http.MethodDelete, "/v1/session/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.syncer.running)
}

func TestSync(t *testing.T) {
	e := newEnv(t)
	e.syncer.result = reconcile.Result{Pushed: 2, Applied: 1}

	w := e.do(t, http.MethodPost, "/v1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.syncer.manual)

	e.syncer.result = reconcile.Result{Skipped: reconcile.SkipNotConfigured}
	e.syncer.err = reconcile.ErrRemoteNotConfigured
	w = e.do(t, http.MethodPost, "/v1/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	e.syncer.result = reconcile.Result{}
	e.syncer.err = errors.New("boom")
	w = e.do(t, http.MethodPost, "/v1/sync", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
