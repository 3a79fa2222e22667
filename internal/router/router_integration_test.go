//go:build integration

package router

// End-to-end tests with real Postgres + Redis via testcontainers and an
// httptest cloud store.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"giftpos/internal/config"
	"giftpos/internal/infra"
	"giftpos/internal/model"
	"giftpos/internal/repository"
	"giftpos/internal/testutil"
	"giftpos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// cloudStore is a minimal stand-in for the remote orders endpoint.
type cloudStore struct {
	mu     sync.Mutex
	orders map[string]model.Order
}

func (s *cloudStore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]model.Order, 0, len(s.orders))
		for _, o := range s.orders {
			out = append(out, o)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		var o model.Order
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.orders[strings.TrimPrefix(r.URL.Path, "/orders/")] = o
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *cloudStore) get(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *cloudStore) put(o *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID.String()] = *o.Clone()
}

type e2eEnv struct {
	*testEnv
	cloud *cloudStore
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Start Postgres container
	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("giftpos_test"),
		tcPostgres.WithUsername("giftpos"),
		tcPostgres.WithPassword("giftpos"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start Redis container
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	store := &cloudStore{orders: make(map[string]model.Order)}
	cloudSrv := httptest.NewServer(store.handler())
	t.Cleanup(cloudSrv.Close)

	cfg := &config.Config{
		Env:                    "test",
		JWTSecret:              testSecret,
		MasterPassword:         "admin123",
		FulfillmentSequence:    "5",
		RateLimit:              1000,
		WorkerPoolSize:         1,
		DatabaseURL:            pgURL,
		RedisURL:               rdURL,
		CloudURL:               cloudSrv.URL,
		CloudTimeout:           5 * time.Second,
		SyncInterval:           time.Hour,
		SyncAutoLookbackDays:   7,
		SyncManualLookbackDays: 30,
		SyncFetchLimit:         200,
		PushMaxAttempts:        2,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	cloud := infra.NewCloudClient(cfg.CloudURL, cfg.CloudAPIKey, cfg.CloudTimeout, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "cloud"}))
	repo := repository.NewOrderRepository(db)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.Processor{
		worker.JobOrderPush: worker.NewPushWorker(repo, cloud, cfg.PushMaxAttempts),
	})

	app, err := New(ctx, cfg, db, rdb, cloud)
	require.NoError(t, err)
	t.Cleanup(app.Reconciler.Stop)

	return &e2eEnv{
		testEnv: &testEnv{app: app, repo: repo, token: mintToken(t, "administrador")},
		cloud:   store,
	}
}

func TestE2E_StatusChangeIsPushed(t *testing.T) {
	env := setupE2E(t)
	o := testutil.NewOrder("pending", nil)
	require.NoError(t, env.repo.Upsert(context.Background(), o))

	w := env.do(t, http.MethodPost, "/v1/orders/"+o.ID.String()+"/advance", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		remote, ok := env.cloud.get(o.ID.String())
		return ok && remote.FulfillmentStatus == "production"
	}, 10*time.Second, 100*time.Millisecond)

	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// An order created on another terminal reaches this one through manual sync.
func TestE2E_ManualSyncPullsRemoteOrders(t *testing.T) {
	env := setupE2E(t)
	ctx := context.Background()

	remote := testutil.NewOrder("ready", timePtr(time.Now().UTC().Add(-time.Hour)))
	remote.Date = time.Now().UTC()
	env.cloud.put(remote)

	w := env.do(t, http.MethodPost, "/v1/sync", nil, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := env.repo.FindByID(ctx, remote.ID)
	require.NoError(t, err)
	assert.Equal(t, "ready", got.FulfillmentStatus)
	assert.Equal(t, remote.Folio, got.Folio)
}

func timePtr(t time.Time) *time.Time { return &t }
