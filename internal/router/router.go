package router

import (
	"context"
	"time"

	"giftpos/internal/authgate"
	"giftpos/internal/config"
	"giftpos/internal/handler"
	"giftpos/internal/infra"
	"giftpos/internal/middleware"
	"giftpos/internal/notify"
	"giftpos/internal/orderlock"
	"giftpos/internal/reconcile"
	"giftpos/internal/repository"
	"giftpos/internal/service"
	"giftpos/internal/session"
	"giftpos/internal/worker"
	"giftpos/internal/workflow"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App is the wired terminal backend.
type App struct {
	Engine     *gin.Engine
	Reconciler *reconcile.Reconciler
	Bus        *notify.Bus
	Session    *session.State
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// appCtx bounds the background loops started from requests. rdb may be nil,
// in which case status changes are not pushed in the background.
func New(appCtx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, cloud *infra.CloudClient) (*App, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	seq, err := workflow.SequenceByName(cfg.FulfillmentSequence)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		go limiter.PurgeEvery(5*time.Minute, appCtx.Done())
		r.Use(limiter.Middleware())
	}

	// ── Terminal state ───────────────────────────────────────────────────────
	bus := notify.NewBus()
	state := session.NewState()
	locker := orderlock.New()
	gate := authgate.New(authgate.MasterPassword(cfg.MasterPassword), state)

	// ── Repositories ─────────────────────────────────────────────────────────
	orderRepo := repository.NewOrderRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	// Worker dispatcher: status changes enqueue a cloud push
	var pusher service.Pusher
	if rdb != nil {
		pusher = worker.NewDispatcher(rdb)
	}
	fulfillmentSvc := service.NewFulfillmentService(orderRepo, seq, gate, locker, pusher, bus)

	reconciler := reconcile.New(orderRepo, cloud, state, bus, locker, reconcile.Options{
		Interval:       cfg.SyncInterval,
		AutoLookback:   time.Duration(cfg.SyncAutoLookbackDays) * 24 * time.Hour,
		ManualLookback: time.Duration(cfg.SyncManualLookbackDays) * 24 * time.Hour,
		FetchLimit:     cfg.SyncFetchLimit,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	ordersH := handler.NewOrdersHandler(fulfillmentSvc)
	sessionH := handler.NewSessionHandler(appCtx, state, reconciler)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, cloud))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		orders := v1.Group("/orders", middleware.RequireRole("vendedor", "cajero", "supervisor", "administrador"))
		{
			orders.GET("", ordersH.List)
			orders.GET("/:id", ordersH.Get)
			orders.POST("/:id/advance", ordersH.Advance)
			orders.POST("/:id/retreat", ordersH.Retreat)
			orders.PUT("/:id/fulfillment", ordersH.SetStatus)
			orders.PUT("/:id/shipping", ordersH.UpdateShipping)
			orders.POST("/:id/payments", middleware.RequireRole("cajero", "supervisor", "administrador"), ordersH.RegisterPayment)
			orders.POST("/:id/cancel", middleware.RequireRole("supervisor", "administrador"), ordersH.Cancel)
		}

		// The master password is the authorization; any operator may submit it.
		rollbacks := v1.Group("/rollbacks")
		{
			rollbacks.POST("/:id/approve", ordersH.ApproveRollback)
			rollbacks.DELETE("/:id", ordersH.CancelRollback)
		}

		v1.POST("/sync", sessionH.Sync)

		sess := v1.Group("/session")
		{
			sess.GET("", sessionH.Status)
			sess.POST("/modals", sessionH.OpenModal)
			sess.DELETE("/modals/:id", sessionH.CloseModal)
			sess.PUT("/visibility", sessionH.SetVisibility)
			sess.POST("/view", sessionH.ActivateView)
			sess.DELETE("/view", sessionH.DeactivateView)
		}

		v1.GET("/notifications", handler.Notifications(bus))
	}

	// Swagger UI: only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return &App{Engine: r, Reconciler: reconciler, Bus: bus, Session: state}, nil
}
