package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-ticketcodes/internal/analytics"
	analytics_api "ms-ticketcodes/internal/analytics/api"
	"ms-ticketcodes/internal/auth"
	"ms-ticketcodes/internal/config"
	"ms-ticketcodes/internal/database"
	"ms-ticketcodes/internal/database/migrations"
	"ms-ticketcodes/internal/jobs"
	"ms-ticketcodes/internal/kafka"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/notify"
	"ms-ticketcodes/internal/notify/email"
	"ms-ticketcodes/internal/notify/sheets"
	"ms-ticketcodes/internal/order"
	orderdb "ms-ticketcodes/internal/order/db"
	"ms-ticketcodes/internal/order/order_api"
	orderredis "ms-ticketcodes/internal/order/redis"
	"ms-ticketcodes/internal/payment/paymaya"
	"ms-ticketcodes/internal/sse"
	ticketdb "ms-ticketcodes/internal/tickets/db"
	"ms-ticketcodes/internal/tickets/importer"
	tickets "ms-ticketcodes/internal/tickets/service"
	"ms-ticketcodes/internal/tickets/ticket_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func runMigrations(bunDB *bun.DB, log *logger.Logger) {
	// The migrator is left open: closing it would close the shared *sql.DB.
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
	}
}

// requestLogger records method, path, status and latency for every request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

// adminVerifier prefers an OIDC issuer and falls back to a shared HMAC
// secret. It returns nil when neither is configured.
func adminVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC setup failed: %v", err))
		}
		log.Info("AUTH", fmt.Sprintf("Admin routes verified against issuer %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.AdminSecret != "" {
		v, err := auth.NewHMACVerifier(cfg.AdminSecret)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("HMAC setup failed: %v", err))
		}
		log.Info("AUTH", "Admin routes verified with shared secret")
		return v
	}
	return nil
}

func main() {
	loadErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{Service: cfg.Log.Service, Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	defer log.Close()

	log.Info("APP", "Starting ticket code service initialization")
	if loadErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()
	if cfg.Database.AutoMigrate {
		runMigrations(bunDB, log)
	}

	orderStore := &orderdb.DB{Bun: bunDB}
	pool := &ticketdb.DB{Bun: bunDB}
	allocator := tickets.NewAllocator(bunDB, pool, log)

	// --- Redis completion lock (optional) ---
	var lock order.CompletionLock
	if cfg.Redis.Enabled {
		client, err := orderredis.Connect(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("REDIS", fmt.Sprintf("Continuing without completion lock: %v", err))
		} else {
			defer client.Close()
			lock = orderredis.NewOrderLock(client, cfg.Redis.LockTTL, cfg.Redis.LockWait, cfg.Redis.LockBackoff, log)
		}
	}

	// --- Kafka (optional) ---
	var events notify.EventPublisher
	var announcer importer.Announcer
	if cfg.Kafka.Enabled {
		topics := kafka.Topics{PaymentCompleted: cfg.Kafka.Topics.PaymentCompleted, CodesProvisioned: cfg.Kafka.Topics.CodesProvisioned}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{topics.PaymentCompleted, topics.CodesProvisioned}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
		defer producer.Close()
		events = producer
		announcer = producer
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	}

	// --- Notification sinks ---
	var receipts notify.ReceiptSender
	if sender := email.NewSender(cfg.Email, log); sender != nil {
		receipts = sender
	}

	var audit notify.AuditLogger
	if cfg.Sheets.Configured() {
		svc, err := sheets.NewService(ctx, cfg.Sheets.CredentialsJSON, false)
		if err != nil {
			log.Warn("SHEETS", fmt.Sprintf("Audit log disabled: %v", err))
		} else {
			auditLog := sheets.NewAuditLogger(svc, cfg.Sheets.SpreadsheetID, cfg.Sheets.AuditSheetName, log)
			headerCtx, cancel := context.WithTimeout(ctx, cfg.Sheets.RequestTimeout)
			if err := auditLog.EnsureHeader(headerCtx); err != nil {
				log.Warn("SHEETS", fmt.Sprintf("Could not verify audit header: %v", err))
			}
			cancel()
			audit = auditLog
		}
	} else {
		log.Warn("SHEETS", "Google Sheets not configured, audit rows will not be written")
	}

	emitter := sse.NewOrderEventEmitter()
	bridge := notify.NewBridge(receipts, audit, events, emitter, log)

	// --- Services ---
	checkout := paymaya.NewClient(cfg.PayMaya.BaseURL, cfg.PayMaya.PublicKey, cfg.PayMaya.Currency, cfg.PayMaya.Timeout, log)

	orderService := order.NewOrderService(orderStore, bunDB, allocator, checkout, bridge, log)
	orderService.OrderingEnabled = cfg.Ordering.Enabled
	orderService.TestMode = cfg.Payment.TestMode
	orderService.PublicURL = cfg.Server.PublicURL

	paymentService := order.NewPaymentService(bunDB, orderStore, allocator, lock, bridge, log)
	paymentService.TestMode = cfg.Payment.TestMode
	paymentService.RequireWebhookAmount = cfg.Payment.WebhookRequireAmount
	paymentService.Tolerance = cfg.Payment.AmountTolerance

	if cfg.Payment.TestMode {
		log.Warn("PAYMENT", "Payment test mode is ON, test callbacks complete orders without the provider")
	}

	codeImporter := importer.New(pool, announcer, log)
	analyticsService := analytics.NewService(bunDB, pool)

	// --- Kafka consumer: top up pending orders when codes arrive ---
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CodesProvisioned, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go func() {
			err := consumer.RunCodesProvisioned(ctx, func(ctx context.Context, evt models.CodesProvisionedEvent) error {
				_, err := paymentService.AllocatePending(ctx)
				return err
			})
			if err != nil {
				log.Error("KAFKA", fmt.Sprintf("Codes-provisioned consumer stopped: %v", err))
			}
		}()
	}

	// --- Scheduled sweep (covers deployments without Kafka) ---
	if cfg.Jobs.SweepSchedule != "" {
		scheduler, err := jobs.NewSweepScheduler(cfg.Jobs.SweepSchedule, cfg.Jobs.SweepTimeout, paymentService, log)
		if err != nil {
			log.Fatal("CRON", err.Error())
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("CRON", fmt.Sprintf("Pending allocation sweep scheduled: %s", cfg.Jobs.SweepSchedule))
	}

	// --- Handlers ---
	handler := order_api.NewHandler(orderService, paymentService, log)
	handler.TestMode = cfg.Payment.TestMode
	sseHandler := order_api.NewSSEHandler(log, emitter, orderService)
	ticketHandler := ticket_api.NewHandler(orderStore, pool, codeImporter, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         cfg.CORS.MaxAge,
	}))

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		handler.RegisterRoutes(r)
		r.Get("/orders/{orderId}/events", sseHandler.HandleOrderEvents)
		ticketHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Public order, payment and ticket routes registered under /api")

		// --- Protected Routes ---
		verifier := adminVerifier(ctx, cfg.Auth, log)
		if verifier == nil {
			log.Warn("AUTH", "No OIDC_ISSUER or ADMIN_JWT_SECRET set, admin routes are disabled")
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			handler.RegisterAdminRoutes(r)
			ticketHandler.RegisterAdminRoutes(r)
			analyticsHandler.RegisterRoutes(r)
		})
		log.Info("ROUTER", "Admin routes registered under /api/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket code service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Ticket code service shutdown complete")
	}
}
