package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/config"
	"github.com/komuness/core/internal/middleware"
	"github.com/komuness/core/internal/modules/notify"
	"github.com/komuness/core/internal/modules/publication"
	"github.com/komuness/core/internal/modules/storage/upload"
	pkgcron "github.com/komuness/core/internal/pkg/cron"
	"github.com/komuness/core/internal/pkg/mail"
	pkgredis "github.com/komuness/core/internal/pkg/redis"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	backend *backend
	redis   *pkgredis.Client
	local   *upload.LocalStorage
	ledger  *upload.Ledger
	logger  *zap.Logger
	cancel  context.CancelFunc
	sched   *pkgcron.Scheduler
	pubs    *publication.Service
}

// New initializes the application: config → store → Redis → storage → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	be, err := openBackend(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		cancel()
		_ = be.close(context.Background())
		return nil, fmt.Errorf("redis: %w", err)
	}

	storage, local, err := openStorage(cfg)
	if err != nil {
		cancel()
		_ = be.close(context.Background())
		_ = rc.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	ledger := upload.NewLedger(rc.Raw())
	uploads := upload.NewManager(storage, ledger, upload.WithLogger(logger))

	pubs := publication.NewService(be.store, uploads,
		publication.WithLogger(logger),
		publication.WithNotifier(newNotifier(cfg, logger)),
		publication.WithOptions(publication.Options{
			MaxEdits:           cfg.Moderation.MaxEdits,
			ChargeNoopApproval: cfg.Moderation.ChargeNoopApproval,
			StrictFields:       cfg.Moderation.StrictFields,
			DefaultCategory:    cfg.Publications.DefaultCategory,
		}),
	)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())
	router.Use(newCORS(cfg))

	sched := pkgcron.New(logger)
	registerCronJobs(sched, upload.NewReconciler(storage, ledger, cfg.ProvisionalTTL(), logger), cfg, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:     cfg,
		router:  router,
		backend: be,
		redis:   rc,
		local:   local,
		ledger:  ledger,
		logger:  logger,
		cancel:  cancel,
		sched:   sched,
		pubs:    pubs,
	}
	app.registerRoutes()
	return app, nil
}

func newNotifier(cfg *config.AppConfig, logger *zap.Logger) notify.Notifier {
	sender := mail.New(mail.Config{
		Enable:    cfg.Mail.Enable,
		Host:      cfg.Mail.Host,
		Port:      cfg.Mail.Port,
		User:      cfg.Mail.User,
		Pass:      cfg.Mail.Pass,
		From:      cfg.Mail.From,
		ReplyTo:   cfg.Mail.ReplyTo,
		ResendKey: cfg.Mail.ResendKey,
	})
	if !sender.Enabled() {
		return notify.Nop{}
	}
	if len(cfg.Mail.AdminEmails) == 0 {
		logger.Warn("mail is enabled but admin_emails is empty, moderation notices will be skipped")
	}
	return notify.NewMailNotifier(sender, notify.MailOptions{
		AdminEmails: cfg.Mail.AdminEmails,
		SiteName:    cfg.Mail.SiteName,
		ReviewURL:   cfg.Mail.ReviewURL,
	}, logger)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes connections.
func (a *App) Shutdown(ctx context.Context) {
	a.cancel()
	if err := a.backend.close(ctx); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
}
