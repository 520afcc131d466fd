package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/config"
	"github.com/healthassess/secure-gateway/gateway"
	"github.com/healthassess/secure-gateway/handlers"
	"github.com/healthassess/secure-gateway/middleware"
	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/account"
	"github.com/healthassess/secure-gateway/services/privacy"
	"github.com/healthassess/secure-gateway/services/ratelimit"
	"github.com/healthassess/secure-gateway/services/rbac"
	"github.com/healthassess/secure-gateway/services/threat"
	"github.com/healthassess/secure-gateway/services/token"
)

// Dependencies holds all application dependencies. This is the central
// wiring point: nothing in the tree reaches for ambient singletons.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB
	Redis  *redis.Client

	Registry   *rbac.Registry
	Tokens     *token.Service
	Accounts   *account.Service
	Limiter    *ratelimit.Service
	Scanner    *threat.Scanner
	Monitor    *threat.Monitor
	Encryptor  *privacy.Encryptor
	Anonymizer *privacy.Anonymizer
	Compliance *privacy.Compliance
	Gateway    *gateway.Gateway

	Auth     *middleware.AuthMiddleware
	Security *middleware.SecurityMiddleware

	AuthHandler       *handlers.AuthHandler
	AssessmentHandler *handlers.AssessmentHandler
	AdminHandler      *handlers.AdminHandler
	HealthHandler     *handlers.HealthHandler

	principalStore  account.PrincipalStore
	auditStore      privacy.AuditStore
	rateStore       ratelimit.Store
	rateIdentifiers func() []string
}

// NewDependencies creates and wires up all application dependencies.
// Postgres backs the audit trail and principal registry when DATABASE_URL
// is set; Redis backs the rate limiter when REDIS_ADDR is set. Both fall
// back to in-memory stores otherwise.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStores(ctx); err != nil {
		return nil, err
	}
	if err := deps.initServices(); err != nil {
		return nil, err
	}
	deps.initHTTP()

	logger.Info("dependencies initialized",
		zap.Bool("postgres", deps.DB != nil),
		zap.Bool("redis", deps.Redis != nil))
	return deps, nil
}

func (d *Dependencies) initStores(ctx context.Context) error {
	if d.Config.Database.URL != "" {
		db, err := sql.Open("postgres", d.Config.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(d.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(d.Config.Database.MaxIdleConns)
		db.SetConnMaxLifetime(d.Config.Database.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		d.DB = db
		d.principalStore = account.NewPostgresPrincipalStore(db, d.Logger)
		d.auditStore = privacy.NewPostgresAuditStore(db, d.Logger)
		d.Logger.Info("database connection established",
			zap.String("connection", d.Config.Database.LogString()))
	} else {
		d.principalStore = account.NewMemoryPrincipalStore()
		d.auditStore = privacy.NewMemoryAuditStore()
		d.Logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if d.Config.Security.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     d.Config.Security.RedisAddr,
			Password: d.Config.Security.RedisPassword,
			DB:       d.Config.Security.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.Redis = client
		d.rateStore = ratelimit.NewRedisStore(client)
		d.rateIdentifiers = func() []string { return nil }
	} else {
		memStore := ratelimit.NewMemoryStore()
		d.rateStore = memStore
		d.rateIdentifiers = memStore.Identifiers
	}
	return nil
}

func (d *Dependencies) initServices() error {
	d.Registry = rbac.NewRegistry(rbac.DefaultPolicy())

	d.Tokens = token.NewService(token.Config{
		Secret:     []byte(d.Config.Security.TokenSecret),
		AccessTTL:  d.Config.Security.AccessTokenTTL,
		RefreshTTL: d.Config.Security.RefreshTokenTTL,
	}, d.Registry, d.Logger)

	d.Accounts = account.NewService(d.principalStore, d.Logger)
	d.Accounts.SetCost(d.Config.Security.BcryptCost)

	d.Limiter = ratelimit.NewService(d.rateStore, models.RateLimitConfig{
		RequestsPerMinute: d.Config.Security.RatePerMinute,
		RequestsPerHour:   d.Config.Security.RatePerHour,
		RequestsPerDay:    d.Config.Security.RatePerDay,
	}, d.Logger)

	d.Scanner = threat.NewScanner()
	d.Monitor = threat.NewMonitor(0, d.Logger)

	encryptor, err := privacy.NewEncryptor(d.Config.Security.EncryptionKeyFile, d.Logger)
	if err != nil {
		return fmt.Errorf("init encryptor: %w", err)
	}
	d.Encryptor = encryptor
	d.Anonymizer = privacy.NewAnonymizer([]byte(d.Config.Security.AnonymizerSecret))
	d.Compliance = privacy.NewCompliance(d.auditStore, d.Logger)

	// Handlers bind the operation per request; an unbound dispatch is a
	// wiring bug, not a caller error.
	defaultDispatch := gateway.DispatcherFunc(func(ctx context.Context, _ *token.Claims, req *gateway.Request) (interface{}, error) {
		return nil, fmt.Errorf("no dispatcher bound for %s %s", req.Method, req.Path)
	})
	d.Gateway = gateway.New(d.Tokens, d.Limiter, d.Scanner, d.Monitor, d.Compliance, defaultDispatch, d.Logger)
	return nil
}

func (d *Dependencies) initHTTP() {
	d.Auth = middleware.NewAuthMiddleware(d.Tokens, d.Logger)
	d.Security = middleware.NewSecurityMiddleware(d.Limiter, d.Monitor, d.Logger)

	assessments := handlers.NewAssessmentStore()
	d.AuthHandler = handlers.NewAuthHandler(d.Accounts, d.Tokens, d.Logger)
	d.AssessmentHandler = handlers.NewAssessmentHandler(d.Gateway, assessments, d.Encryptor, d.Logger)
	d.AdminHandler = handlers.NewAdminHandler(d.Monitor, d.Compliance, d.Anonymizer, assessments, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Logger)
}

// StartBackgroundWorkers launches the rate-limit pruning loop on its own
// goroutine and returns immediately. Workers stop when ctx is cancelled.
func (d *Dependencies) StartBackgroundWorkers(ctx context.Context) {
	go d.Limiter.StartCleanupWorker(ctx, time.Hour, d.rateIdentifiers)
}

// Close gracefully shuts down all dependencies.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
