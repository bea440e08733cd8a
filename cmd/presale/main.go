package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"presale/internal/aggregate"
	"presale/internal/auth"
	"presale/internal/config"
	cronrunner "presale/internal/cron"
	"presale/internal/db"
	"presale/internal/explorer"
	"presale/internal/handler"
	"presale/internal/kv"
	"presale/internal/ledger"
	"presale/internal/logger"
	"presale/internal/metrics"
	"presale/internal/paas"
	"presale/internal/repository"
	gormrepository "presale/internal/repository/gorm"
	"presale/internal/service"

	_ "presale/docs"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("PRESALE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PRESALE_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, closeKV := openKV(cfg.KV, logger)
	defer closeKV()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	var gormDB *gorm.DB
	var repo repository.Repository
	if dbConn != nil {
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		gormDB = dbConn.Gorm
		repo = gormrepository.New(dbConn.Gorm)
	} else {
		logger.Info("db dsn empty, run journal disabled")
	}

	settingsSvc := &service.SystemSettingsService{Repo: repo}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	ledgerClient, err := ledger.New(cfg.Ledger, logger)
	if err != nil {
		logger.Fatal("ledger client init failed", zap.Error(err))
	}
	defer ledgerClient.Close()

	explorerHTTP := &http.Client{Timeout: cfg.Explorer.Timeout}
	xrpscan := explorer.XRPScan{
		BaseURL:   cfg.Explorer.XRPScanBaseURL,
		HTTP:      explorerHTTP,
		Cache:     store,
		TTL:       cfg.Explorer.CacheTTL,
		UserAgent: cfg.Explorer.UserAgent,
	}
	dataAPI := explorer.DataAPI{
		BaseURL:   cfg.Explorer.DataAPIBaseURL,
		HTTP:      explorerHTTP,
		Cache:     store,
		TTL:       cfg.Explorer.CacheTTL,
		UserAgent: cfg.Explorer.UserAgent,
	}

	supply, _ := cfg.SupplyForSale()
	static, _ := cfg.StaticSnapshot()
	aggregates := aggregate.New(store, cfg.Presale.RecentLimit)

	presaleSvc := &service.PresaleService{
		Aggregates: aggregates,
		Ledger:     ledgerClient,
		XRPScan:    xrpscan,
		DataAPI:    dataAPI,
		Flags:      settingsSvc,
		Logger:     logger,
		Presale:    cfg.Presale,
		Explorer:   cfg.Explorer,
		Ingest:     cfg.Ingest,
	}
	ingestSvc := &service.IngestService{
		Aggregates: aggregates,
		Ledger:     ledgerClient,
		Repo:       repo,
		Logger:     logger,
		Presale:    cfg.Presale,
		Config:     cfg.Ingest,
	}
	snapshotSvc := &service.SnapshotService{Aggregates: aggregates, Supply: supply, Logger: logger}
	claimSvc := &service.ClaimService{
		Aggregates: aggregates,
		Ledger:     ledgerClient,
		Static:     static,
		Token:      cfg.Token,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(metrics.Middleware())

	paasClient := initPaaSClient(logger)
	engine.Use(paas.InjectClientMiddleware(paasClient))
	engine.Use(paas.WriteAuditMiddleware(paasClient, logger))

	healthHandler := &handler.HealthHandler{KV: store, DB: gormDB}
	healthHandler.Register(engine)
	paas.RegisterDocs(engine)
	presaleHandler := &handler.PresaleHandler{Presale: presaleSvc, Logger: logger}
	presaleHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Ingest:   ingestSvc,
		Snapshot: snapshotSvc,
		Settings: settingsSvc,
		Secret:   cfg.Ingest.Secret,
		Logger:   logger,
	}
	adminHandler.Register(engine)
	claimHandler := &handler.ClaimHandler{Claim: claimSvc, Logger: logger}
	claimHandler.Register(engine)

	engine.GET("/metrics", metrics.Handler())
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseCtx := ctx
	if paasClient != nil {
		baseCtx = paas.WithClient(ctx, paasClient)
	}

	cronRunner := cronrunner.New(logger, baseCtx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("ingest", cfg.Cron.Ingest, func(ctx context.Context) {
			if !settingsSvc.IsEnabled(ctx, service.FeatureScheduledIngest, true) {
				return
			}
			if _, err := ingestSvc.Ingest(ctx, service.IngestOptions{}); err != nil {
				if errors.Is(err, service.ErrIngestInProgress) {
					logger.Debug("cron ingest skipped, lease held")
					return
				}
				logger.Warn("cron ingest failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register ingest failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("destination", cfg.Presale.Destination),
			zap.String("kv", cfg.KV.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openKV(cfg config.KVConfig, logger *zap.Logger) (kv.Store, func()) {
	if cfg.Backend != "redis" {
		logger.Warn("kv backend is memory, aggregates are lost on restart")
		return kv.NewMemoryStore(), func() {}
	}
	rs := kv.NewRedisStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		logger.Warn("redis ping failed (continuing)", zap.Error(err))
	}
	return rs, func() { _ = rs.Close() }
}

// printToken mints a bearer token for the privileged routes:
//
//	presale token [scope] [ttl]
func printToken(cfg config.Config, args []string) error {
	secret := strings.TrimSpace(cfg.Ingest.Secret)
	if secret == "" {
		return errors.New("ingest.secret is empty")
	}
	scope := "ingest"
	if len(args) > 0 && args[0] != "" {
		scope = args[0]
	}
	signer := auth.JWT{Secret: []byte(secret)}
	if len(args) > 1 {
		ttl, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("parse ttl: %w", err)
		}
		signer.TokenTTL = ttl
	}
	token, exp, err := signer.Sign(auth.Claims{
		Scope:            scope,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "operator"},
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Presale-Secret")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func initPaaSClient(logger *zap.Logger) *paas.Client {
	base := strings.TrimSpace(os.Getenv("EASYWEB3_API_BASE"))
	apiKey := strings.TrimSpace(os.Getenv("EASYWEB3_API_KEY"))
	if base == "" || apiKey == "" {
		return nil
	}

	p := &paas.Client{BaseURL: base, APIKey: apiKey, Agent: strings.TrimSpace(os.Getenv("PRESALE_PAAS_AGENT"))}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		if logger != nil {
			logger.Warn("paas login failed (logs disabled)", zap.Error(err))
		}
		return nil
	}
	if logger != nil {
		logger.Info("paas login ok")
	}
	return p
}
