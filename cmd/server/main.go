package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"blog-service/internal/auth"
	"blog-service/internal/config"
	apphttp "blog-service/internal/http"
	"blog-service/internal/metrics"
	"blog-service/internal/ratelimit"
	"blog-service/internal/repository"
	"blog-service/internal/repository/mongostore"
	"blog-service/internal/repository/sqlstore"
	"blog-service/internal/service"
	"blog-service/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(logger); err != nil {
		logger.Fatal(err)
	}
	logger.Info("bye")
}

// run wires the application and serves until a shutdown signal.
func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Infof("using %s store", cfg.Database.Driver)

	limiter, err := buildLimiter(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup rate limiter: %w", err)
	}
	defer limiter.Close()

	images, err := buildImageStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	tokens := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := service.NewUserService(store.Users(), auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, logger)
	blogService := service.NewBlogService(store, service.BlogOptions{
		PlaceholderImage: cfg.Blog.PlaceholderImage,
		EnforceOwnership: cfg.Auth.EnforceOwnership,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Config{
		Users:            userService,
		Blogs:            blogService,
		Tokens:           tokens,
		Images:           images,
		Limiter:          limiter,
		Metrics:          metrics.New(),
		Health:           store,
		Logger:           logger,
		RequestTimeout:   cfg.Server.RequestTimeout,
		EnforceOwnership: cfg.Auth.EnforceOwnership,
		SignupPerMinute:  cfg.RateLimit.SignupPerMinute,
		LoginPerMinute:   cfg.RateLimit.LoginPerMinute,
		MaxImageBytes:    cfg.Storage.MaxImageBytes,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("http shutdown: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.Database.Path)
	case config.DriverPostgres:
		return sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.Database.DSN)
	case config.DriverMongo:
		return mongostore.Open(ctx, cfg.Database.MongoURI, cfg.Database.MongoName)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildLimiter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ratelimit.Limiter, error) {
	if cfg.RateLimit.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(), nil
	}
	limiter, err := ratelimit.DialRedis(ctx, cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof("using redis rate limiter at %s", cfg.RateLimit.RedisAddr)
	return limiter, nil
}

// buildImageStore returns nil when no bucket is configured; image upload
// then answers 503.
func buildImageStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.ImageStore, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("no storage bucket configured, image upload disabled")
		return nil, nil
	}

	opts := storage.S3Options{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		KeyPrefix:       cfg.Storage.KeyPrefix,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	}
	client, err := storage.NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3ImageStore(client, opts), nil
}
