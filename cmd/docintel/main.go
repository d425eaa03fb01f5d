package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/docintel/internal/async"
	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/extract"
	"github.com/joseph-ayodele/docintel/internal/ingest"
	"github.com/joseph-ayodele/docintel/internal/lock"
	"github.com/joseph-ayodele/docintel/internal/metrics"
	"github.com/joseph-ayodele/docintel/internal/ocr"
	repo "github.com/joseph-ayodele/docintel/internal/repository"
	"github.com/joseph-ayodele/docintel/internal/server"
	"github.com/joseph-ayodele/docintel/internal/services/documents"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(pool, logger)

	// Ping DB to ensure connectivity
	if err := repo.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	ping := func(ctx context.Context) error { return repo.HealthCheck(ctx, pool, 2*time.Second, logger) }

	blobs, err := openBlobStore(ctx, cfg.Blob, logger)
	if err != nil {
		logger.Error("failed to open blob store", "backend", cfg.Blob.Backend, "error", err)
		os.Exit(1)
	}

	scope := repo.NewTenantScope(pool, logger)
	profilesRepo := repo.NewProfileRepository(scope, logger)
	jobsRepo := repo.NewDocumentJobRepository(scope, logger)
	itemsRepo := repo.NewDocumentItemRepository(scope, logger)

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.OCR.PdftoppmBin,
		Tesseract:     cfg.OCR.TesseractBin,
		TesseractLang: cfg.OCR.Lang,
		DPI:           cfg.OCR.DPI,
		TessdataDir:   cfg.OCR.TessdataDir,
		HeicConverter: cfg.OCR.HeicConverter,
	}, logger)
	extractor := extract.NewOCRAdapter(ocrx, logger)

	collector := metrics.New(nil)

	var locker async.Locker
	if cfg.Redis.Addr != "" {
		client, err := lock.NewRedisClient(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Redis.LockTTL, logger)
		logger.Info("job lock enabled", "redis", cfg.Redis.Addr)
	}

	// the queue handler needs the service, the service needs the queue
	var docs *documents.Service
	queue := async.NewProcessorQueue(func(ctx context.Context, job async.Job) error {
		_, err := docs.ProcessExtraction(ctx, job.TenantID, job.JobID)
		return err
	}, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithLocker(locker),
		async.WithFailureHandler(func(ctx context.Context, job async.Job, cause error) {
			if err := docs.FailJob(ctx, job.TenantID, job.JobID, cause); err != nil {
				logger.Error("could not fail unprocessed job", "job_id", job.JobID, "tenant_id", job.TenantID, "error", err)
			}
		}),
	)
	docs = documents.NewService(documents.Deps{
		Profiles:  profilesRepo,
		Jobs:      jobsRepo,
		Items:     itemsRepo,
		Blobs:     blobs,
		Extractor: extractor,
		Queue:     queue,
		Metrics:   collector,
	}, logger)

	api := server.New(server.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	}, server.Deps{
		Documents:      docs,
		Blobs:          blobs,
		Auth:           server.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
		Ping:           ping,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	go func() {
		logger.Info("docintel listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	if cfg.Server.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCHealthAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCHealthAddr, "error", err)
			os.Exit(1)
		}
		hs := server.NewHealthServer(ping, logger)
		go func() {
			if err := hs.Serve(ctx, lis, 10*time.Second); err != nil {
				logger.Error("gRPC health serve error", "error", err)
			}
		}()
	}

	if cfg.Inbox.Dir != "" {
		inbox := ingest.NewInbox(ingest.Config{Root: cfg.Inbox.Dir, Debounce: cfg.Inbox.Debounce}, blobs, docs, logger)
		go func() {
			if _, err := inbox.Scan(ctx); err != nil {
				logger.Error("inbox scan failed", "error", err)
			}
			if err := inbox.Watch(ctx); err != nil {
				logger.Error("inbox watch failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
}

func openBlobStore(ctx context.Context, cfg common.BlobConfig, logger *slog.Logger) (blob.Store, error) {
	switch cfg.Backend {
	case "minio":
		store, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := blob.NewFSStore(cfg.Root, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
