package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/udn/internal/upload"
	"github.com/your-org/udn/pkg/config"
	"github.com/your-org/udn/pkg/kafka"
	"github.com/your-org/udn/pkg/logger"
	"github.com/your-org/udn/pkg/tracing"
)

type profileFlags struct {
	test  bool
	force bool
}

// runtime holds everything one command invocation needs.
type runtime struct {
	logger        *zap.Logger
	logPath       string
	service       *upload.Service
	traceShutdown func(context.Context) error
}

func newRuntime(ctx context.Context, command string, flags profileFlags) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	profilePath, err := cfg.ProfilePath()
	if err != nil {
		return nil, err
	}
	profile, err := config.LoadProfile(profilePath, config.SectionFor(flags.test))
	if err != nil {
		return nil, err
	}

	logr, logPath, err := logger.ForCommand(cfg.App.LogLevel, cfg.App.LogDir, command, time.Now())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		_ = logr.Sync()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	var events upload.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.ReportsTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			MaxAttempts:  cfg.Kafka.Retries,
		})
		if err != nil {
			_ = traceShutdown(ctx)
			_ = logr.Sync()
			return nil, fmt.Errorf("init report producer: %w", err)
		}
		events = producer
	}

	uploadCfg := upload.UploadConfig{
		Host:             profile.Host,
		UDNToken:         profile.UDNToken,
		FileServiceToken: profile.FileServiceToken,
		Bucket:           profile.Bucket,
		Permissions:      profile.Permissions,
		Force:            flags.force,
	}

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	service := upload.NewService(upload.Params{
		Config:    uploadCfg,
		Registrar: upload.NewAPIClient(uploadCfg, httpClient, logr),
		Transferer: upload.NewEngine(profile.Bucket, upload.StorageSettings{
			Provider: cfg.Storage.Provider,
			Endpoint: cfg.Storage.Endpoint,
			Region:   cfg.Storage.Region,
			UseSSL:   cfg.Storage.UseSSL,
		}, nil, logr),
		Events: events,
		Logger: logr,
	})

	logr.Info("udn command starting",
		zap.String("command", command),
		zap.String("section", config.SectionFor(flags.test)),
		zap.String("bucket", profile.Bucket),
		zap.Bool("force", flags.force),
		zap.String("storage_provider", cfg.Storage.Provider))

	return &runtime{
		logger:        logr,
		logPath:       logPath,
		service:       service,
		traceShutdown: traceShutdown,
	}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.service.Close(ctx); err != nil {
		r.logger.Error("service shutdown failed", zap.Error(err))
	}
	if err := r.traceShutdown(ctx); err != nil {
		r.logger.Error("tracing shutdown failed", zap.Error(err))
	}
	_ = r.logger.Sync()
}
