package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher sends report events. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// Service wires the metadata service client, the transfer engine, report
// events and logging for upload runs.
type Service struct {
	cfg        UploadConfig
	registrar  Registrar
	transferer Transferer
	events     EventPublisher
	logger     *zap.Logger
	workers    int
	now        func() time.Time
	runID      string
}

type Params struct {
	Config     UploadConfig
	Registrar  Registrar
	Transferer Transferer
	// Events is optional; reports are only logged when it is nil.
	Events  EventPublisher
	Logger  *zap.Logger
	Workers int
	Now     func() time.Time
}

// NewService constructs an upload Service.
func NewService(p Params) *Service {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Workers <= 0 {
		p.Workers = BatchWorkers
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	runID := uuid.NewString()
	return &Service{
		cfg:        p.Config,
		registrar:  p.Registrar,
		transferer: p.Transferer,
		events:     p.Events,
		logger:     p.Logger.With(zap.String("run_id", runID)),
		workers:    p.Workers,
		now:        p.Now,
		runID:      runID,
	}
}

// Upload runs a single task for spec and records its report.
func (s *Service) Upload(ctx context.Context, spec FileUploadSpec) Report {
	report := s.runTask(ctx, spec)
	s.record(ctx, report)
	return report
}

func (s *Service) runTask(ctx context.Context, spec FileUploadSpec) Report {
	return NewTask(spec, TaskDeps{
		Bucket:     s.cfg.Bucket,
		Registrar:  s.registrar,
		Transferer: s.transferer,
		Logger:     s.logger,
		Now:        s.now,
	}).Run(ctx)
}

// record logs the report and publishes it when events are configured. A
// publish failure never changes the report.
func (s *Service) record(ctx context.Context, report Report) {
	fields := []zap.Field{
		zap.String("file", report.FileName),
		zap.Stringer("outcome", report.Outcome),
	}
	if report.OK() {
		s.logger.Info(report.Message, fields...)
	} else {
		s.logger.Error(report.Message, fields...)
	}

	if s.events == nil {
		return
	}

	event := newReportEvent(s.runID, report, s.now())
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshal report event", zap.Error(err))
		return
	}

	headers := map[string]string{
		"event_id":   event.ID,
		"event_type": "upload.report",
		"outcome":    report.Outcome.String(),
	}
	if err := s.events.Publish(ctx, []byte(report.FileName), payload, headers); err != nil {
		s.logger.Warn("publish report event", zap.String("file", report.FileName), zap.Error(err))
	}
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Close(ctx); err != nil {
		return fmt.Errorf("close event publisher: %w", err)
	}
	return nil
}
