package upload

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/your-org/udn/internal/upload"

// State is a step of the upload task state machine.
type State int

const (
	StatePending State = iota
	StateValidating
	StateRegistering
	StateTransferring
	StateCompleting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidating:
		return "validating"
	case StateRegistering:
		return "registering"
	case StateTransferring:
		return "transferring"
	case StateCompleting:
		return "completing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// defaultKind tags untyped errors with the phase they came from.
func (s State) defaultKind() Kind {
	switch s {
	case StateValidating:
		return KindValidation
	case StateRegistering:
		return KindRegistration
	case StateTransferring:
		return KindTransfer
	case StateCompleting:
		return KindCompletion
	default:
		return KindUnknown
	}
}

// TaskDeps are the collaborators a Task runs against.
type TaskDeps struct {
	Bucket     string
	Registrar  Registrar
	Transferer Transferer
	Logger     *zap.Logger
	Now        func() time.Time
}

// Task uploads one file: validate, register, transfer, complete. Phases run
// in order and the first error ends the task. Nothing is retried, and a
// completion failure leaves the transferred object in place.
type Task struct {
	spec   FileUploadSpec
	deps   TaskDeps
	tracer trace.Tracer
	state  State
}

// NewTask prepares a task for spec.
func NewTask(spec FileUploadSpec, deps TaskDeps) *Task {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Task{
		spec:   spec,
		deps:   deps,
		tracer: otel.Tracer(tracerName),
		state:  StatePending,
	}
}

// State returns the current state. It is only meaningful once Run returned.
func (t *Task) State() State {
	return t.state
}

// Run drives the task to a terminal state and returns its report.
func (t *Task) Run(ctx context.Context) (report Report) {
	start := t.deps.Now()
	logger := t.deps.Logger.With(zap.String("file", t.spec.FileName))

	ctx, span := t.tracer.Start(ctx, "upload.task", trace.WithAttributes(
		attribute.String("upload.file", t.spec.FileName),
		attribute.String("upload.bucket", t.deps.Bucket),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			report = t.fail(span, logger, t.state, newError(t.state.defaultKind(), "panic: %v", r))
		}
	}()

	var (
		prepared FileUploadSpec
		session  *Session
	)

	phases := []struct {
		state State
		run   func(ctx context.Context) error
	}{
		{StateValidating, func(context.Context) error {
			md, err := prepareMetadata(t.spec)
			if err != nil {
				return err
			}
			prepared = t.spec.withMetadata(md)
			return nil
		}},
		{StateRegistering, func(ctx context.Context) error {
			s, err := t.deps.Registrar.Register(ctx, prepared)
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("empty registration response")
			}
			session = s
			return nil
		}},
		{StateTransferring, func(ctx context.Context) error {
			return t.deps.Transferer.Transfer(ctx, prepared, session)
		}},
		{StateCompleting, func(ctx context.Context) error {
			return t.deps.Registrar.Complete(ctx, session)
		}},
	}

	for _, phase := range phases {
		t.state = phase.state
		logger.Debug("upload phase", zap.Stringer("state", phase.state))

		phaseCtx, phaseSpan := t.tracer.Start(ctx, "upload."+phase.state.String())
		err := phase.run(phaseCtx)
		if err != nil {
			phaseSpan.RecordError(err)
			phaseSpan.SetStatus(codes.Error, err.Error())
		}
		phaseSpan.End()

		if err != nil {
			return t.fail(span, logger, phase.state, asError(phase.state.defaultKind(), err))
		}
	}

	t.state = StateSucceeded
	elapsed := t.deps.Now().Sub(start)
	report = successReport(t.spec.FileName, t.deps.Bucket, session.FolderName, elapsed)
	span.SetAttributes(attribute.String("upload.folder", session.FolderName))
	logger.Info("upload succeeded",
		zap.String("folder", session.FolderName),
		zap.Duration("elapsed", elapsed))
	return report
}

func (t *Task) fail(span trace.Span, logger *zap.Logger, state State, err *Error) Report {
	t.state = StateFailed
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("upload failed",
		zap.Stringer("phase", state),
		zap.Stringer("kind", err.Kind),
		zap.Error(err))
	return FailedReport(t.spec.FileName, state, err)
}
