package service

import (
	"context"
	"medaccess/internal/access/repository"
	"medaccess/pkg/config"
	"medaccess/pkg/kafka"
	"medaccess/pkg/model"
	"sync/atomic"
)

// DecisionLogger records every access decision in the audit collection and,
// when a producer is wired, fans it out on the decisions topic. Recording
// never fails the caller: the terminal must get its answer even when the
// audit trail is degraded. Failures are counted and surfaced through stats.
type DecisionLogger interface {
	Record(ctx context.Context, decision *model.AccessDecision)
	Failures() int64
}

type decisionLogger struct {
	repo     repository.DecisionRepository
	producer *kafka.Producer
	cfg      *config.Config
	failures atomic.Int64
}

// NewDecisionLogger wires the audit repository and an optional Kafka
// producer; pass nil when the fan-out is disabled.
func NewDecisionLogger(repo repository.DecisionRepository, producer *kafka.Producer, cfg *config.Config) DecisionLogger {
	return &decisionLogger{
		repo:     repo,
		producer: producer,
		cfg:      cfg,
	}
}

func (l *decisionLogger) Record(ctx context.Context, decision *model.AccessDecision) {
	if err := l.repo.Insert(ctx, decision); err != nil {
		l.failures.Add(1)
		l.cfg.Log.Error("Failed to record access decision",
			"token", decision.Token,
			"terminal_id", decision.TerminalID,
			"decision", decision.Decision,
			"reason", decision.Reason,
			"error", err,
		)
	}

	l.publish(ctx, decision)
}

func (l *decisionLogger) Failures() int64 {
	return l.failures.Load()
}

func (l *decisionLogger) publish(ctx context.Context, decision *model.AccessDecision) {
	if l.producer == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(decision.Token).
		WithValue(decision).
		WithEventType("access.decision").
		WithSource("medical-access").
		Build()

	if err := l.producer.Publish(ctx, msg); err != nil {
		l.cfg.Log.Warn("Failed to publish access decision",
			"token", decision.Token,
			"decision", decision.Decision,
			"transient", kafka.ClassifyError(err) == kafka.ErrorTypeTransient,
			"error", err,
		)
	}
}
