package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefinder/internal/adapters/events"
	outboxStore "storefinder/internal/adapters/storage/outbox"
	domain "storefinder/internal/domain/outbox"
	"storefinder/internal/domain/ownership"
	"storefinder/internal/observability"
)

// OutboxProcessor delivers pending outbox entries through registered executors.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	metrics   *observability.Metrics
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// ActionExecutor executes one type of outbox action.
type ActionExecutor interface {
	// Execute performs the side effect for entry.
	// Returns the external ID (e.g. broker message id) and any error.
	Execute(ctx context.Context, entry domain.Entry) (string, error)
}

// OutboxConfig tunes the processor. Zero values take the defaults.
type OutboxConfig struct {
	BatchSize int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor, cfg OutboxConfig) *OutboxProcessor {
	p := &OutboxProcessor{
		store:     store,
		executors: executors,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
		batchSize: cfg.BatchSize,
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 30 * time.Second
	}
	if p.maxDelay <= 0 {
		p.maxDelay = time.Hour
	}
	if p.batchSize <= 0 {
		p.batchSize = 50
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	return p
}

// ProcessPending processes pending outbox entries with retries.
// The store filters out entries still in backoff, so they never crowd due ones out of a batch.
// PRE: Context is valid
// POST: Due entries attempted once; entries still in backoff are skipped
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.now(), p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}

	for _, entry := range entries {
		if !entry.DueAt(p.now(), p.baseDelay, p.maxDelay) {
			continue
		}
		if err := p.attempt(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err)
		}
	}
	return nil
}

// attempt runs the executor once and persists the outcome.
func (p *OutboxProcessor) attempt(ctx context.Context, entry domain.Entry) error {
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAttempt(p.now())
		entry.Attempts = entry.MaxAttempts
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		p.metrics.RecordOutboxDelivery(entry.Status)
		return p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(p.now())
	ctx, span := tracer.StartOutboxSpan(ctx, entry.ID, entry.ActionType, entry.Attempts)
	externalID, execErr := executor.Execute(ctx, entry)
	observability.End(span, execErr)

	if execErr != nil {
		entry.MarkFailed(execErr)
		entry.ScheduleRetry(p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts,
			"next_attempt_at", entry.NextAttemptAt, "error", execErr)
	} else {
		entry.MarkSuccess(externalID)
		entry.ScheduleRetry(p.baseDelay, p.maxDelay)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	p.metrics.RecordOutboxDelivery(entry.Status)
	return p.store.Save(ctx, entry)
}

// ProcessSingle manually processes a single outbox entry (for admin retry).
// Only failed entries qualify; pending and retrying ones belong to the
// background worker, and retrying them here could send them twice.
// Backoff is ignored and the failed entry gets one extra attempt.
// PRE: entryID is non-empty
// POST: Entry is processed, status updated; ErrTerminal for done/abandoned, ErrNotFailed otherwise
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, err
	}
	switch entry.Status {
	case domain.StatusDone, domain.StatusAbandoned:
		return entry, fmt.Errorf("entry %s: %w", entryID, domain.ErrTerminal)
	case domain.StatusFailed:
	default:
		return entry, fmt.Errorf("entry %s is %s: %w", entryID, entry.Status, domain.ErrNotFailed)
	}
	if entry.Attempts >= entry.MaxAttempts {
		entry.MaxAttempts = entry.Attempts + 1
	}
	if err := p.attempt(ctx, entry); err != nil {
		return domain.Entry{}, err
	}
	return p.store.GetByID(ctx, entryID)
}

// AbandonEntry marks an entry as abandoned by an operator.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned unless already delivered
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.Status == domain.StatusDone {
		return entry, fmt.Errorf("entry %s: %w", entryID, domain.ErrTerminal)
	}
	entry.MarkAbandoned()
	if err := p.store.Save(ctx, entry); err != nil {
		return domain.Entry{}, err
	}
	slog.Info("outbox_entry_abandoned", "entry_id", entryID)
	return entry, nil
}

// Run processes the outbox every interval until ctx is cancelled.
// PRE: interval > 0
// POST: Returns nil once ctx is done
func (p *OutboxProcessor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("outbox_worker_started", "interval", interval.String(), "batch_size", p.batchSize)
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox_worker_stopped")
			return nil
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, interval*5)
			if err := p.ProcessPending(runCtx); err != nil {
				slog.Error("outbox_background_process_failed", "error", err)
			}
			cancel()
		}
	}
}

// --- Role Update Executor ---

// MessageSender delivers a message to the broker.
type MessageSender interface {
	Send(ctx context.Context, msg events.Message) (string, error)
}

// RoleUpdateExecutor relays role update entries to the broker.
type RoleUpdateExecutor struct {
	Sender MessageSender
}

// Execute re-validates the payload and sends it with the entry id as message id,
// so consumers can drop duplicates from redelivery.
// PRE: entry.Payload is a JSON RoleUpdateEvent
// POST: Message sent, returns the broker's id
// INVARIANT: outbox entry status managed by caller
func (e RoleUpdateExecutor) Execute(ctx context.Context, entry domain.Entry) (string, error) {
	event, err := ownership.DecodeRoleUpdateEvent([]byte(entry.Payload))
	if err != nil {
		return "", fmt.Errorf("decode role update payload: %w", err)
	}
	topic := entry.Topic
	if topic == "" {
		topic = ownership.TopicUserRoleUpdates
	}
	return e.Sender.Send(ctx, events.Message{
		ID:    entry.ID,
		Topic: topic,
		Key:   event.UserID,
		Body:  []byte(entry.Payload),
	})
}
