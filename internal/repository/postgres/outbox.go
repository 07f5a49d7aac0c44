package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, practice_id, event_type, payload, status, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.Status = model.OutboxStatusPending

	_, err := r.exec(ctx, r.db, "create outbox event", query,
		event.ID,
		event.PracticeID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	return mapError("create outbox event", "outbox event", err)
}

// ClaimPending locks up to limit pending events, hands each to handle and
// records the outcome, all in one transaction. Rows locked by another worker
// are skipped. It returns the number of events handled successfully.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, handle func(*model.OutboxEvent) error) (int, error) {
	selectQuery := `
		SELECT id, practice_id, event_type, payload, status, error_message,
			   retry_count, created_at, processed_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	doneQuery := `
		UPDATE outbox_events
		SET status = $2, processed_at = $3, error_message = NULL
		WHERE id = $1
	`
	failQuery := `
		UPDATE outbox_events
		SET status = $2, retry_count = $3, error_message = $4
		WHERE id = $1
	`

	processed := 0
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		processed = 0
		events := []*model.OutboxEvent{}
		if err := r.selectAll(ctx, tx, "claim outbox events", &events, selectQuery,
			model.OutboxStatusPending, limit); err != nil {
			return mapError("claim outbox events", "outbox event", err)
		}

		for _, evt := range events {
			if herr := handle(evt); herr != nil {
				retries := evt.RetryCount + 1
				status := model.OutboxStatusPending
				if retries >= model.OutboxMaxRetries {
					status = model.OutboxStatusFailed
				}
				msg := herr.Error()
				if _, err := r.exec(ctx, tx, "fail outbox event", failQuery,
					evt.ID, status, retries, msg); err != nil {
					return mapError("update outbox event", "outbox event", err)
				}
				continue
			}

			if _, err := r.exec(ctx, tx, "complete outbox event", doneQuery,
				evt.ID, model.OutboxStatusProcessed, time.Now().UTC()); err != nil {
				return mapError("update outbox event", "outbox event", err)
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}
