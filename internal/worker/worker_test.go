package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/event"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

type fakeBroker struct {
	mu       sync.Mutex
	fail     error
	channels []string
	messages []messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.channels = append(b.channels, channel)
	b.messages = append(b.messages, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Close() error { return nil }

type fakeNotifier struct {
	subjects []string
	fail     error
}

func (n *fakeNotifier) Notify(_ context.Context, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return n.fail
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: &bytes.Buffer{}})
}

type outboxFixture struct {
	store    *memory.Store
	events   *event.Service
	broker   *fakeBroker
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	proc     *OutboxProcessor
}

func newOutboxFixture(t *testing.T) *outboxFixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	f := &outboxFixture{
		store:    store,
		events:   event.NewService(repos.Outbox),
		broker:   &fakeBroker{},
		notifier: &fakeNotifier{},
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	proc, err := NewOutboxProcessor(repos.Outbox, f.broker, f.notifier, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		Channel:      "practice-events",
	}, quietLogger(), f.metrics)
	require.NoError(t, err)
	f.proc = proc
	return f
}

func (f *outboxFixture) emitAppointment(t *testing.T, eventType string) uuid.UUID {
	t.Helper()
	practiceID := uuid.New()
	evt := model.AppointmentEvent{
		AppointmentID:  uuid.New(),
		PracticeID:     practiceID,
		PractitionerID: uuid.New(),
		ClientID:       uuid.New(),
		StartTime:      time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC),
		Status:         model.AppointmentStatusScheduled,
	}
	require.NoError(t, f.events.Emit(context.Background(), practiceID, eventType, evt))
	return practiceID
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	repos := memory.NewStore().Repositories()
	_, err := NewOutboxProcessor(repos.Outbox, &fakeBroker{}, nil, OutboxProcessorConfig{}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
	assert.Contains(t, err.Error(), "channel")
}

func TestProcessBatch_PublishesAndNotifies(t *testing.T) {
	f := newOutboxFixture(t)
	practiceID := f.emitAppointment(t, model.EventAppointmentCreated)
	require.NoError(t, f.events.Emit(context.Background(), practiceID, model.EventAssignmentReplaced,
		model.AssignmentEvent{AssistantID: uuid.New(), PracticeID: practiceID}))

	n, err := f.proc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, f.broker.messages, 2)
	assert.Equal(t, []string{"practice-events", "practice-events"}, f.broker.channels)
	assert.Equal(t, model.EventAppointmentCreated, f.broker.messages[0].Type)
	assert.Equal(t, practiceID.String(), f.broker.messages[0].PracticeID)

	// only the appointment event sends a notice
	require.Len(t, f.notifier.subjects, 1)
	assert.Contains(t, f.notifier.subjects[0], "booked")

	for _, e := range f.store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OutboxEventsProcessed))

	// nothing left
	n, err = f.proc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_PayloadIsPublishedVerbatim(t *testing.T) {
	f := newOutboxFixture(t)
	f.emitAppointment(t, model.EventAppointmentCancelled)

	_, err := f.proc.ProcessBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, f.broker.messages, 1)
	raw, err := json.Marshal(f.broker.messages[0])
	require.NoError(t, err)

	var decoded struct {
		Payload model.AppointmentEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, model.AppointmentStatusScheduled, decoded.Payload.Status)
}

func TestProcessBatch_PublishFailureRetriesThenParks(t *testing.T) {
	f := newOutboxFixture(t)
	f.broker.fail = errors.New("redis down")
	f.emitAppointment(t, model.EventAppointmentCreated)

	for i := 1; i <= model.OutboxMaxRetries; i++ {
		n, err := f.proc.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)

		events := f.store.OutboxEvents()
		require.Len(t, events, 1)
		assert.Equal(t, i, events[0].RetryCount)
	}

	evt := f.store.OutboxEvents()[0]
	assert.Equal(t, model.OutboxStatusFailed, evt.Status)
	require.NotNil(t, evt.ErrorMessage)
	assert.Contains(t, *evt.ErrorMessage, "redis down")
	assert.Empty(t, f.notifier.subjects)
	assert.Equal(t, float64(model.OutboxMaxRetries), testutil.ToFloat64(f.metrics.OutboxEventsFailed))
}

func TestProcessBatch_NotifierFailureStillCompletes(t *testing.T) {
	f := newOutboxFixture(t)
	f.notifier.fail = errors.New("smtp refused")
	f.emitAppointment(t, model.EventAppointmentMoved)

	n, err := f.proc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, f.store.OutboxEvents()[0].Status)
}

func TestOutboxProcessor_StopsOnCancel(t *testing.T) {
	f := newOutboxFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.proc.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestAuditCleanup_RunOnce(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	old := &model.AuditLog{ID: uuid.New(), Action: model.AuditActionCreate, CreatedAt: time.Now().AddDate(0, 0, -120)}
	recent := &model.AuditLog{ID: uuid.New(), Action: model.AuditActionCreate, CreatedAt: time.Now().AddDate(0, 0, -5)}
	require.NoError(t, repos.Audit.Create(ctx, old))
	require.NoError(t, repos.Audit.Create(ctx, recent))

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	w := NewAuditCleanupWorker(audit.NewService(repos.Audit), 90, time.Hour, quietLogger(), m)

	rows, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	left := store.AuditLogs()
	require.Len(t, left, 1)
	assert.Equal(t, recent.ID, left[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditLogsPurged))
}
