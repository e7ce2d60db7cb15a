package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"rl-verifier/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

type fakeTask struct {
	queue   string
	payload []byte
	acked   bool
	nacked  bool
	reject  bool
}

func (t *fakeTask) Type() string    { return t.queue }
func (t *fakeTask) Payload() []byte { return t.payload }
func (t *fakeTask) Ack() error      { t.acked = true; return nil }
func (t *fakeTask) Nack() error     { t.nacked = true; return nil }
func (t *fakeTask) Reject() error   { t.reject = true; return nil }

func TestRecorderSavesEvents(t *testing.T) {
	db := createDB(t)
	queue := NewInMemoryQueue()
	recorder := NewRecorder(db, queue)

	formatScore := 1.0
	events := []RewardEventPayload{
		{
			Id:               uuid.New(),
			VerificationType: "math_verifiable",
			VerificationInfo: json.RawMessage(`{"type":"math_verifiable","answer":{"value":"1"}}`),
			LLMOutput:        `\boxed{1}`,
			Score:            1,
			AnswerScore:      1,
			FormatScore:      &formatScore,
			LatencyMs:        3,
			CreationTime:     time.Now().UTC(),
		},
		{
			Id:               uuid.New(),
			VerificationType: "code_verifiable",
			Error:            "verifier initialization failed",
			CreationTime:     time.Now().UTC(),
		},
	}

	ctx := context.Background()
	for _, e := range events {
		require.NoError(t, queue.PublishRewardEvent(ctx, e))
	}
	queue.Close()

	recorder.Run(ctx)

	first, err := database.GetRewardRecord(ctx, db, events[0].Id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.Score)
	assert.True(t, first.FormatScore.Valid)
	assert.False(t, first.Error.Valid)
	assert.JSONEq(t, string(events[0].VerificationInfo), string(first.VerificationInfo))

	second, err := database.GetRewardRecord(ctx, db, events[1].Id)
	require.NoError(t, err)
	assert.True(t, second.Error.Valid)
	assert.Equal(t, "verifier initialization failed", second.Error.String)
	assert.False(t, second.FormatScore.Valid)

	assert.ErrorIs(t, queue.PublishRewardEvent(ctx, events[0]), ErrQueueClosed)
}

func TestRecorderRejectsBadTasks(t *testing.T) {
	recorder := NewRecorder(createDB(t), NewInMemoryQueue())
	ctx := context.Background()

	badPayload := &fakeTask{queue: RewardEventQueue, payload: []byte("{not json")}
	recorder.handle(ctx, badPayload)
	assert.True(t, badPayload.reject)
	assert.False(t, badPayload.acked)

	wrongQueue := &fakeTask{queue: "other_queue", payload: []byte("{}")}
	recorder.handle(ctx, wrongQueue)
	assert.True(t, wrongQueue.reject)

	body, err := json.Marshal(RewardEventPayload{Id: uuid.New(), VerificationType: "swe_verifiable", CreationTime: time.Now().UTC()})
	require.NoError(t, err)
	good := &fakeTask{queue: RewardEventQueue, payload: body}
	recorder.handle(ctx, good)
	assert.True(t, good.acked)
}

func TestRecorderNacksOnSaveFailure(t *testing.T) {
	db := createDB(t)
	recorder := NewRecorder(db, NewInMemoryQueue())
	ctx := context.Background()

	id := uuid.New()
	body, err := json.Marshal(RewardEventPayload{Id: id, VerificationType: "swe_verifiable", CreationTime: time.Now().UTC()})
	require.NoError(t, err)

	first := &fakeTask{queue: RewardEventQueue, payload: body}
	recorder.handle(ctx, first)
	assert.True(t, first.acked)

	duplicate := &fakeTask{queue: RewardEventQueue, payload: body}
	recorder.handle(ctx, duplicate)
	assert.True(t, duplicate.nacked)
	assert.False(t, duplicate.acked)
}

func TestRecorderStopsOnContext(t *testing.T) {
	recorder := NewRecorder(createDB(t), NewInMemoryQueue())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop after context cancellation")
	}
}

func TestRecorderDrainsQueueAfterClose(t *testing.T) {
	db := createDB(t)
	queue := NewInMemoryQueue()
	recorder := NewRecorder(db, queue)

	done := make(chan struct{})
	go func() {
		recorder.Run(context.Background())
		close(done)
	}()

	ctx := context.Background()
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, queue.PublishRewardEvent(ctx, RewardEventPayload{
			Id:               ids[i],
			VerificationType: "math_verifiable",
			CreationTime:     time.Now().UTC(),
		}))
	}
	queue.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop after the queue was closed")
	}

	for _, id := range ids {
		_, err := database.GetRewardRecord(ctx, db, id)
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, recorder.Pending())
}

func TestRecorderLogsUnrecordedEvents(t *testing.T) {
	logs := new(bytes.Buffer)
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	queue := NewInMemoryQueue()
	recorder := NewRecorder(createDB(t), queue)

	for i := 0; i < 2; i++ {
		require.NoError(t, queue.PublishRewardEvent(context.Background(), RewardEventPayload{Id: uuid.New()}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Run(ctx)

	assert.Equal(t, 2, recorder.Pending())
	assert.Contains(t, logs.String(), "unrecorded=2")
}
