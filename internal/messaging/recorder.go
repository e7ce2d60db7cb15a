package messaging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"rl-verifier/internal/database"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists reward events delivered by a Reciever.
type Recorder struct {
	db       *gorm.DB
	reciever Reciever
}

func NewRecorder(db *gorm.DB, reciever Reciever) *Recorder {
	return &Recorder{db: db, reciever: reciever}
}

// Run consumes tasks until the reciever is closed or ctx is done. Closing an
// InMemoryQueue lets Run record everything already buffered before returning.
func (r *Recorder) Run(ctx context.Context) {
	slog.Info("reward recorder started")
	for {
		if ctx.Err() != nil {
			r.stopped(ctx.Err())
			return
		}

		select {
		case <-ctx.Done():
			r.stopped(ctx.Err())
			return
		case task, ok := <-r.reciever.Tasks():
			if !ok {
				slog.Info("reward recorder stopped", "reason", "task channel closed")
				return
			}
			r.handle(ctx, task)
		}
	}
}

// Pending is the number of tasks delivered to the reciever but not yet recorded.
func (r *Recorder) Pending() int {
	return len(r.reciever.Tasks())
}

func (r *Recorder) stopped(reason error) {
	if pending := r.Pending(); pending > 0 {
		slog.Warn("reward recorder stopped with events left unrecorded", "reason", reason, "unrecorded", pending)
		return
	}
	slog.Info("reward recorder stopped", "reason", reason)
}

func (r *Recorder) handle(ctx context.Context, task Task) {
	if task.Type() != RewardEventQueue {
		slog.Error("recorder received unexpected task type", "type", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	var payload RewardEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error parsing reward event payload", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := database.SaveRewardRecord(ctx, r.db, RecordFromEvent(payload)); err != nil {
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "record_id", payload.Id, "error", err)
	}
}

func RecordFromEvent(payload RewardEventPayload) *database.RewardRecord {
	record := &database.RewardRecord{
		Id:               payload.Id,
		VerificationType: payload.VerificationType,
		LLMOutput:        payload.LLMOutput,
		Score:            payload.Score,
		AnswerScore:      payload.AnswerScore,
		LatencyMs:        payload.LatencyMs,
		CreationTime:     payload.CreationTime,
	}
	if json.Valid(payload.VerificationInfo) && string(payload.VerificationInfo) != "null" {
		record.VerificationInfo = datatypes.JSON(payload.VerificationInfo)
	}
	if payload.FormatScore != nil {
		record.FormatScore = sql.NullFloat64{Float64: *payload.FormatScore, Valid: true}
	}
	if payload.Error != "" {
		record.Error = sql.NullString{String: payload.Error, Valid: true}
	}
	return record
}
