package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RewardEventQueue = "reward_event_queue"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// RewardEventPayload describes one completed (or failed) reward computation.
type RewardEventPayload struct {
	Id               uuid.UUID
	VerificationType string
	VerificationInfo json.RawMessage
	LLMOutput        string

	Score       float64
	AnswerScore float64
	FormatScore *float64

	LatencyMs int64
	Error     string

	CreationTime time.Time
}

type Publisher interface {
	PublishRewardEvent(ctx context.Context, payload RewardEventPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
