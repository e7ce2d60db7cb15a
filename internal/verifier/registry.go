package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"rl-verifier/internal/utils"
)

const (
	answerWeight = 0.9
	formatWeight = 0.1
)

type Settings struct {
	FusionSandboxURL  string
	Judge             JudgeConfig
	UseFormatVerifier bool
}

// Factory builds the verifier for one type. It is called on first use of the type.
type Factory func(ctx context.Context) (Verifier, error)

type Registry struct {
	factories map[string]Factory
	format    Verifier
	useFormat bool

	mu        sync.RWMutex
	verifiers map[string]Verifier
	initLocks *utils.MutexMap
}

// NewRegistry returns a registry wired with the built in verifier types.
func NewRegistry(settings Settings) *Registry {
	r := NewEmptyRegistry(settings.UseFormatVerifier)

	r.Register(MathVerifiable, func(ctx context.Context) (Verifier, error) {
		return NewMathVerifier(), nil
	})
	r.Register(CodeVerifiable, func(ctx context.Context) (Verifier, error) {
		return NewCodeVerifier(ctx, CodeVerifierConfig{BaseURL: settings.FusionSandboxURL})
	})
	r.Register(SWEVerifiable, func(ctx context.Context) (Verifier, error) {
		return NewSWEVerifier(), nil
	})
	r.Register(LLMJudgeType, func(ctx context.Context) (Verifier, error) {
		completer, err := NewOpenAICompleter(ctx, settings.Judge)
		if err != nil {
			return nil, err
		}
		return NewLLMJudge(completer), nil
	})

	return r
}

func NewEmptyRegistry(useFormat bool) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		format:    NewFormatVerifier(),
		useFormat: useFormat,
		verifiers: make(map[string]Verifier),
		initLocks: utils.NewMutexMap(64),
	}
}

func (r *Registry) Register(verificationType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[verificationType] = factory
	delete(r.verifiers, verificationType)
}

func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) cached(verificationType string) (Verifier, Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verifiers[verificationType], r.factories[verificationType], r.factories[verificationType] != nil
}

// Get returns the verifier for the type, creating it if needed. Failed
// initializations are retried on the next call.
func (r *Registry) Get(ctx context.Context, verificationType string) (Verifier, error) {
	v, factory, ok := r.cached(verificationType)
	if !ok {
		return nil, fmt.Errorf("%w: verification type '%s' is not supported", ErrUnsupportedType, verificationType)
	}
	if v != nil {
		return v, nil
	}

	err := r.initLocks.WithLock(verificationType, func() error {
		if v, _, _ = r.cached(verificationType); v != nil {
			return nil
		}

		slog.Info("initializing verifier", "type", verificationType)
		created, err := factory(ctx)
		if err != nil {
			slog.Error("error initializing verifier", "type", verificationType, "error", err)
			return err
		}

		r.mu.Lock()
		r.verifiers[verificationType] = created
		r.mu.Unlock()
		v = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

type Result struct {
	Score       float64
	AnswerScore float64
	FormatScore *float64
}

// Score verifies the assistant part of llmOutput, optionally mixing in the
// format score.
func (r *Registry) Score(ctx context.Context, llmOutput string, info VerificationInfo) (Result, error) {
	v, err := r.Get(ctx, info.Type)
	if err != nil {
		return Result{}, err
	}

	response := AssistantResponse(llmOutput)

	answerScore, err := v.Verify(ctx, response, info)
	if err != nil {
		return Result{}, fmt.Errorf("error verifying %s output: %w", info.Type, err)
	}

	if !r.useFormat {
		return Result{Score: answerScore, AnswerScore: answerScore}, nil
	}

	formatScore, err := r.format.Verify(ctx, response, info)
	if err != nil {
		return Result{}, fmt.Errorf("error verifying output format: %w", err)
	}

	return Result{
		Score:       answerWeight*answerScore + formatWeight*formatScore,
		AnswerScore: answerScore,
		FormatScore: &formatScore,
	}, nil
}
