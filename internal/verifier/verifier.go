package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidVerificationInfo = errors.New("invalid verification info")
	ErrUnsupportedType         = errors.New("unsupported verification type")
	ErrInitialization          = errors.New("verifier initialization failed")
)

const (
	MathVerifiable = "math_verifiable"
	CodeVerifiable = "code_verifiable"
	SWEVerifiable  = "swe_verifiable"
	LLMJudgeType   = "llm_judge"
)

// Verifier scores a model output against the ground truth carried by the
// verification info. Scores are in [0, 1].
type Verifier interface {
	Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error)
}

type VerificationInfo struct {
	Type     string          `json:"type"`
	Answer   json.RawMessage `json:"answer"`
	Language string          `json:"language,omitempty"`
}

// ParseVerificationInfo decodes the JSON document sent alongside an output. Both
// "type" and "answer" must be present.
func ParseVerificationInfo(raw string) (VerificationInfo, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return VerificationInfo{}, fmt.Errorf("%w: the verification info must be in parsable JSON format", ErrInvalidVerificationInfo)
	}

	if _, ok := fields["answer"]; !ok {
		return VerificationInfo{}, fmt.Errorf("%w: the verification info must contain 'answer' and 'type' fields, received: %s", ErrInvalidVerificationInfo, raw)
	}
	if _, ok := fields["type"]; !ok {
		return VerificationInfo{}, fmt.Errorf("%w: the verification info must contain 'answer' and 'type' fields, received: %s", ErrInvalidVerificationInfo, raw)
	}

	var info VerificationInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return VerificationInfo{}, fmt.Errorf("%w: %v", ErrInvalidVerificationInfo, err)
	}

	return info, nil
}

func (v VerificationInfo) DecodeAnswer(dst any) error {
	if len(v.Answer) == 0 || bytes.Equal(v.Answer, []byte("null")) {
		return fmt.Errorf("%w: answer is empty", ErrInvalidVerificationInfo)
	}
	if err := json.Unmarshal(v.Answer, dst); err != nil {
		return fmt.Errorf("%w: malformed answer for type %s: %v", ErrInvalidVerificationInfo, v.Type, err)
	}
	return nil
}

// looseString accepts a JSON string, number or bool. Reference answers are
// frequently written as bare numbers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = looseString(strconv.FormatBool(b))
		return nil
	}

	return fmt.Errorf("expected string or number, got %s", string(data))
}

type valueAnswer struct {
	Value *looseString `json:"value"`
}

func (a valueAnswer) value(verificationType string) (string, error) {
	if a.Value == nil {
		return "", fmt.Errorf("%w: %s answer must contain a 'value' field", ErrInvalidVerificationInfo, verificationType)
	}
	return string(*a.Value), nil
}
