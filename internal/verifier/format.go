package verifier

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

var thinkingBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// FormatVerifier checks the shape of an output independent of its answer.
type FormatVerifier struct{}

func NewFormatVerifier() *FormatVerifier {
	return &FormatVerifier{}
}

func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func (v *FormatVerifier) Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error) {
	if containsCJK(llmOutput) {
		return 0, nil
	}
	if !thinkingBlockPattern.MatchString(llmOutput) {
		return 0, nil
	}
	if !strings.Contains(llmOutput, eosToken) {
		return 0, nil
	}

	switch info.Type {
	case MathVerifiable:
		if _, ok := LastBoxed(llmOutput); !ok {
			return 0, nil
		}
	case CodeVerifiable:
		if _, ok := CodeBlock(llmOutput, formatLanguage(info)); !ok {
			return 0, nil
		}
	}

	return 1, nil
}

func formatLanguage(info VerificationInfo) string {
	if info.Language != "" {
		return info.Language
	}
	var answer struct {
		Language string `json:"language"`
	}
	if len(info.Answer) > 0 && json.Unmarshal(info.Answer, &answer) == nil && answer.Language != "" {
		return answer.Language
	}
	return defaultCodeLanguage
}
