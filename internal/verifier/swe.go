package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type SWEVerifier struct{}

func NewSWEVerifier() *SWEVerifier {
	return &SWEVerifier{}
}

type sweAnswer struct {
	Input       *string `json:"input"`
	GroundTruth *string `json:"ground_truth"`
}

func (v *SWEVerifier) Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error) {
	var answer sweAnswer
	if err := info.DecodeAnswer(&answer); err != nil {
		return 0, err
	}
	if answer.Input == nil || answer.GroundTruth == nil {
		return 0, fmt.Errorf("%w: swe answer must contain 'input' and 'ground_truth' fields", ErrInvalidVerificationInfo)
	}

	prediction, ok := LastCodeBlock(llmOutput)
	if !ok || prediction == "" {
		return 0, nil
	}

	input := strings.TrimSpace(*answer.Input)

	truthDiff, err := unifiedDiff(input, strings.TrimSpace(*answer.GroundTruth))
	if err != nil {
		return 0, err
	}
	predictedDiff, err := unifiedDiff(input, prediction)
	if err != nil {
		return 0, err
	}

	if truthDiff == "" || predictedDiff == "" {
		return 0, nil
	}

	return Similarity(truthDiff, predictedDiff), nil
}

// unifiedDiff returns the diff from a to b with the file headers removed.
func unifiedDiff(a, b string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        diffLines(a),
		B:        diffLines(b),
		FromFile: "old",
		ToFile:   "new",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("error computing diff: %w", err)
	}
	if diff == "" {
		return "", nil
	}

	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	if len(lines) <= 2 {
		return "", nil
	}
	return strings.Join(lines[2:], "\n"), nil
}

// diffLines splits s into lines, each terminated by a newline.
func diffLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r") + "\n"
	}
	return lines
}

// Similarity is the character level matching ratio of a and b, 2*M/T.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	matcher := difflib.NewMatcherWithJunk(strings.Split(a, ""), strings.Split(b, ""), false, nil)
	return matcher.Ratio()
}
