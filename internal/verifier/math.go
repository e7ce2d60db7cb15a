package verifier

import (
	"context"
)

type MathVerifier struct{}

func NewMathVerifier() *MathVerifier {
	return &MathVerifier{}
}

func (v *MathVerifier) Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error) {
	var answer valueAnswer
	if err := info.DecodeAnswer(&answer); err != nil {
		return 0, err
	}
	groundTruth, err := answer.value(info.Type)
	if err != nil {
		return 0, err
	}

	prediction, ok := LastBoxed(llmOutput)
	if !ok {
		return 0, nil
	}

	if MathEqual(prediction, "\\boxed{"+groundTruth+"}") {
		return 1, nil
	}
	return 0, nil
}
