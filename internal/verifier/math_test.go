package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMathEqual(t *testing.T) {
	tests := []struct {
		prediction  string
		groundTruth string
		want        bool
	}{
		{`\boxed{42}`, `42`, true},
		{`\boxed{41}`, `42`, false},
		{`\boxed{\frac{1}{2}}`, `0.5`, true},
		{`\boxed{\dfrac{3}{4}}`, `\frac34`, true},
		{`\boxed{-\frac{1}{2}}`, `-0.5`, true},
		{`\boxed{2\sqrt{2}}`, `\sqrt{8}`, true},
		{`\boxed{\frac{\pi}{2}}`, `1.5707963`, true},
		{`\boxed{2^{10}}`, `1024`, true},
		{`\boxed{1,000}`, `1000`, true},
		{`\boxed{90^\circ}`, `90`, true},
		{`\boxed{50\%}`, `50`, true},
		{`\boxed{(1, 2)}`, `(1,2)`, true},
		{`\boxed{(1,2)}`, `(2,1)`, false},
		{`\boxed{(1,2)}`, `[1,2]`, false},
		{`\boxed{[1, 2]}`, `[1,2]`, true},
		{`\boxed{[1,2)}`, `[1,2]`, false},
		{`\boxed{\sqrt2}`, `\sqrt{2}`, true},
		{`\boxed{3\sqrt 3}`, `\sqrt{27}`, true},
		{`\boxed{\text{Yes}}`, `yes`, true},
		{`\boxed{x+1}`, `x+2`, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MathEqual(tt.prediction, tt.groundTruth), "%s vs %s", tt.prediction, tt.groundTruth)
	}
}

func TestMathVerifier(t *testing.T) {
	v := NewMathVerifier()
	ctx := context.Background()

	info, err := ParseVerificationInfo(`{"type": "math_verifiable", "answer": {"value": "\\frac{1}{3}"}}`)
	require.NoError(t, err)

	score, err := v.Verify(ctx, `So the result is \boxed{\frac{1}{3}}.`, info)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	score, err = v.Verify(ctx, `So the result is \boxed{0.25}.`, info)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	interval, err := ParseVerificationInfo(`{"type": "math_verifiable", "answer": {"value": "[1,2]"}}`)
	require.NoError(t, err)
	score, err = v.Verify(ctx, `The interval is \boxed{(1,2)}.`, interval)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	score, err = v.Verify(ctx, `So the result is 1/3.`, info)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	numeric, err := ParseVerificationInfo(`{"type": "math_verifiable", "answer": {"value": 7}}`)
	require.NoError(t, err)
	score, err = v.Verify(ctx, `\boxed{7}`, numeric)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	missing, err := ParseVerificationInfo(`{"type": "math_verifiable", "answer": {}}`)
	require.NoError(t, err)
	_, err = v.Verify(ctx, `\boxed{7}`, missing)
	assert.ErrorIs(t, err, ErrInvalidVerificationInfo)
}

func TestEvalMath(t *testing.T) {
	v, err := evalMath("2*(3+4)-10/5")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, v, 1e-9)

	v, err = evalMath("2^-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)

	_, err = evalMath("1/0")
	assert.Error(t, err)

	_, err = evalMath("foo(2)")
	assert.Error(t, err)
}
