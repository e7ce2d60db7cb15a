package cli

import (
	"fmt"
	"io"
	"os"

	"rl-verifier/internal/client"

	urfave "github.com/urfave/cli/v2"
)

var (
	llmOutputFlag = &urfave.StringFlag{
		Name:  "output",
		Usage: "LLM output to score, or - to read it from stdin",
	}

	llmOutputFileFlag = &urfave.PathFlag{
		Name:  "output-file",
		Usage: "File holding the LLM output to score",
	}

	infoFlag = &urfave.StringFlag{
		Name:     "info",
		Usage:    `Verification info as JSON, e.g. {"type": "math_verifiable", "answer": {"value": "42"}}`,
		Required: true,
	}

	verifyCmd = &urfave.Command{
		Name:  "verify",
		Usage: "Score a single LLM output",
		UsageText: `rlverify verify --output '\boxed{42}' --info '{"type": "math_verifiable", "answer": {"value": "42"}}'
   rlverify verify --output-file answer.txt --info '{"type": "llm_judge", "answer": {"value": "Paris"}}'`,
		Action: cmdVerify,
		Flags: []urfave.Flag{
			urlFlag,
			timeoutFlag,
			llmOutputFlag,
			llmOutputFileFlag,
			infoFlag,
		},
	}
)

type verifyResult struct {
	Score float64 `json:"score" yaml:"score"`
}

func readLLMOutput(c *urfave.Context) (string, error) {
	if path := c.Path(llmOutputFileFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("error reading output file: %w", err)
		}
		return string(data), nil
	}

	out := c.String(llmOutputFlag.Name)
	if out == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", fmt.Errorf("error reading output from stdin: %w", err)
		}
		return string(data), nil
	}
	if out == "" {
		return "", fmt.Errorf("one of --%s or --%s is required", llmOutputFlag.Name, llmOutputFileFlag.Name)
	}
	return out, nil
}

func cmdVerify(c *urfave.Context) error {
	llmOutput, err := readLLMOutput(c)
	if err != nil {
		return err
	}

	cl, err := client.New(c.Context, c.StringSlice(urlFlag.Name), client.Options{Timeout: c.Duration(timeoutFlag.Name)})
	if err != nil {
		return err
	}

	score, err := cl.Verify(c.Context, llmOutput, c.String(infoFlag.Name))
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	return encode(verifyResult{Score: score})
}
