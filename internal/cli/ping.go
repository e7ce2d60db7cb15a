package cli

import (
	"fmt"

	"rl-verifier/internal/client"

	urfave "github.com/urfave/cli/v2"
)

type pingResult struct {
	URLs   []string `json:"urls" yaml:"urls"`
	Status string   `json:"status" yaml:"status"`
}

var pingCmd = &urfave.Command{
	Name:      "ping",
	Usage:     "Check that every reward server is reachable",
	UsageText: `rlverify ping --url http://verifier-0:8000 --url http://verifier-1:8000`,
	Action:    cmdPing,
	Flags: []urfave.Flag{
		urlFlag,
	},
}

func cmdPing(c *urfave.Context) error {
	cl, err := client.New(c.Context, c.StringSlice(urlFlag.Name), client.Options{})
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return encode(pingResult{URLs: cl.BaseURLs(), Status: "ok"})
}
