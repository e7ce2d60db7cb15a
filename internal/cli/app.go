package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"rl-verifier/internal/config"
	"rl-verifier/internal/logging"

	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	outputFormat           = formatJSON
	output       io.Writer = os.Stdout

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	envFileFlag = &urfave.StringFlag{
		Name:  "env",
		Usage: "Path to a .env file to load before running",
	}

	urlFlag = &urfave.StringSliceFlag{
		Name:    "url",
		Usage:   "Reward server url, repeat for several servers",
		EnvVars: []string{"RL_VERIFIER_URL"},
		Value:   urfave.NewStringSlice("http://localhost:8000"),
	}

	timeoutFlag = &urfave.DurationFlag{
		Name:  "timeout",
		Usage: "Per request timeout",
		Value: 30 * time.Second,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.Setup("info", false)

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 "rlverify",
		Version:              fmt.Sprintf("%s (%s)", version, commit),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "CLI for the RL reward verification service",
		Flags: []urfave.Flag{
			debugFlag,
			formatFlag,
			envFileFlag,
		},
		Commands: []*urfave.Command{
			pingCmd,
			verifyCmd,
			scoreCmd,
		},
		Before: func(c *urfave.Context) error {
			if c.Bool(debugFlag.Name) {
				logging.Setup("debug", false)
			}

			switch f := c.String(formatFlag.Name); f {
			case formatYAML, "yml":
				outputFormat = formatYAML
			case formatJSON:
				outputFormat = formatJSON
			default:
				return fmt.Errorf("unsupported output format %q", f)
			}

			if path := c.String(envFileFlag.Name); path != "" {
				if err := config.LoadEnvFile(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func encode(v any) error {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(output).Encode(v)
	}
	e := json.NewEncoder(output)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
