// Package main provides the lwekem-cli command line interface for LWE-KEM
// operations.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/core"
)

const (
	version = "0.3.0"
	appName = "lwekem-cli"

	levelFlag    = "level"
	configFlag   = "config"
	logLevelFlag = "loglevel"
	formatFlag   = "format"
	outputFlag   = "output"
	adFlag       = "ad"

	errorExitCode = 1
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errorExitCode)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    appName,
		Usage:   "LWE key encapsulation with implicit rejection",
		Version: fmt.Sprintf("%s (library %s)", version, lwekem.Version),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    levelFlag,
				Aliases: []string{"l"},
				Value:   string(lwekem.LWE64),
				Usage:   "built-in parameter set: LWE-64 or LWE-128 (64 and 128 are accepted)",
				EnvVars: []string{"LWEKEM_LEVEL"},
			},
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "YAML parameter file; overrides --level",
				EnvVars: []string{"LWEKEM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    logLevelFlag,
				Value:   "info",
				Usage:   "application logging level {debug, info, warn, error, fatal}",
				EnvVars: []string{"LWEKEM_LOGLEVEL"},
			},
			&cli.StringFlag{
				Name:    formatFlag,
				Aliases: []string{"f"},
				Value:   string(FormatBase64),
				Usage:   "binary field encoding in output files: hex or base64",
			},
		},
		Commands: []*cli.Command{
			keygenCommand(),
			encapsulateCommand(),
			decapsulateCommand(),
			encryptCommand(),
			decryptCommand(),
			benchmarkCommand(),
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "%s version %s\n", appName, version)
					fmt.Fprintf(c.App.Writer, "lwe-kem library version %s\n", lwekem.Version)
					return nil
				},
			},
		},
	}
}

// withErrorHandler turns errors returned by an action into exit errors.
func withErrorHandler(action cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := action(c); err != nil {
			if _, ok := err.(cli.ExitCoder); ok {
				return err
			}
			return cli.Exit(err.Error(), errorExitCode)
		}
		return nil
	}
}

// newLogger builds the console logger for a command. Logs go to the app's
// error writer so that command output stays machine readable.
func newLogger(c *cli.Context) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.String(logLevelFlag))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: c.App.ErrWriter, NoColor: true, TimeFormat: time.RFC3339}
	log := zerolog.New(writer).Level(level).With().Timestamp().Str("cmd", c.Command.Name).Logger()
	if err != nil {
		log.Warn().Msgf("Failed to parse log level %q, using %q instead", c.String(logLevelFlag), level)
	}
	return log
}

// parseLevel maps a --level value to a built-in parameter set.
func parseLevel(s string) (lwekem.ParameterSet, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "64", "LWE-64", "LWE64":
		return lwekem.LWE64, nil
	case "128", "LWE-128", "LWE128":
		return lwekem.LWE128, nil
	default:
		return "", errors.Errorf("unknown level %q", s)
	}
}

// resolveParams returns the parameters selected by --config or --level.
func resolveParams(c *cli.Context) (lwekem.LWEParams, error) {
	if path := c.String(configFlag); path != "" {
		params, err := core.LoadParamsFile(path)
		if err != nil {
			return params, errors.Wrapf(err, "cannot load parameters from %s", path)
		}
		return params, nil
	}
	set, err := parseLevel(c.String(levelFlag))
	if err != nil {
		return lwekem.LWEParams{}, err
	}
	return core.GetParams(set)
}

func outputFormat(c *cli.Context) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(c.String(formatFlag))); f {
	case FormatHex, FormatBase64:
		return f, nil
	default:
		return "", errors.Errorf("unknown format %q", c.String(formatFlag))
	}
}
