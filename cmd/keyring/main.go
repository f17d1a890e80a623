// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fvoncina/dataprotection-gcs/internal/command"
	"github.com/fvoncina/dataprotection-gcs/internal/didyoumean"
	"github.com/fvoncina/dataprotection-gcs/internal/logging"
	"github.com/fvoncina/dataprotection-gcs/internal/tracing"
	"github.com/fvoncina/dataprotection-gcs/version"
)

const (
	// EnvCLI is the environment variable name to set additional CLI args.
	EnvCLI = "KEYRING_CLI_ARGS"

	// The parent process will create a file to collect crash logs
	envTmpLogPath = "KEYRING_TEMP_LOG_PATH"

	// EnvMetricsFile names a file that receives the process metrics in the
	// Prometheus text format when the command finishes.
	EnvMetricsFile = "KEYRING_METRICS_FILE"
)

func init() {
	Ui = command.NewBasicUI()
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	defer logging.PanicHandler()

	ctx, err := tracing.OpenTelemetryInit(context.Background())
	if err != nil {
		Ui.Error(fmt.Sprintf("Could not initialize telemetry: %s", err))
		Ui.Error(fmt.Sprintf("Unset environment variable %s if you don't intend to collect telemetry from keyring.", tracing.OTELExporterEnvVar))
		return 1
	}
	defer tracing.ForceFlush(5 * time.Second)

	// At minimum, we emit a span covering the entire command execution.
	ctx, span := tracing.Tracer().Start(ctx, "keyring")
	defer span.End()

	tmpLogPath := os.Getenv(envTmpLogPath)
	if tmpLogPath != "" {
		f, err := os.OpenFile(tmpLogPath, os.O_RDWR|os.O_APPEND, 0666)
		if err == nil {
			defer f.Close()

			log.Printf("[DEBUG] Adding temp file log sink: %s", f.Name())
			logging.RegisterSink(f)
		} else {
			log.Printf("[ERROR] Could not open temp log file: %v", err)
		}
	}

	log.Printf("[INFO] keyring version: %s %s (log level %s)", Version, VersionPrerelease, logging.CurrentLogLevel())
	if logging.IsDebugOrHigher() {
		for _, depMod := range version.InterestingDependencies() {
			log.Printf("[DEBUG] using %s %s", depMod.Path, depMod.Version)
		}
	}
	log.Printf("[INFO] Go runtime version: %s", runtime.Version())
	log.Printf("[INFO] CLI args: %#v", os.Args)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if path := os.Getenv(EnvMetricsFile); path != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(path, registry); err != nil {
				log.Printf("[ERROR] Could not write metrics to %s: %s", path, err)
			}
		}()
	}

	// In tests, Commands may already be set to provide mock commands
	if commands == nil {
		initCommands(ctx, registry)
	}

	binName := filepath.Base(os.Args[0])
	args := os.Args[1:]

	// Build the CLI so far, we do this so we can query the subcommand.
	cliRunner := &cli.CLI{
		Args:       args,
		Commands:   commands,
		HelpFunc:   helpFunc,
		HelpWriter: os.Stdout,
	}

	// Prefix the args with any args from the EnvCLI
	args, err = mergeEnvArgs(EnvCLI, cliRunner.Subcommand(), args)
	if err != nil {
		Ui.Error(err.Error())
		return 1
	}

	// Prefix the args with any args from the EnvCLI targeting this command
	suffix := strings.ReplaceAll(cliRunner.Subcommand(), "-", "_")
	args, err = mergeEnvArgs(
		fmt.Sprintf("%s_%s", EnvCLI, strings.ToUpper(suffix)), cliRunner.Subcommand(), args)
	if err != nil {
		Ui.Error(err.Error())
		return 1
	}

	// We shortcut "--version" and "-v" to just show the version
	for _, arg := range args {
		if arg == "-v" || arg == "-version" || arg == "--version" {
			newArgs := make([]string, len(args)+1)
			newArgs[0] = "version"
			copy(newArgs[1:], args)
			args = newArgs
			break
		}
	}

	// Rebuild the CLI with any modified args.
	log.Printf("[INFO] CLI command args: %#v", args)
	cliRunner = &cli.CLI{
		Name:       binName,
		Args:       args,
		Commands:   commands,
		HelpFunc:   helpFunc,
		HelpWriter: os.Stdout,

		Autocomplete:          true,
		AutocompleteInstall:   "install-autocomplete",
		AutocompleteUninstall: "uninstall-autocomplete",
	}

	// Shell auto-complete passes the binary name as the first argument,
	// which is never a known subcommand.
	autoComplete := os.Getenv("COMP_LINE") != ""

	if cmd := cliRunner.Subcommand(); cmd != "" && !autoComplete {
		if _, exists := commands[cmd]; !exists {
			fmt.Fprint(os.Stderr, unknownCommandMessage(cmd, commands))
			return 1
		}
	}

	exitCode, err := cliRunner.Run()
	if err != nil {
		Ui.Error(fmt.Sprintf("Error executing CLI: %s", err.Error()))
		return 1
	}

	return exitCode
}

// unknownCommandMessage explains that cmd does not exist, suggesting the
// closest known command when cmd looks like a typo.
func unknownCommandMessage(cmd string, commands map[string]cli.CommandFactory) string {
	suggestions := make([]string, 0, len(commands))
	for name := range commands {
		suggestions = append(suggestions, name)
	}
	suggestion := didyoumean.NameSuggestion(cmd, suggestions)
	if suggestion != "" {
		suggestion = fmt.Sprintf(" Did you mean %q?", suggestion)
	}
	return fmt.Sprintf("keyring has no command named %q.%s\n\nTo see all of keyring's commands, run:\n  keyring -help\n\n", cmd, suggestion)
}

func mergeEnvArgs(envName string, cmd string, args []string) ([]string, error) {
	v := os.Getenv(envName)
	if v == "" {
		return args, nil
	}

	log.Printf("[INFO] %s value: %q", envName, v)
	extra, err := shellwords.Parse(v)
	if err != nil {
		return nil, fmt.Errorf(
			"Error parsing extra CLI args from %s: %s",
			envName, err)
	}

	// Find the index to place the flags. We put them exactly
	// after the first non-flag arg.
	idx := -1
	for i, v := range args {
		if v == cmd {
			idx = i
			break
		}
	}

	// idx points to the exact arg that isn't a flag. We increment
	// by one so that all the copying below expects idx to be the
	// insertion point.
	idx++

	// Copy the args
	newArgs := make([]string, len(args)+len(extra))
	copy(newArgs, args[:idx])
	copy(newArgs[idx:], extra)
	copy(newArgs[len(extra)+idx:], args[idx:])
	return newArgs, nil
}
