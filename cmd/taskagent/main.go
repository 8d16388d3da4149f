// Taskagent runs a single autonomous agent against a natural-language
// objective.
//
// The agent prompts an LLM for one action at a time, executes it with a
// built-in tool set (shell, files, HTTP, git, packages, tests), and feeds the
// result back until the model declares the objective finished or the step
// budget runs out. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	taskagent run <objective>    Run the agent toward an objective
//	taskagent tools              List the available tools
//	taskagent version            Print version information
//	taskagent -o json run ...    Print the run summary as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/martinemde/taskagent/agent"
	"github.com/martinemde/taskagent/config"
	"github.com/martinemde/taskagent/llmclient"
)

var version = "dev"

// main constructs the OS-level environment (context, stdio, argv) and
// delegates to [run], keeping os.Exit and os.Args out of the application
// logic so the full lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to call
// run concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var memoryFile string
	var maxSteps int
	var logLevel string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-memory" && i+1 < len(args):
			memoryFile = args[i+1]
			i++
		case args[i] == "-max-steps" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid -max-steps value %q", args[i+1])
			}
			maxSteps = n
			i++
		case args[i] == "-log-level" && i+1 < len(args):
			logLevel = args[i+1]
			i++
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag %q (see -help)", args[i])
			}
		}
	}

	switch command {
	case "version":
		if outputFmt == "json" {
			return json.NewEncoder(stdout).Encode(map[string]string{"version": version})
		}
		fmt.Fprintf(stdout, "taskagent %s\n", version)
		return nil
	case "tools", "run":
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command %q (see -help)", command)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if memoryFile != "" {
		cfg.Agent.MemoryFile = memoryFile
	}
	if maxSteps > 0 {
		cfg.Agent.MaxSteps = maxSteps
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	registry := agent.NewRegistry(logger)
	env := agent.NewLocalEnvironment(cfg.Tools.WorkingDir)
	err = agent.RegisterCoreTools(registry, env, agent.CoreToolOptions{
		CommandTimeout:        time.Duration(cfg.Tools.CommandTimeoutSec) * time.Second,
		HTTPTimeout:           time.Duration(cfg.Tools.HTTPTimeoutSec) * time.Second,
		DeniedCommandPatterns: cfg.Tools.DeniedPatterns,
	})
	if err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	if command == "tools" {
		return printTools(stdout, registry)
	}

	objective := strings.TrimSpace(strings.Join(cmdArgs, " "))
	if objective == "" {
		return errors.New("run requires an objective, e.g.: taskagent run \"summarize the repo\"")
	}

	return runObjective(ctx, stdout, logger, cfg, registry, objective, outputFmt)
}

func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		// No config file is fine; defaults plus environment API keys work.
		return config.Default(), nil
	}
	return config.Load(path)
}

func runObjective(ctx context.Context, stdout io.Writer, logger *slog.Logger, cfg *config.Config, registry *agent.Registry, objective, outputFmt string) error {
	var modelOpts []llmclient.GollmOption
	if cfg.Model.Name != "" {
		modelOpts = append(modelOpts, llmclient.WithModel(cfg.Model.Name))
	}
	if cfg.Model.MaxTokens > 0 {
		modelOpts = append(modelOpts, llmclient.WithMaxTokens(cfg.Model.MaxTokens))
	}
	if cfg.Model.Temperature > 0 {
		modelOpts = append(modelOpts, llmclient.WithTemperature(cfg.Model.Temperature))
	}
	adapter, err := llmclient.NewGollmAdapter(cfg.Model.Provider, cfg.Model.APIKey, modelOpts...)
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	policy := llmclient.DefaultRetryPolicy()
	if cfg.Model.MaxRetries > 0 {
		policy.MaxRetries = cfg.Model.MaxRetries
	}
	client := llmclient.NewClient(adapter,
		llmclient.WithRetryPolicy(policy),
		llmclient.WithLogger(logger),
	)
	defer client.Close()

	store := agent.NewStore(cfg.Agent.MemoryCapacity)
	if cfg.Agent.MemoryFile != "" {
		if err := store.LoadFile(cfg.Agent.MemoryFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load memory: %w", err)
			}
			logger.Info("memory file not found, starting fresh", "path", cfg.Agent.MemoryFile)
		}
	}

	loop := agent.NewLoop(objective, client, registry, store, &agent.Config{
		MaxSteps:     cfg.Agent.MaxSteps,
		MemoryWindow: cfg.Agent.MemoryWindow,
		ResultBudget: cfg.Agent.ResultBudget,
		StepPause:    time.Duration(cfg.Agent.StepPauseMs) * time.Millisecond,
		Context:      cfg.Context,
		Logger:       logger,
	})

	// Stream progress to the terminal while the run is in flight.
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range loop.Events() {
			switch ev.Kind {
			case agent.EventActionPlanned:
				fmt.Fprintf(stdout, "[step %d] %v\n", ev.Step, ev.Data["action"])
			case agent.EventToolResult:
				fmt.Fprintf(stdout, "  -> %v\n", firstLine(fmt.Sprintf("%v", ev.Data["result"])))
			case agent.EventError:
				fmt.Fprintf(stdout, "  !! %v\n", ev.Data["error"])
			}
		}
	}()

	summary, runErr := loop.Run(ctx)
	<-progressDone

	if cfg.Agent.MemoryFile != "" {
		if err := store.SaveFile(cfg.Agent.MemoryFile); err != nil {
			logger.Error("failed to save memory", "path", cfg.Agent.MemoryFile, "error", err)
		}
	}

	if summary != nil {
		if err := printSummary(stdout, summary, outputFmt); err != nil {
			return err
		}
	}
	return runErr
}

func printSummary(stdout io.Writer, summary *agent.Summary, outputFmt string) error {
	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(stdout, "\nRun %s: %s\n", summary.RunID, summary.State)
	fmt.Fprintf(stdout, "Steps: %d in %dms\n", summary.Steps, summary.DurationMs)
	if summary.FinalThought != "" {
		fmt.Fprintf(stdout, "Final thought: %s\n", summary.FinalThought)
	}
	if len(summary.Errors) > 0 {
		fmt.Fprintf(stdout, "Errors: %d\n", len(summary.Errors))
	}
	return nil
}

func printTools(stdout io.Writer, registry *agent.Registry) error {
	for _, d := range registry.DescribeAll() {
		fmt.Fprintf(stdout, "%s (%s)\n  %s\n", d.Name, d.Category, d.Description)
		for _, p := range d.Params {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(stdout, "    %s (%s%s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func printUsage(stdout io.Writer) error {
	fmt.Fprint(stdout, `taskagent - autonomous task execution agent

Usage:
  taskagent [flags] run <objective>
  taskagent tools
  taskagent version

Flags:
  -config <path>     Config file (default: search taskagent.yaml,
                     ~/.config/taskagent/config.yaml, /etc/taskagent/config.yaml)
  -o json            Output the run summary as JSON
  -memory <path>     Load memory from and save it to this file
  -max-steps <n>     Override the step budget
  -log-level <lvl>   debug, info, warn, or error
`)
	return nil
}
