package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/nextlevelbuilder/tsagent/internal/agent"
	"github.com/nextlevelbuilder/tsagent/internal/config"
	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/executor"
	"github.com/nextlevelbuilder/tsagent/internal/modules"
	"github.com/nextlevelbuilder/tsagent/internal/providers"
	"github.com/nextlevelbuilder/tsagent/internal/resolver"
	"github.com/nextlevelbuilder/tsagent/internal/session"
	"github.com/nextlevelbuilder/tsagent/internal/store"
)

var resumeSession string

func printHelp() {
	fmt.Println(`Available commands:
  analyze <csv_path> <target_column> <series_id_column>  - load and analyze a dataset
  fix <instructions>                                     - regenerate the last failed code
  help                                                   - show this message
  /bye                                                   - save the session and exit
Anything else is treated as a natural-language request about the data.`)
}

func runRepl() {
	cfg := loadConfig()

	backend, err := store.New(cfg.Sessions.Backend, cfg.Sessions.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var mem *session.Memory
	if resumeSession != "" {
		mem, err = session.Resume(resumeSession, cfg.Memory.Window, backend)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session %s: %v\n", resumeSession, err)
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("Resumed session " + resumeSession))
	} else {
		mem = session.NewMemory(session.NewSession(time.Now()), cfg.Memory.Window, backend)
	}

	client := providers.NewClient(
		cfg.Model.Endpoint(),
		time.Duration(cfg.Model.TimeoutSeconds)*time.Second,
		providers.RetryConfig{
			MaxRetries: cfg.Model.MaxRetries,
			BaseDelay:  time.Second,
			MaxDelay:   15 * time.Second,
		},
		cfg.Model.Temperature,
	)
	if err := selectModel(client, cfg.Model.Name); err != nil {
		fmt.Fprintln(os.Stderr, "Error: no model reachable:", err)
		os.Exit(1)
	}

	workDir := filepath.Join(cfg.Sessions.Dir, mem.SessionID(), "artifacts")
	ns := executor.NewNamespace(workDir)
	registry := modules.Builtin()
	if err := registry.InstallBaseline(ns); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	orch := agent.New(
		mem,
		client,
		cliConfirmer{},
		executor.New(time.Duration(cfg.Model.TimeoutSeconds)*time.Second),
		ns,
		resolver.New(registry),
		dataset.NewLoader(0),
	)

	// Window size follows config edits without a restart.
	if watcher, err := config.NewWatcher(resolveConfigPath()); err == nil {
		watcher.OnChange(func(c *config.Config) { orch.SetWindow(c.Memory.Window) })
		if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	}

	fmt.Println(okStyle.Render("tsagent ready (session " + mem.SessionID() + "). Type 'help' for commands."))

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print(promptStyle.Render("tsagent> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/bye":
			if err := mem.Persist(); err != nil {
				fmt.Println(errStyle.Render("Warning: could not save session: " + err.Error()))
			}
			fmt.Println("Session saved. Goodbye!")
			return

		case line == "help":
			printHelp()

		case strings.HasPrefix(line, "analyze"):
			runAnalyze(ctx, orch, line)

		case strings.HasPrefix(line, "fix"):
			instructions := strings.TrimSpace(strings.TrimPrefix(line, "fix"))
			report(orch.HandleFix(ctx, instructions))

		default:
			report(orch.Handle(ctx, line))
		}
	}
}

func runAnalyze(ctx context.Context, orch *agent.Orchestrator, line string) {
	args, err := shellwords.Parse(line)
	if err != nil || len(args) != 4 {
		fmt.Println(warnStyle.Render("Usage: analyze <csv_path> <target_column> <series_id_column>"))
		return
	}

	out, err := orch.Analyze(ctx, args[1], args[2], args[3])
	if err != nil {
		fmt.Println(errStyle.Render("Error: " + err.Error()))
		return
	}
	fmt.Println(out)
}

func report(res agent.TurnResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrNoData),
			errors.Is(err, agent.ErrNothingToFix),
			errors.Is(err, agent.ErrNoInstructions):
			fmt.Println(warnStyle.Render(err.Error()))
		default:
			fmt.Println(errStyle.Render("Error: " + err.Error()))
		}
		return
	}

	switch res.Outcome {
	case agent.OutcomeSuccess:
		if res.Output != "" {
			fmt.Println(res.Output)
		}
		fmt.Println(okStyle.Render("done"))
	case agent.OutcomeSkipped:
		fmt.Println(dimStyle.Render("Skipped."))
	case agent.OutcomeAbandoned:
		fmt.Println(dimStyle.Render("Cancelled."))
	case agent.OutcomeSoftFailed:
		fmt.Println(warnStyle.Render(res.ErrorDetail))
		fmt.Println(warnStyle.Render("Use 'fix <instructions>' to retry with guidance."))
	case agent.OutcomeFailed:
		fmt.Println(errStyle.Render("Execution failed: " + res.ErrorDetail))
		fmt.Println(warnStyle.Render("Use 'fix <instructions>' to regenerate."))
	}
}

// selectModel picks the model identifier before the first Handle call:
// config value if set, otherwise an interactive choice from whatever
// the endpoint reports.
func selectModel(client *providers.Client, configured string) error {
	if configured != "" {
		client.SetModel(configured)
		return nil
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		return err
	}
	if len(models) == 1 {
		client.SetModel(models[0])
		return nil
	}

	choice, err := promptSelect("Select model", models, models)
	if err != nil {
		return err
	}
	client.SetModel(choice)
	return nil
}
