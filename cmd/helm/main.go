package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/compactor"
	"github.com/deepnoodle-ai/helm/config"
	"github.com/deepnoodle-ai/helm/providers/anthropic"
	"github.com/deepnoodle-ai/helm/runstore"
	"github.com/deepnoodle-ai/helm/slogger"
	"github.com/deepnoodle-ai/helm/toolkit"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	errorStyle    = color.New(color.FgRed)
	thinkingStyle = color.New(color.FgHiBlack)
	toolStyle     = color.New(color.FgYellow)
	resultStyle   = color.New(color.FgGreen, color.Bold)
	statusStyle   = color.New(color.FgCyan)
)

func fatal(msg string, args ...interface{}) {
	fmt.Println(errorStyle.Sprintf(msg, args...))
	os.Exit(1)
}

func main() {
	var configPath, logLevel string
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if flag.NArg() == 0 {
		fatal("Error: a prompt is required")
	}
	prompt := strings.Join(flag.Args(), " ")

	cfg := &config.Config{}
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fatal("Error: %s", err)
		}
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := slogger.New(slogger.LevelFromString(logLevel))

	catalog := helm.NewMemoryCatalog(
		toolkit.NewRespondTool(),
		toolkit.NewFileReadTool(toolkit.FileReadToolOptions{}),
	)
	model := anthropic.New(anthropic.Options{
		APIKey:       cfg.Model.APIKey,
		ModelName:    cfg.Model.Name,
		MaxTokens:    cfg.Model.MaxTokens,
		SystemPrompt: cfg.Model.SystemPrompt,
		Tools:        catalog.Tools(),
	})

	var comp helm.Compactor
	if cfg.Compaction.Enabled {
		comp = compactor.New(compactor.Options{
			TokenThreshold:  cfg.Compaction.TokenThreshold,
			KeepRecentTurns: cfg.Compaction.KeepRecentTurns,
			Logger:          logger,
		})
	}

	sessionID := uuid.NewString()
	runID := uuid.NewString()
	store := runstore.NewMemoryStore()
	stream, publisher := helm.NewEventStream()

	ctx := context.Background()
	if err := store.SetStatus(ctx, runID, helm.RunStatusRunning); err != nil {
		fatal("Error: %s", err)
	}

	controller, err := helm.NewController(helm.ControllerOptions{
		SessionID:      sessionID,
		RunID:          runID,
		Model:          model,
		Catalog:        catalog,
		StatusStore:    store,
		Compactor:      comp,
		Publisher:      publisher,
		Logger:         logger,
		TurnBudget:     cfg.TurnBudget,
		ResultToolName: cfg.ResultToolName,
	})
	if err != nil {
		fatal("Error: %s", err)
	}

	// Ctrl-C flips the run status to aborted; the controller observes it at
	// its next cancellation checkpoint and winds the run down cleanly.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		fmt.Println(statusStyle.Sprint("\nInterrupting run..."))
		if err := store.SetStatus(ctx, runID, helm.RunStatusAborted); err != nil {
			logger.Error("failed to abort run", "error", err)
		}
	}()

	type runOutcome struct {
		result *helm.RunResult
		err    error
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		result, err := controller.Run(ctx, prompt)
		publisher.Close()
		outcome <- runOutcome{result: result, err: err}
	}()

	for stream.Next(ctx) {
		printEvent(stream.Event())
	}

	o := <-outcome
	if o.err != nil {
		fatal("Run failed: %s", o.err)
	}
	fmt.Println()
	fmt.Println(statusStyle.Sprintf("Run %s after %d turn(s)", o.result.Status, o.result.TurnsUsed))
	if o.result.Usage != nil {
		fmt.Println(statusStyle.Sprintf("Tokens: %d in, %d out",
			o.result.Usage.InputTokens, o.result.Usage.OutputTokens))
	}
	fmt.Println()
	fmt.Println(resultStyle.Sprint(o.result.FinalText))
}

func printEvent(event *helm.Event) {
	switch event.Type {
	case helm.EventTypeAgentThinking:
		fmt.Println(thinkingStyle.Sprint(event.Text))
	case helm.EventTypeAgentResponse:
		fmt.Println(event.Text)
	case helm.EventTypeToolCall:
		fmt.Println(toolStyle.Sprintf("→ %s(%s)", event.ToolCall.Name, compactJSON(string(event.ToolCall.Input))))
	case helm.EventTypeToolResult:
		text := event.ToolResult.Content().FlatText()
		if event.ToolResult.IsError {
			fmt.Println(errorStyle.Sprintf("✗ %s: %s", event.ToolResult.Name, firstLine(text)))
		} else {
			fmt.Println(toolStyle.Sprintf("✓ %s: %s", event.ToolResult.Name, firstLine(text)))
		}
	case helm.EventTypeModelCompact:
		fmt.Println(statusStyle.Sprint("Conversation compacted"))
	case helm.EventTypeStatusUpdate:
		fmt.Println(statusStyle.Sprintf("Status: %s", event.Status))
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + " ..."
	}
	return text
}

func compactJSON(input string) string {
	input = strings.TrimSpace(input)
	if len(input) > 80 {
		return input[:80] + "..."
	}
	return input
}
