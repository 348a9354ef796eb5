package helm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/helm/llm"
	"github.com/deepnoodle-ai/helm/slogger"
)

var (
	ErrNoModel       = errors.New("no model provided")
	ErrNoStatusStore = errors.New("no run status store provided")
	ErrEmptyPrompt   = errors.New("no instruction provided")

	// ErrModelNoOutput indicates a Model returned neither output nor error.
	// This is a bug in the model implementation.
	ErrModelNoOutput = errors.New("model did not return an output")
)

const (
	// DefaultTurnBudget bounds the number of model invocations per run.
	DefaultTurnBudget = 100

	// DefaultResultToolName is the designated terminal tool: a successful
	// call to it delivers the result to the user and completes the run.
	DefaultResultToolName = "respond"

	taskCompleteSentinel   = "Task complete."
	interruptedTurnText    = "The run was interrupted before it could continue."
	interruptedToolResult  = "Tool execution was interrupted before it started."
	exhaustedResultMessage = "Run stopped: turn budget exhausted before the task completed."
)

// RetryClassifier inspects an assistant text block and reports whether the
// turn asked to be regenerated. When it fires on a turn with no tool calls,
// the controller drops the turn and loops again; the dropped turn is not
// reported in TurnsUsed but the model invocation still counts against the
// turn budget. The trigger condition is deliberately injectable; there is no
// default producer of the signal.
type RetryClassifier func(text string) bool

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	SessionID   string
	RunID       string
	Model       Model
	Catalog     ToolCatalog
	Executor    ToolExecutor
	StatusStore RunStatusStore
	Compactor   Compactor
	Publisher   EventPublisher
	Confirmer   Confirmer
	Logger      slogger.Logger

	// TurnBudget caps model invocations per run. Defaults to
	// DefaultTurnBudget.
	TurnBudget int

	// IsSubAgent suppresses the session-wide complete and status_update
	// events. Sub-agents must not signal session completion.
	IsSubAgent bool

	// ResultToolName overrides the designated terminal tool name.
	ResultToolName string

	// RetryClassifier optionally detects turns that should be regenerated.
	RetryClassifier RetryClassifier

	// History optionally resumes an existing conversation. When nil, the
	// controller starts with a fresh history.
	History *History
}

// RunResult is the terminal outcome of one Run invocation.
type RunResult struct {
	Status    RunStatus  `json:"status"`
	FinalText string     `json:"final_text"`
	Usage     *llm.Usage `json:"usage,omitempty"`
	TurnsUsed int        `json:"turns_used"`
}

// Controller drives one run of the turn loop. It owns its History
// exclusively; no other code path may mutate it. A controller is not safe
// for concurrent use: run one controller per active run.
type Controller struct {
	sessionID       string
	runID           string
	model           Model
	catalog         ToolCatalog
	executor        ToolExecutor
	statusStore     RunStatusStore
	compactor       Compactor
	publisher       EventPublisher
	confirmer       Confirmer
	logger          slogger.Logger
	turnBudget      int
	isSubAgent      bool
	resultToolName  string
	retryClassifier RetryClassifier
	history         *History

	// cancelMu serializes cancellation checks for this run so concurrent
	// status-store reads never overlap. It never blocks other runs.
	cancelMu sync.Mutex
}

// NewController creates a Controller. Model and StatusStore are required;
// every other collaborator has a no-op or in-memory default.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Model == nil {
		return nil, ErrNoModel
	}
	if opts.StatusStore == nil {
		return nil, ErrNoStatusStore
	}
	if opts.Catalog == nil {
		opts.Catalog = NewMemoryCatalog()
	}
	if opts.Executor == nil {
		opts.Executor = NewBatchExecutor(BatchExecutorOptions{
			Catalog: opts.Catalog,
			Logger:  opts.Logger,
		})
	}
	if opts.Compactor == nil {
		opts.Compactor = NullCompactor{}
	}
	if opts.Publisher == nil {
		opts.Publisher = NullPublisher{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = AutoApproveConfirmer{}
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.TurnBudget <= 0 {
		opts.TurnBudget = DefaultTurnBudget
	}
	if opts.ResultToolName == "" {
		opts.ResultToolName = DefaultResultToolName
	}
	if opts.History == nil {
		opts.History = NewHistory()
	}
	return &Controller{
		sessionID:   opts.SessionID,
		runID:       opts.RunID,
		model:       opts.Model,
		catalog:     opts.Catalog,
		executor:    opts.Executor,
		statusStore: opts.StatusStore,
		compactor:   opts.Compactor,
		publisher:   opts.Publisher,
		confirmer:   opts.Confirmer,
		logger: opts.Logger.With(
			"session_id", opts.SessionID,
			"run_id", opts.RunID,
		),
		turnBudget:      opts.TurnBudget,
		isSubAgent:      opts.IsSubAgent,
		resultToolName:  opts.ResultToolName,
		retryClassifier: opts.RetryClassifier,
		history:         opts.History,
	}, nil
}

// History returns the controller's conversation history. Callers must not
// mutate it while a run is in flight.
func (c *Controller) History() *History {
	return c.history
}

// Run executes the turn loop for one user instruction and returns the
// terminal result. A returned error means the run failed; cancellation and
// budget exhaustion are results, not errors.
func (c *Controller) Run(ctx context.Context, prompt string, attachments ...Attachment) (*RunResult, error) {
	if strings.TrimSpace(prompt) == "" && len(attachments) == 0 {
		return nil, ErrEmptyPrompt
	}
	c.history.AddUserPrompt(prompt, attachments...)

	totalUsage := &llm.Usage{}
	turnsUsed := 0

	// The budget bounds raw model invocations, not reported turns: a dropped
	// retry turn is invisible in TurnsUsed but still draws from the budget,
	// so a retry signal that never stops firing cannot loop forever.
	for modelCalls := 0; modelCalls < c.turnBudget; modelCalls++ {
		// Give the compactor a chance to shrink the history before the
		// model sees it.
		if err := c.maybeCompact(ctx); err != nil {
			return nil, err
		}

		// First cancellation checkpoint: before every model call.
		aborted, err := c.runAborted(ctx)
		if err != nil {
			return nil, err
		}
		if aborted {
			return c.interrupt(ctx, nil, totalUsage, turnsUsed)
		}

		output, err := c.model.Step(ctx, c.history.Turns())
		if err != nil {
			return nil, fmt.Errorf("model step failed: %w", err)
		}
		if output == nil {
			return nil, ErrModelNoOutput
		}
		blocks := output.Blocks
		if len(blocks) == 0 {
			// An empty response would break the non-empty turn invariant.
			blocks = []llm.Content{&llm.TextContent{Text: taskCompleteSentinel}}
		}
		if err := validateAssistantBlocks(blocks); err != nil {
			return nil, err
		}
		if err := c.history.AddAssistantTurn(blocks); err != nil {
			return nil, err
		}
		turnsUsed++

		c.emitTurnEvents(ctx, blocks, output.Usage)
		if output.Usage != nil {
			totalUsage.Add(output.Usage)
		}

		pending := c.history.PendingToolCalls()
		if len(pending) == 0 {
			if c.shouldRetryTurn(blocks) {
				c.logger.Debug("retry signal detected, dropping turn",
					"turn_number", turnsUsed)
				c.history.DropLastTurn()
				turnsUsed--
				continue
			}
			return c.complete(ctx, c.history.LastAssistantText(), totalUsage, turnsUsed), nil
		}

		// Second cancellation checkpoint: the status may have flipped while
		// the model call was in flight.
		aborted, err = c.runAborted(ctx)
		if err != nil {
			return nil, err
		}
		if aborted {
			return c.interrupt(ctx, pending, totalUsage, turnsUsed)
		}

		finalText, done, err := c.runToolBatch(ctx, pending)
		if err != nil {
			return nil, err
		}
		if done {
			return c.complete(ctx, finalText, totalUsage, turnsUsed), nil
		}
	}

	result := &RunResult{
		Status:    RunStatusExhausted,
		FinalText: exhaustedResultMessage,
		Usage:     totalUsage,
		TurnsUsed: turnsUsed,
	}
	c.logger.Info("run exhausted turn budget", "turn_budget", c.turnBudget)
	if !c.isSubAgent {
		c.publish(ctx, &Event{
			Type:   EventTypeComplete,
			Text:   exhaustedResultMessage,
			Status: RunStatusExhausted,
		})
	}
	return result, nil
}

// maybeCompact asks the compactor to rewrite the history. A changed turn
// count means compaction occurred: the history adopts the new list wholesale
// and a model_compact event carries the new head turn as the summary.
func (c *Controller) maybeCompact(ctx context.Context) error {
	turns := c.history.Turns()
	compacted, err := c.compactor.ApplyTruncationIfNeeded(ctx, turns)
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	if len(compacted) == len(turns) {
		return nil
	}
	c.history.ReplacePrefix(compacted)
	var summary string
	if len(compacted) > 0 {
		summary = compacted[0].CompleteText()
	}
	c.logger.Info("history compacted",
		"turns_before", len(turns),
		"turns_after", len(compacted))
	c.publish(ctx, &Event{Type: EventTypeModelCompact, Text: summary})
	return nil
}

// runAborted reads the run status store and reports whether the run was
// aborted. Checks for the same run are serialized so status reads never
// overlap. Any lookup failure, including an unknown run id, is fatal.
func (c *Controller) runAborted(ctx context.Context) (bool, error) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	status, err := c.statusStore.GetStatus(ctx, c.runID)
	if err != nil {
		return false, fmt.Errorf("run status lookup failed: %w", err)
	}
	return status == RunStatusAborted, nil
}

// interrupt finishes the run after cancellation was observed. Pending tool
// calls, if any, receive synthesized interrupted results so the history
// stays well-formed, then a synthetic assistant turn records the
// interruption.
func (c *Controller) interrupt(ctx context.Context, pending []*llm.ToolUseContent, usage *llm.Usage, turnsUsed int) (*RunResult, error) {
	for _, call := range pending {
		result := &ToolCallResult{
			CallID:  call.ID,
			Name:    call.Name,
			Parts:   NewToolOutputError(interruptedToolResult).Parts,
			IsError: true,
		}
		c.history.AddToolResult(result.Content())
		c.publish(ctx, &Event{Type: EventTypeToolResult, ToolResult: result})
	}
	if err := c.history.AddAssistantTurn([]llm.Content{
		&llm.TextContent{Text: interruptedTurnText},
	}); err != nil {
		return nil, err
	}
	c.logger.Info("run interrupted", "turns_used", turnsUsed)
	if !c.isSubAgent {
		c.publish(ctx, &Event{
			Type:   EventTypeStatusUpdate,
			Text:   interruptedTurnText,
			Status: RunStatusInterrupted,
		})
	}
	return &RunResult{
		Status:    RunStatusInterrupted,
		FinalText: interruptedTurnText,
		Usage:     usage,
		TurnsUsed: turnsUsed,
	}, nil
}

// complete emits the session-wide completion events (unless this controller
// is a sub-agent) and builds the completed result.
func (c *Controller) complete(ctx context.Context, finalText string, usage *llm.Usage, turnsUsed int) *RunResult {
	c.logger.Info("run completed", "turns_used", turnsUsed)
	if !c.isSubAgent {
		c.publish(ctx, &Event{
			Type:   EventTypeComplete,
			Text:   finalText,
			Status: RunStatusCompleted,
		})
		c.publish(ctx, &Event{
			Type:   EventTypeStatusUpdate,
			Status: RunStatusCompleted,
		})
	}
	return &RunResult{
		Status:    RunStatusCompleted,
		FinalText: finalText,
		Usage:     usage,
		TurnsUsed: turnsUsed,
	}
}

// emitTurnEvents publishes one event per text or thinking block in the new
// assistant turn, plus a metrics_update when usage is present.
func (c *Controller) emitTurnEvents(ctx context.Context, blocks []llm.Content, usage *llm.Usage) {
	for _, block := range blocks {
		switch b := block.(type) {
		case *llm.TextContent:
			c.publish(ctx, &Event{Type: EventTypeAgentResponse, Text: b.Text})
		case *llm.ThinkingContent:
			c.publish(ctx, &Event{Type: EventTypeAgentThinking, Text: b.Thinking})
		}
	}
	if usage != nil {
		c.publish(ctx, &Event{Type: EventTypeMetricsUpdate, Usage: usage.Copy()})
	}
}

// shouldRetryTurn reports whether any text block in the turn carries the
// retry signal.
func (c *Controller) shouldRetryTurn(blocks []llm.Content) bool {
	if c.retryClassifier == nil {
		return false
	}
	for _, block := range blocks {
		if text, ok := block.(*llm.TextContent); ok && c.retryClassifier(text.Text) {
			return true
		}
	}
	return false
}

// runToolBatch coordinates one batch of pending tool calls: lookup,
// confirmation, execution, history append, and event emission. It returns
// done=true with the final text when a terminal result tool ran
// successfully.
func (c *Controller) runToolBatch(ctx context.Context, pending []*llm.ToolUseContent) (string, bool, error) {
	// Resolve calls against the catalog. A lookup failure is logged and the
	// call is skipped from the batch; it still gets a synthesized error
	// result so its tool call never dangles in the history.
	type plannedCall struct {
		request    *ToolCallRequest
		tool       Tool
		unresolved bool
		denied     *Decision
	}
	var planned []*plannedCall
	for _, call := range pending {
		request := &ToolCallRequest{CallID: call.ID, Name: call.Name, Input: call.Input}
		tool, err := c.catalog.Resolve(call.Name)
		if err != nil {
			c.logger.Warn("skipping unknown tool", "tool_name", call.Name, "call_id", call.ID)
			planned = append(planned, &plannedCall{request: request, unresolved: true})
			continue
		}
		c.publish(ctx, &Event{Type: EventTypeToolCall, ToolCall: request})
		planned = append(planned, &plannedCall{request: request, tool: tool})
	}

	// Confirmation pass: denied calls get synthesized results and never
	// reach the executor.
	var approved []*ToolCallRequest
	var alternatives []string
	for _, call := range planned {
		if call.unresolved {
			continue
		}
		decision, err := c.confirmer.Confirm(ctx, call.request, call.tool)
		if err != nil {
			return "", false, fmt.Errorf("tool call confirmation failed: %w", err)
		}
		if decision == nil || decision.Approved {
			approved = append(approved, call.request)
			continue
		}
		call.denied = decision
		if decision.AlternativeInstructions != "" {
			alternatives = append(alternatives, decision.AlternativeInstructions)
		}
	}

	executed, err := c.executor.RunBatch(ctx, approved)
	if err != nil {
		return "", false, fmt.Errorf("tool batch failed: %w", err)
	}
	if len(executed) != len(approved) {
		return "", false, fmt.Errorf("tool executor returned %d results for %d requests",
			len(executed), len(approved))
	}

	// Stitch executed and denied results back into the original call order,
	// append to history, and emit per-call events.
	var finalText string
	var done bool
	executedIdx := 0
	for _, call := range planned {
		var result *ToolCallResult
		if call.unresolved {
			result = &ToolCallResult{
				CallID:  call.request.CallID,
				Name:    call.request.Name,
				Parts:   NewToolOutputError(fmt.Sprintf("Unknown tool: %q", call.request.Name)).Parts,
				IsError: true,
			}
		} else if call.denied != nil {
			reason := call.denied.Reason
			if reason == "" {
				reason = "Tool execution denied"
			}
			result = &ToolCallResult{
				CallID:  call.request.CallID,
				Name:    call.request.Name,
				Parts:   NewToolOutputError(reason).Parts,
				IsError: true,
			}
		} else {
			result = executed[executedIdx]
			executedIdx++
		}
		c.history.AddToolResult(result.Content())
		c.publish(ctx, &Event{Type: EventTypeToolResult, ToolResult: result})

		if !call.unresolved && call.denied == nil && result.Name == c.resultToolName && !result.IsError && !done {
			done = true
			finalText = resultToolText(call.request, result)
		}
	}

	// Fold denial alternatives back into the conversation as a user turn.
	if len(alternatives) > 0 {
		c.history.AddUserPrompt(strings.Join(alternatives, "\n\n"))
	}
	if done && finalText == "" {
		finalText = c.history.LastAssistantText()
	}
	return finalText, done, nil
}

// resultToolText extracts the user-facing message from a terminal result
// tool call: the "message" input field when present, otherwise the result
// text.
func resultToolText(request *ToolCallRequest, result *ToolCallResult) string {
	var input struct {
		Message string `json:"message"`
	}
	if len(request.Input) > 0 {
		if err := json.Unmarshal(request.Input, &input); err == nil && input.Message != "" {
			return input.Message
		}
	}
	return result.Content().FlatText()
}

// validateAssistantBlocks rejects block kinds that must never appear in an
// assistant turn. Encountering one is a logic error that fails the run.
func validateAssistantBlocks(blocks []llm.Content) error {
	for _, block := range blocks {
		switch block.(type) {
		case *llm.TextContent, *llm.ThinkingContent, *llm.ToolUseContent:
		case *llm.ToolResultContent:
			return fmt.Errorf("%w: tool result block in assistant turn", ErrHistoryCorrupt)
		default:
			return fmt.Errorf("unrecognized content block type %T", block)
		}
	}
	return nil
}

// publish stamps and sends one event. Publishing is fire-and-forget: a
// failure is logged and the run continues.
func (c *Controller) publish(ctx context.Context, event *Event) {
	event.SessionID = c.sessionID
	event.RunID = c.runID
	event.Timestamp = time.Now()
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish event", "event_type", event.Type, "error", err)
	}
}
