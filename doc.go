// Package helm is the run-time loop that drives a tool-using conversational
// agent from a user instruction to a terminal outcome. A Controller owns one
// conversation History and one run identity, and coordinates three
// independent collaborators behind stable interfaces: a reasoning Model, a
// ToolCatalog/ToolExecutor pair, and a context Compactor. Progress is
// reported through an EventPublisher and cancellation is observed
// cooperatively through a RunStatusStore.
//
// The controller is a state machine: each iteration optionally compacts the
// history, checks for cancellation, invokes the model, emits events for the
// response content, and either finishes (no pending tool calls, a terminal
// result tool, interruption, or an exhausted turn budget) or executes the
// requested tool batch and loops.
//
// Multiple controllers may run concurrently, one per active run. A History
// is single-writer and never shared between controllers.
package helm
