// Package llm defines the content model shared between the helm controller
// and its collaborators: messages, the closed set of content block types that
// may appear in a message, and token usage accounting.
//
// A Message corresponds to one turn in a conversation: an ordered, non-empty
// list of content blocks produced by a single actor (user or assistant).
// Content blocks form a tagged union. Code that branches on block types
// should switch on the concrete type and treat an unknown type as a logic
// error rather than skipping it silently.
package llm
