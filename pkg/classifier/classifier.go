// Package classifier implements the three-way routing decision (spec.md
// §4.5): a handful of deterministic rules narrow the decision, then an
// LLM renders the final verdict with those rules and the live
// business-entity vocabulary embedded in its prompt.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/qa-router/pkg/conversation"
	"github.com/codeready-toolchain/qa-router/pkg/joingraph"
	"github.com/codeready-toolchain/qa-router/pkg/llmclient"
)

// Route is the classifier's three-way output.
type Route string

const (
	RouteSQL     Route = "sql"
	RouteRAG     Route = "rag"
	RouteGeneral Route = "general"
)

// lastAssistantLookback bounds how far back rule 3 looks for the
// previous assistant action (spec.md §4.5 rule 3: "within the last
// four messages").
const lastAssistantLookback = 4

// Generator is the minimal LLM surface the classifier needs: a single
// completion. Satisfied by backend.StreamingGenerator without either
// package importing the other.
type Generator interface {
	Complete(ctx context.Context, messages []llmclient.Message, temperature float64, maxTokens int) (string, error)
}

// Classifier renders the routing decision for one question.
type Classifier struct {
	generator                Generator
	vocabulary               *joingraph.Vocabulary
	temperature              float64
	followupDetectionEnabled bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFollowupDetection toggles rule 3 (spec.md §4.5, the
// `followup_detection_enabled` knob in spec.md §6): whether a question
// referring back to a prior SQL result is routed to sql on that basis
// alone. Defaults to enabled.
func WithFollowupDetection(enabled bool) Option {
	return func(c *Classifier) { c.followupDetectionEnabled = enabled }
}

// New creates a Classifier. vocabulary's Entities() are derived lazily
// and cached by the Vocabulary itself (spec.md §5).
func New(generator Generator, vocabulary *joingraph.Vocabulary, temperature float64, opts ...Option) *Classifier {
	c := &Classifier{generator: generator, vocabulary: vocabulary, temperature: temperature, followupDetectionEnabled: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var usagePhrasing = regexp.MustCompile(`(?i)\b(how do i|how to|steps to|what permissions)\b`)

var referentialDemonstrative = regexp.MustCompile(`(?i)\b(that|those|the above|from before)\b`)

var additionalDataPhrasing = regexp.MustCompile(`(?i)\b(more (details|columns|information)|related (data|records)|also show|what about)\b`)

// Classify applies the ordered rule set, consults the LLM to render a
// final decision, and returns a Route. The LLM is always consulted
// (spec.md §4.5: "The LLM is consulted to render the final decision,
// with the rules above embedded in the prompt"); the rule evaluation
// below exists to compute the hint passed into that prompt, not to
// short-circuit the call.
func (c *Classifier) Classify(ctx context.Context, question string, messages []conversation.Message, memoryContext string) (Route, error) {
	entities := c.vocabulary.Entities()
	hint := evaluateRules(question, messages, entities, c.followupDetectionEnabled)

	reply, err := c.generator.Complete(ctx, c.buildPrompt(question, memoryContext, entities, hint), c.temperature, 16)
	if err != nil {
		return RouteGeneral, fmt.Errorf("classify: %w", err)
	}

	route, ok := parseRoute(reply)
	if !ok {
		// Classifier anomaly: default to general (spec.md §7 "Classifier anomalies").
		return RouteGeneral, nil
	}
	return route, nil
}

// evaluateRules applies spec.md §4.5 rules 1-3 in order and returns the
// rule-implied route as a hint for the LLM prompt, or "" if none apply
// (rule 4: no hint, defer entirely to the LLM). Rule 3 (follow-up
// detection) is skipped entirely when followupDetectionEnabled is
// false (spec.md §6 `followup_detection_enabled`).
func evaluateRules(question string, messages []conversation.Message, entities []string, followupDetectionEnabled bool) Route {
	lower := strings.ToLower(question)
	usage := usagePhrasing.MatchString(question)

	if matchesEntity(lower, entities) && !usage {
		return RouteSQL
	}
	if usage {
		return RouteRAG
	}

	if !followupDetectionEnabled {
		return ""
	}

	if route, ok := conversation.LastAssistantRoute(messages, lastAssistantLookback); ok && route == string(RouteSQL) {
		if referentialDemonstrative.MatchString(question) || additionalDataPhrasing.MatchString(question) {
			return RouteSQL
		}
	}

	return ""
}

// matchesEntity reports whether question references any vocabulary
// entity by literal name or a simple singular/plural inflection.
func matchesEntity(lowerQuestion string, entities []string) bool {
	for _, entity := range entities {
		for _, form := range inflections(entity) {
			if strings.Contains(lowerQuestion, form) {
				return true
			}
		}
	}
	return false
}

// inflections returns a table name's naive singular/plural/word-spaced
// variants for substring matching (e.g. "work_orders" -> "work_orders",
// "work orders", "work_order", "work order").
func inflections(table string) []string {
	base := []string{strings.ToLower(table), strings.ToLower(strings.ReplaceAll(table, "_", " "))}
	forms := make(map[string]struct{}, len(base)*2)
	for _, form := range base {
		forms[form] = struct{}{}
		if strings.HasSuffix(form, "s") {
			forms[strings.TrimSuffix(form, "s")] = struct{}{}
		} else {
			forms[form+"s"] = struct{}{}
		}
	}
	out := make([]string, 0, len(forms))
	for f := range forms {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseRoute(reply string) (Route, bool) {
	word := strings.ToLower(strings.TrimSpace(reply))
	word = strings.Trim(word, ".\"'`")
	switch Route(word) {
	case RouteSQL, RouteRAG, RouteGeneral:
		return Route(word), true
	default:
		return "", false
	}
}

func (c *Classifier) buildPrompt(question, memoryContext string, entities []string, hint Route) []llmclient.Message {
	var b strings.Builder
	b.WriteString("You route a user's question to exactly one backend: sql, rag, or general.\n")
	b.WriteString("Reply with exactly one word: sql, rag, or general.\n\n")
	b.WriteString("Rules, in priority order:\n")
	b.WriteString("1. The question names a business entity and is not asking how to use the system -> sql.\n")
	b.WriteString("2. The question asks how to do something, what steps to take, or what permissions are needed -> rag.\n")
	if c.followupDetectionEnabled {
		b.WriteString("3. The question refers back to a prior SQL result (\"that\", \"those\", \"the above\") or asks for related/additional data about it -> sql.\n")
	}
	b.WriteString("4. Otherwise -> general.\n\n")

	if len(entities) > 0 {
		fmt.Fprintf(&b, "Business entities in this system: %s\n", strings.Join(entities, ", "))
		fmt.Fprintf(&b, "Example: \"How many %s are active?\" -> sql\n", entities[0])
		fmt.Fprintf(&b, "Example: \"How do I create a %s?\" -> rag\n\n", strings.TrimSuffix(entities[0], "s"))
	}

	if memoryContext != "" {
		fmt.Fprintf(&b, "%s\n\n", memoryContext)
	}
	if hint != "" {
		fmt.Fprintf(&b, "Rule-based hint for this question: %s\n\n", hint)
	}

	return []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: b.String()},
		{Role: llmclient.RoleUser, Content: question},
	}
}
