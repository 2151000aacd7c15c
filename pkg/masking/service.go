// Package masking redacts credential-shaped substrings from text before
// it is logged or surfaced to a caller. Adapted from the teacher's MCP
// tool-result masking service (originally resolving per-server pattern
// groups against an MCP server registry) down to a single always-on
// sweep: this service has no per-tool registry, but the SQL backend's
// database errors and the LLM client's provider errors can just as
// easily echo back a DSN or bearer token, so the same two-phase
// code-masker-then-regex strategy applies.
package masking

// Service applies masking to text. Safe for concurrent use; it holds
// nothing but pre-compiled patterns.
type Service struct {
	patterns []*CompiledPattern
	maskers  []Masker
}

// NewService creates a Service with the built-in patterns and maskers
// compiled.
func NewService() *Service {
	return &Service{
		patterns: compileBuiltinPatterns(),
		maskers:  []Masker{&JSONFieldMasker{}},
	}
}

// Mask applies every structural masker that claims the text, then
// sweeps the result with the regex patterns.
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}

	masked := text
	for _, m := range s.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
