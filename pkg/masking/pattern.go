package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns sweeps credential-shaped substrings out of any text
// this service is about to log or echo back to a caller: database
// connection errors from the SQL backend can embed the DSN they failed
// to reach, and LLM provider errors can echo back the Authorization
// header they were sent with.
var builtinPatterns = []CompiledPattern{
	{
		Name:        "dsn_credentials",
		Regex:       regexp.MustCompile(`(?i)://[^/\s:@]+:[^/\s:@]+@`),
		Replacement: "://[MASKED_CREDENTIALS]@",
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer [MASKED_TOKEN]",
	},
	{
		Name:        "api_key_assignment",
		Regex:       regexp.MustCompile(`(?i)\b(api[_-]?key|password|secret)\s*[:=]\s*["']?[^\s"',]+`),
		Replacement: "$1=[MASKED]",
	},
}

func compileBuiltinPatterns() []*CompiledPattern {
	compiled := make([]*CompiledPattern, len(builtinPatterns))
	for i := range builtinPatterns {
		p := builtinPatterns[i]
		compiled[i] = &p
	}
	return compiled
}
