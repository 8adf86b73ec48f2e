// Package logging provides logging utilities including sensitive data
// filtering. Teammate prompts and captured lead environments can carry API
// keys and tokens, so anything derived from them is filtered before it
// reaches the log file.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// sensitivePatterns matches common API key, token, and credential formats
// that may appear in prompts or environment snapshots.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // Package-level patterns for reuse
	// Anthropic API keys (sk-ant-api...)
	regexp.MustCompile(`sk-ant-api[a-zA-Z0-9_-]+`),

	// OpenAI API keys (sk-...)
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),

	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),

	// Generic API keys (api_key, apikey, api-key followed by a value)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),

	// Generic secret patterns (secret, password, credential, token with values)
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd|token)\s*[:=]\s*["']?[^\s"']{8,}["']?`),

	// SSH private keys
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),
}

// sensitiveEnvKeys are environment variable names whose values are never
// logged, even inside an otherwise loggable snapshot.
var sensitiveEnvKeys = []string{ //nolint:gochecknoglobals // Package-level list for reuse
	"api_key",
	"apikey",
	"auth_token",
	"access_token",
	"refresh_token",
	"password",
	"secret",
	"credential",
	"authorization",
	"anthropic_api_key",
	"openai_api_key",
	"github_token",
	"opencode_api_key",
}

// SensitiveDataHook is a zerolog hook that flags log entries whose message
// matches a sensitive pattern. Zerolog hooks cannot rewrite the message, so
// the actual redaction happens at call sites via FilterSensitiveValue; the
// hook marks anything that slipped through.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a hook for flagging sensitive log entries.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements the zerolog.Hook interface.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any sensitive pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces any sensitive matches in s with
// RedactedValue. Use it when logging values that may embed credentials,
// like prompts or environment snapshots.
func FilterSensitiveValue(s string) string {
	out := s
	for _, pattern := range sensitivePatterns {
		out = pattern.ReplaceAllString(out, RedactedValue)
	}
	return out
}

// IsSensitiveEnvKey reports whether the environment variable name should
// have its value redacted wholesale.
func IsSensitiveEnvKey(name string) bool {
	lower := strings.ToLower(name)
	for _, key := range sensitiveEnvKeys {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}

// FilteringWriter wraps an io.Writer and filters sensitive data from output.
// It wraps the log file writer so sensitive data never reaches disk even if
// it appears in a message or field value.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a FilteringWriter over w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer, filtering sensitive data before writing. The
// original length is returned so callers do not observe a short write.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FilterEnv returns a copy of env safe for logging: values of sensitive
// keys are replaced, and remaining values are pattern-filtered.
func FilterEnv(env map[string]string) map[string]string {
	safe := make(map[string]string, len(env))
	for key, value := range env {
		if IsSensitiveEnvKey(key) {
			safe[key] = RedactedValue
			continue
		}
		safe[key] = FilterSensitiveValue(value)
	}
	return safe
}
