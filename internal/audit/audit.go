// Package audit emits one structured log entry per CLI command invocation:
// the command name, which config file was loaded, and the operational
// environment. Secret values are reduced to "set"/"unset" so the audit trail
// never leaks a credential.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditEntry names an environment variable included in the audit record.
type auditEntry struct {
	key string
	// secret entries log presence only, never the value.
	secret bool
}

// auditKeys is the ordered environment surface captured on every command.
var auditKeys = []auditEntry{
	{key: "MODEL_PROVIDER"},
	{key: "OLLAMA_HOST"},
	{key: "OLLAMA_MODEL"},
	{key: "OPENAI_API_KEY", secret: true},
	{key: "OPENAI_MODEL"},
	{key: "AZURE_OPENAI_API_KEY", secret: true},
	{key: "AZURE_OPENAI_ENDPOINT"},
	{key: "AZURE_OPENAI_DEPLOYMENT"},
	{key: "GOOGLE_API_KEY", secret: true},
	{key: "GEMINI_MODEL"},
	{key: "AWS_REGION"},
	{key: "BEDROCK_MODEL_ID"},
	{key: "EMBEDDING_PROVIDER"},
	{key: "EMBEDDING_MODEL"},
	{key: "EMBEDDING_DIMENSIONS"},
	{key: "EMBEDDING_API_KEY", secret: true},
	// Connection strings carry credentials, so the DSN is treated as a secret.
	{key: "DATABASE_URL", secret: true},
	{key: "RAGLINE_WORKFLOW_DB"},
	{key: "RERANKER_ENDPOINT"},
	{key: "RERANKER_MODEL"},
	{key: "RAGLINE_API_KEY", secret: true},
	{key: "INGEST_CHUNK_SIZE"},
	{key: "INGEST_CHUNK_OVERLAP"},
	{key: "INGEST_WORKERS"},
	{key: "QUERY_TOP_K"},
	{key: "LOG_LEVEL"},
	{key: "LOG_FORMAT"},
	{key: "LANGFUSE_PUBLIC_KEY", secret: true},
	{key: "LANGFUSE_SECRET_KEY", secret: true},
}

// secretEnvKeys is the full redaction set: every secret audit key plus
// credentials that never appear in the audit record but may be named in
// other log messages.
var secretEnvKeys = buildSecretSet(
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
)

func buildSecretSet(extra ...string) map[string]bool {
	set := make(map[string]bool, len(auditKeys)+len(extra))
	for _, entry := range auditKeys {
		if entry.secret {
			set[entry.key] = true
		}
	}
	for _, key := range extra {
		set[key] = true
	}
	return set
}

// LogCommandStart writes the audit record for a starting CLI command.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, entry := range auditKeys {
		attrs = append(attrs, slog.String(entry.key, SanitiseKey(entry.key, os.Getenv(entry.key))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders an env value for logging: secret keys collapse to
// "set"/"unset", everything else passes through ("unset" when empty).
func SanitiseKey(key, value string) string {
	switch {
	case secretEnvKeys[key] && value != "":
		return "set"
	case value == "":
		return "unset"
	default:
		return value
	}
}

// sanitiseConfigPath reports the loaded config file, with the home directory
// abbreviated and "none" standing in for env-only runs.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
