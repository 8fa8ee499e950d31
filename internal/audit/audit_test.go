package audit

import (
	"os"
	"testing"
)

func Test_SanitiseKey_SecretsCollapseToPresence(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("want set, got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("want unset, got %q", got)
	}
	// Connection strings carry credentials.
	if got := SanitiseKey("DATABASE_URL", "postgres://user:pw@host/db"); got != "set" {
		t.Errorf("want set, got %q", got)
	}
	// Redacted even though it is not part of the audit record.
	if got := SanitiseKey("AWS_SECRET_ACCESS_KEY", "shhh"); got != "set" {
		t.Errorf("want set, got %q", got)
	}
}

func Test_SanitiseKey_NonSecretsPassThrough(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("want azure, got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("want unset, got %q", got)
	}
}

func Test_SanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("want none, got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("want /tmp/config.yaml, got %q", got)
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.ragline/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.ragline/config.yaml" {
			t.Errorf("want ~/.ragline/config.yaml, got %q", got)
		}
	}
}
