package provider

import (
	"strings"
	"testing"
)

func Test_Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "ollama needs nothing",
			cfg:  Config{Backend: BackendOllama},
		},
		{
			name:    "openai requires api key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "openai with key is valid",
			cfg:  Config{Backend: BackendOpenAI, Model: "gpt-4o", APIKey: "sk-test"},
		},
		{
			name:    "azure requires endpoint",
			cfg:     Config{Backend: BackendAzure, APIKey: "k", AzureDeployment: "d"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "azure requires deployment",
			cfg:     Config{Backend: BackendAzure, APIKey: "k", BaseURL: "https://x.openai.azure.com"},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},
		{
			name: "azure fully configured is valid",
			cfg: Config{
				Backend:         BackendAzure,
				APIKey:          "k",
				BaseURL:         "https://x.openai.azure.com",
				AzureDeployment: "gpt-4.1",
			},
		},
		{
			name:    "bedrock requires model id",
			cfg:     Config{Backend: BackendBedrock, AWSRegion: "us-east-1"},
			wantErr: "BEDROCK_MODEL_ID",
		},
		{
			name:    "gemini requires api key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-1.5-pro"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "unknown backend rejected",
			cfg:     Config{Backend: "watson"},
			wantErr: "unknown backend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("want valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func Test_ConfigFromEnv_Defaults(t *testing.T) {
	// Scrub the provider env so defaults apply.
	for _, key := range []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
		"MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
	} {
		t.Setenv(key, "")
	}

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama {
		t.Errorf("default backend must be ollama, got %s", cfg.Backend)
	}
	if cfg.BaseURL != "http://localhost:11434" {
		t.Errorf("default ollama host wrong: %s", cfg.BaseURL)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("default max tokens wrong: %d", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("default temperature wrong: %v", cfg.Temperature)
	}
}

func Test_ConfigFromEnv_ExplicitBackend(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI {
		t.Fatalf("want openai backend, got %s", cfg.Backend)
	}
	if cfg.APIKey != "sk-test" || cfg.Model != "gpt-4o-mini" {
		t.Errorf("openai env not resolved: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("resolved config must validate: %v", err)
	}
}
