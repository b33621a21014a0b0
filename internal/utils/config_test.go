package utils

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "HISTORY_BACKEND", "DOCS_BACKEND", "ASSISTANT_MODE", "REDIS_ADDR", "CORS_ORIGINS", "SESSION_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServerPort != "8001" {
		t.Fatalf("expected default port 8001, got %s", cfg.ServerPort)
	}
	if cfg.HistoryBackend != HistoryMemory || cfg.DocsBackend != DocsStatic {
		t.Fatalf("expected in-memory defaults, got %s/%s", cfg.HistoryBackend, cfg.DocsBackend)
	}
	if cfg.Assistant.Mode != AssistantMock {
		t.Fatalf("expected mock assistant, got %s", cfg.Assistant.Mode)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("expected redis disabled, got %q", cfg.Redis.Addr)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.SessionTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigRejectsUnknownBackends(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported history backend")
	}
}

func TestLoadConfigCompletionNeedsKey(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "")
	t.Setenv("ASSISTANT_MODE", "completion")
	t.Setenv("QINIU_API_KEY", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when completion mode has no api key")
	}

	t.Setenv("QINIU_API_KEY", "sk-test")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Assistant.BaseURL() != "https://openai.qiniu.com/v1" {
		t.Fatalf("unexpected base url %s", cfg.Assistant.BaseURL())
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b;;c ,")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected split result %v", got)
	}
}
