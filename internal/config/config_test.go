package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadRejectsBadNumericValues(t *testing.T) {
	t.Setenv("REPLY_DELAY_MILLIS", "-5")
	t.Setenv("MENU_CACHE_TTL_SECONDS", "abc")

	cfg := Load()
	if cfg.ReplyDelayMillis != 1000 {
		t.Fatalf("expected reply delay fallback 1000, got %d", cfg.ReplyDelayMillis)
	}
	if cfg.MenuCacheTTLSeconds != 300 {
		t.Fatalf("expected menu TTL fallback 300, got %d", cfg.MenuCacheTTLSeconds)
	}
}
