package config

import (
	"regexp"
	"strconv"
	"strings"
)

var originSplit = regexp.MustCompile(`[,;\s]+`)

// ApplyEnv overrides cfg from environment variables looked up with getenv:
// <KEY>_PATH per document, APP_HOST, APP_PORT, ALLOW_ORIGINS, EMBEDDING_PROVIDER,
// EMBEDDING_API_KEY (or OPENAI_API_KEY) and EMBEDDING_BASE_URL. Unset or invalid
// values leave the field unchanged.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for i, d := range cfg.Documents {
		if v := getenv(strings.ToUpper(d.Key) + "_PATH"); v != "" {
			cfg.Documents[i].Path = v
		}
	}
	if v := getenv("APP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := getenv("ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = ParseOrigins(v)
	}
	if v := getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if v := getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
	if v := getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
}

// ParseOrigins splits a comma, semicolon or whitespace separated origin list.
// A lone "*" yields []string{"*"}.
func ParseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range originSplit.Split(raw, -1) {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
