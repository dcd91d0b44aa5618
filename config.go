package edgelog

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

// envPrefix is prepended to every recognized environment variable.
const envPrefix = "EDGELOG_"

// Config carries every switch the library recognizes. A Config value is
// shared by reference between the Masker, the formatters, the middleware and
// the transport, so flipping a field takes effect everywhere at once.
type Config struct {
	// EnableOutboundRequestLogging gates the outgoing Transport.
	EnableOutboundRequestLogging bool

	// EnableLoggingMiddleware gates the incoming middleware.
	EnableLoggingMiddleware bool

	// EnableSensitivePathsProcessor gates SensitivePaths.Process entirely.
	EnableSensitivePathsProcessor bool

	// MaxVerboseOutputLength truncates the human-readable rendering of
	// request and response data in the smart formatter.
	MaxVerboseOutputLength int

	// MaxJSONDataToLog limits the serialized size of a JSON-formatted
	// record. Zero disables the limit.
	MaxJSONDataToLog int

	// MiddlewareBlocklist lists path prefixes whose requests are not logged.
	MiddlewareBlocklist []string

	// LogResponseContent gates whether incoming JSON response bodies are
	// parsed and attached to END events.
	LogResponseContent bool

	// PreferTextFallbackMasking replaces a string that fails query-string
	// parsing with MaskString instead of leaving it unchanged.
	PreferTextFallbackMasking bool

	// ShowNestedKeysInSensitivePaths keeps map keys visible when a whole
	// map is masked, replacing only the values.
	ShowNestedKeysInSensitivePaths bool
}

// DefaultConfig returns a Config with the library defaults. Masking is off by
// default; callers opt in by setting EnableSensitivePathsProcessor.
func DefaultConfig() *Config {
	return &Config{
		EnableOutboundRequestLogging:   true,
		EnableLoggingMiddleware:        true,
		EnableSensitivePathsProcessor:  false,
		MaxVerboseOutputLength:         500,
		MaxJSONDataToLog:               0,
		MiddlewareBlocklist:            []string{"/admin", "/swagger"},
		LogResponseContent:             false,
		PreferTextFallbackMasking:      false,
		ShowNestedKeysInSensitivePaths: false,
	}
}

// ConfigFromEnv builds a Config from EDGELOG_* environment variables,
// starting from the defaults. A malformed EDGELOG_MIDDLEWARE_BLOCKLIST is a
// startup error and is returned rather than ignored.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	readEnvBool("ENABLE_OUTBOUND_REQUEST_LOGGING", &cfg.EnableOutboundRequestLogging)
	readEnvBool("ENABLE_LOGGING_MIDDLEWARE", &cfg.EnableLoggingMiddleware)
	readEnvBool("ENABLE_SENSITIVE_PATHS_PROCESSOR", &cfg.EnableSensitivePathsProcessor)
	readEnvBool("LOG_RESPONSE_CONTENT", &cfg.LogResponseContent)
	readEnvBool("PREFER_TEXT_FALLBACK_MASKING", &cfg.PreferTextFallbackMasking)
	readEnvBool("SHOW_NESTED_KEYS_IN_SENSITIVE_PATHS", &cfg.ShowNestedKeysInSensitivePaths)

	if err := readEnvInt("MAX_VERBOSE_OUTPUT_LENGTH", &cfg.MaxVerboseOutputLength); err != nil {
		return nil, err
	}

	if err := readEnvInt("MAX_JSON_DATA_TO_LOG", &cfg.MaxJSONDataToLog); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv(envPrefix + "MIDDLEWARE_BLOCKLIST"); ok {
		blocklist, err := parseBlocklist(v)
		if err != nil {
			return nil, err
		}

		cfg.MiddlewareBlocklist = blocklist
	}

	return cfg, nil
}

// LoadConfig loads the given dotenv files (or ./.env when none are given)
// before reading the environment. Missing dotenv files are not an error; the
// process environment always wins over file values.
func LoadConfig(envFiles ...string) (*Config, error) {
	// godotenv never overrides variables already present in the environment.
	_ = godotenv.Load(envFiles...)

	return ConfigFromEnv()
}

// parseBlocklist accepts either a JSON array of strings or a comma-separated
// list. JSON input that is not an array of strings is rejected.
func parseBlocklist(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	if strings.HasPrefix(v, "[") {
		var list []string

		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return nil, fmt.Errorf("%sMIDDLEWARE_BLOCKLIST must be a list of strings: %w", envPrefix, err)
		}

		return list, nil
	}

	parts := strings.Split(v, ",")
	list := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}

	return list, nil
}

func readEnvBool(name string, dst *bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return
	}

	switch strings.ToLower(v)[0] {
	case 'y', 't', '1':
		*dst = true
	default:
		*dst = false
	}
}

func readEnvInt(name string, dst *int) error {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return nil
	}

	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fmt.Errorf("%s%s must be an integer: %w", envPrefix, name, err)
	}

	*dst = n

	return nil
}
