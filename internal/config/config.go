// Package config loads gateway configuration from the environment, grounded
// on saurabh1e-entgo-microservices' godotenv-based .env loading convention.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/stitchgate needs to wire up a gateway.
type Config struct {
	HTTPAddr     string
	LogLevel     string
	LogFilePath  string
	MaxInFlight  int
	RedisAddr    string // empty disables the FieldPlan memo cache
	Subschemas   []SubschemaEndpoint
}

// SubschemaEndpoint names one federated backend, the gRPC address that
// serves it, and the path to a static JSON schema descriptor for it.
// Schemas are config-loaded rather than introspected over the wire, since
// grpcexec's contract (SPEC_FULL.md §6) has no schema-discovery RPC.
type SubschemaEndpoint struct {
	Name       string
	Addr       string
	SchemaPath string
}

// Load reads a .env file (if present; missing is not an error, mirroring
// godotenv.Load's typical use in development) and then env vars, applying
// defaults for anything unset.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{
		HTTPAddr:    getEnv("STITCHGATE_HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("STITCHGATE_LOG_LEVEL", "info"),
		LogFilePath: getEnv("STITCHGATE_LOG_FILE", ""),
		RedisAddr:   getEnv("STITCHGATE_REDIS_ADDR", ""),
	}

	maxInFlight, err := strconv.Atoi(getEnv("STITCHGATE_MAX_IN_FLIGHT", "64"))
	if err != nil {
		maxInFlight = 64
	}
	cfg.MaxInFlight = maxInFlight

	cfg.Subschemas = parseSubschemas(getEnv("STITCHGATE_SUBSCHEMAS", ""))

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// parseSubschemas parses "name1=addr1=schema1.json,name2=addr2=schema2.json"
// into endpoints.
func parseSubschemas(raw string) []SubschemaEndpoint {
	if raw == "" {
		return nil
	}
	var out []SubschemaEndpoint
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if part := raw[start:i]; part != "" {
				if ep, ok := splitEndpoint(part); ok {
					out = append(out, ep)
				}
			}
			start = i + 1
		}
	}
	return out
}

func splitEndpoint(part string) (SubschemaEndpoint, bool) {
	fields := splitN(part, '=', 3)
	if len(fields) < 2 {
		return SubschemaEndpoint{}, false
	}
	ep := SubschemaEndpoint{Name: fields[0], Addr: fields[1]}
	if len(fields) == 3 {
		ep.SchemaPath = fields[2]
	}
	return ep, true
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
