package env

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an integer setting, falling back to def on empty or invalid values.
func GetEnvInt(key string, def int) int {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("env: invalid integer for %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

// GetEnvBool accepts 1/0, true/false, yes/no.
func GetEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(GetEnv(key, ""))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func SetupEnvFile() {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/vahana to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	// Containers usually inject configuration directly
	Env = map[string]string{}
	log.Printf("No .env file found, using process environment only")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
