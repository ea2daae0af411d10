package store

import (
	"os"
	"strconv"
	"strings"
)

// ConfigFromEnv reads the store configuration from environment variables.
//
//	STORE_BACKEND = postgres | qdrant | sqlite (default: postgres)
//
//	Postgres: DATABASE_URL, PG_MIGRATE (default: false)
//	Qdrant:   QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION (default: pubmed),
//	          QDRANT_API_KEY, QDRANT_TLS
//	SQLite:   SQLITE_PATH (default: ~/.pmrag/articles.db)
//
// dimension is the embedding dimension used when a backend creates its
// schema.
func ConfigFromEnv(dimension int) Config {
	return Config{
		Backend:   strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendPostgres)),
		Dimension: dimension,
		Postgres: PostgresConfig{
			DSN:     os.Getenv("DATABASE_URL"),
			Migrate: getEnvBool("PG_MIGRATE"),
		},
		Qdrant: QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "pubmed"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS"),
		},
		SQLitePath: os.Getenv("SQLITE_PATH"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
