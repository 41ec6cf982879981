package starmap

import (
	"fmt"
	"log"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Config carries everything the viewer needs to reach the backend.
// The token is persisted by the separate login flow; the viewer reads
// it and never writes it.
type Config struct {
	BackendURL string
	StreamURL  string
	Token      string
	CacheDir   string

	// Attribution extracted from the token claims.
	UserID   int64
	Username string
}

// LoadConfig reads .env (when present) and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	cfg := &Config{
		BackendURL: envOr("STARMAP_BACKEND_URL", "http://127.0.0.1:8000"),
		StreamURL:  envOr("STARMAP_STREAM_URL", "ws://127.0.0.1:8000/stars/stream"),
		Token:      os.Getenv("STARMAP_TOKEN"),
		CacheDir:   envOr("STARMAP_CACHE_DIR", "data/star-cache"),
	}
	if cfg.Token != "" {
		if err := cfg.readTokenClaims(); err != nil {
			return nil, fmt.Errorf("reading token claims: %w", err)
		}
	}
	return cfg, nil
}

// readTokenClaims extracts user_id and username from the bearer token.
// The token is parsed unverified: validation is the server's job, the
// viewer only needs the attribution fields for create requests.
func (c *Config) readTokenClaims() error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return err
	}
	if v, ok := claims["user_id"].(float64); ok {
		c.UserID = int64(v)
	}
	if v, ok := claims["username"].(string); ok {
		c.Username = v
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
