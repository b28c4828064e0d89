package config

import (
	"os"
	"strings"
	"time"
)

// Companion captures the per-process configuration for one principal's
// companion. Two principals are two processes with different env, never two
// copies of the code.
type Companion struct {
	Addr        string
	PrincipalID string
	DisplayName string

	// PeerID and PeerEndpoint identify the remote principal this companion
	// negotiates with. A single peer is all the design supports.
	PeerID       string
	PeerEndpoint string

	// DatabaseURL and RedisURL select the session store backend. Both empty
	// means in-memory (dev/demo).
	DatabaseURL string
	RedisURL    string

	// KafkaBrokers, when set, mirrors audit events to a topic.
	KafkaBrokers []string
	AuditTopic   string

	// DispatchTimeout bounds one outbound call including its retry.
	DispatchTimeout time.Duration
	// RetryBackoff is the fixed wait before the single retry.
	RetryBackoff time.Duration

	SeedDemoData bool
}

// PeerDisplayName derives a human-readable peer name from the peer id,
// used in recommendation text when the peer has not shared a name.
func (c Companion) PeerDisplayName() string {
	if c.PeerID == "" {
		return ""
	}
	return strings.ToUpper(c.PeerID[:1]) + c.PeerID[1:]
}

// FromEnv builds a Companion config from environment variables so main
// stays lean.
func FromEnv() Companion {
	cfg := Companion{
		Addr:            envOr("COMPANION_ADDR", ":8001"),
		PrincipalID:     envOr("COMPANION_PRINCIPAL_ID", "alice"),
		DisplayName:     envOr("COMPANION_DISPLAY_NAME", "Alice"),
		PeerID:          envOr("COMPANION_PEER_ID", "bob"),
		PeerEndpoint:    envOr("COMPANION_PEER_ENDPOINT", "http://localhost:8002/run"),
		DatabaseURL:     os.Getenv("COMPANION_DATABASE_URL"),
		RedisURL:        os.Getenv("COMPANION_REDIS_URL"),
		AuditTopic:      envOr("COMPANION_AUDIT_TOPIC", "companion.audit"),
		DispatchTimeout: durationOr("COMPANION_DISPATCH_TIMEOUT", 10*time.Second),
		RetryBackoff:    durationOr("COMPANION_RETRY_BACKOFF", 500*time.Millisecond),
		SeedDemoData:    os.Getenv("COMPANION_SEED_DEMO") != "false",
	}
	if brokers := os.Getenv("COMPANION_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
