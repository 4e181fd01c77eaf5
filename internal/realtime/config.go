package realtime

import "clipflow"

// Config is read from the same environment as the API so both agree on the tenant subject and
// the token secret.
type Config struct {
	Mode         string
	NatsURL      string
	TenantID     string
	JWTSecret    string
	RealtimePort string
}

func LoadConfig() Config {
	return Config{
		Mode:         clipflow.GetEnv("RUN_MODE", "dev"),
		NatsURL:      clipflow.GetEnv("NATS_URL", "nats://localhost:4222"),
		TenantID:     clipflow.GetEnv("TENANT_ID", "default"),
		JWTSecret:    clipflow.GetEnv("JWT_SECRET", ""),
		RealtimePort: clipflow.GetEnv("REALTIME_PORT", ":8081"),
	}
}
