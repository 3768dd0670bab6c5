package backend

import "github.com/empathyphone/aitalk/internal/config"

// ConfigFrom maps the backend section of the runtime config.
func ConfigFrom(b config.BackendConfig) Config {
	return Config{
		URL:            b.URL,
		HealthPath:     b.HealthPath,
		ConnectTimeout: b.ConnectTimeout(),
		ReadTimeout:    b.ReadTimeout(),
		WriteTimeout:   b.WriteTimeout(),
		RetryDelay:     b.RetryDelay(),
		MaxAttempts:    b.MaxAttempts,
		TextField:      b.TextField,
	}
}
