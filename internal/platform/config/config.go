// Package config builds process configuration from the environment so main
// stays lean. Verification thresholds that the product treats as tunable are
// surfaced here; empirically chosen constants stay with their owning package.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server captures everything cmd/server needs to wire the process.
type Server struct {
	Addr string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers    []string
	KafkaAlertTopic string

	SMTP SMTP

	JWTSigningKey string

	// TemplateKey is the process-wide symmetric key for biometric template
	// encryption, base64 raw-std encoded, 32 bytes decoded.
	TemplateKey []byte

	EmbeddingServiceURL string
	FaceMinSimilarity   float64

	// TrustedNetworks are CIDR prefixes treated as on-premises for geofencing.
	TrustedNetworks []string

	VoucherTTL      time.Duration
	ShutdownTimeout time.Duration
}

// SMTP configures the alert email notifier. A zero Host disables email.
type SMTP struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	AdminEmail string
}

// Load reads configuration from ROLLCALL_* environment variables with sane
// development defaults.
func Load() (Server, error) {
	v := viper.New()
	v.SetEnvPrefix("rollcall")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_alert_topic", "rollcall.security.alerts")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "alerts@rollcall.local")
	v.SetDefault("admin_email", "")
	v.SetDefault("jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("template_key", "")
	v.SetDefault("embedding_service_url", "http://localhost:8501/embeddings")
	v.SetDefault("face_min_similarity", 0.80)
	v.SetDefault("trusted_networks", "192.168.1.0/24,10.0.0.0/24,127.0.0.1/32")
	v.SetDefault("voucher_ttl", "120s")
	v.SetDefault("shutdown_timeout", "10s")

	cfg := Server{
		Addr:                v.GetString("addr"),
		PostgresDSN:         v.GetString("postgres_dsn"),
		RedisURL:            v.GetString("redis_url"),
		KafkaAlertTopic:     v.GetString("kafka_alert_topic"),
		JWTSigningKey:       v.GetString("jwt_signing_key"),
		EmbeddingServiceURL: v.GetString("embedding_service_url"),
		FaceMinSimilarity:   v.GetFloat64("face_min_similarity"),
		VoucherTTL:          v.GetDuration("voucher_ttl"),
		ShutdownTimeout:     v.GetDuration("shutdown_timeout"),
		SMTP: SMTP{
			Host:       v.GetString("smtp_host"),
			Port:       v.GetInt("smtp_port"),
			User:       v.GetString("smtp_user"),
			Password:   v.GetString("smtp_password"),
			From:       v.GetString("smtp_from"),
			AdminEmail: v.GetString("admin_email"),
		},
	}

	if brokers := v.GetString("kafka_brokers"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	cfg.TrustedNetworks = splitAndTrim(v.GetString("trusted_networks"))

	if encoded := v.GetString("template_key"); encoded != "" {
		key, err := base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return Server{}, fmt.Errorf("decode template key: %w", err)
		}
		if len(key) != 32 {
			return Server{}, fmt.Errorf("template key must decode to 32 bytes, got %d", len(key))
		}
		cfg.TemplateKey = key
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
