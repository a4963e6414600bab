// Command server wires the attendance verification pipeline and serves the
// HTTP API. Every backing store falls back to an in-memory implementation when
// its external system is not configured, so a bare `go run ./cmd/server`
// brings up a working single-process instance.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/twmb/franz-go/pkg/kgo"

	"rollcall/internal/alert"
	alertstore "rollcall/internal/alert/store"
	"rollcall/internal/attendance"
	attendancemetrics "rollcall/internal/attendance/metrics"
	attendancestore "rollcall/internal/attendance/store"
	"rollcall/internal/auth"
	authstore "rollcall/internal/auth/store"
	"rollcall/internal/biometric"
	biometricstore "rollcall/internal/biometric/store"
	"rollcall/internal/geofence"
	"rollcall/internal/liveness"
	"rollcall/internal/lockout"
	lockoutstore "rollcall/internal/lockout/store"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/postgres"
	platformredis "rollcall/internal/platform/redis"
	"rollcall/internal/ratelimit"
	"rollcall/internal/session"
	sessionstore "rollcall/internal/session/store"
	"rollcall/internal/threat"
	threatmetrics "rollcall/internal/threat/metrics"
	httptransport "rollcall/internal/transport/http"
	"rollcall/internal/voucher"
	voucherstore "rollcall/internal/voucher/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		authStore       auth.UserStore         = authstore.NewInMemoryStore()
		sessionStore    session.Store          = sessionstore.NewInMemoryStore()
		voucherStore    voucher.Store          = voucherstore.NewInMemory()
		biometricStore  biometric.Store        = biometricstore.NewInMemoryStore()
		lockoutStore    lockout.Store          = lockoutstore.NewInMemoryStore()
		alertStore      alert.Store            = alertstore.NewInMemoryStore()
		attendanceStore attendance.RecordStore = attendancestore.NewInMemoryStore()
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		authStore = authstore.NewPostgres(db)
		sessionStore = sessionstore.NewPostgres(db)
		voucherStore = voucherstore.NewPostgres(db)
		biometricStore = biometricstore.NewPostgres(db)
		lockoutStore = lockoutstore.NewPostgres(db)
		alertStore = alertstore.NewPostgres(db)
		attendanceStore = attendancestore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		log.Warn("no postgres configured, state is in-memory only")
	}

	var windowStore ratelimit.WindowStore = ratelimit.NewInMemoryWindowStore()
	if cfg.RedisURL != "" {
		rdb, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		windowStore = ratelimit.NewRedisWindowStore(rdb.Client)
		log.Info("using redis rate-limit windows")
	}

	limiter, err := ratelimit.New(windowStore, ratelimit.WithLogger(log))
	if err != nil {
		return err
	}
	lockouts, err := lockout.New(lockoutStore, lockout.WithLogger(log))
	if err != nil {
		return err
	}

	templateKey := cfg.TemplateKey
	if templateKey == nil {
		templateKey = make([]byte, 32)
		if _, err := rand.Read(templateKey); err != nil {
			return err
		}
		log.Warn("no template key configured, biometric templates will not survive a restart")
	}
	codec, err := biometric.NewCodec(templateKey)
	if err != nil {
		return err
	}
	faces, err := biometric.New(
		biometricStore,
		biometric.NewHTTPExtractor(cfg.EmbeddingServiceURL),
		codec,
		lockouts,
		biometric.WithLogger(log),
		biometric.WithThreshold(cfg.FaceMinSimilarity),
	)
	if err != nil {
		return err
	}

	alertOpts := []alert.Option{alert.WithLogger(log)}
	if cfg.SMTP.Host != "" && cfg.SMTP.AdminEmail != "" {
		alertOpts = append(alertOpts, alert.WithSink(alert.NewEmailSink(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password,
			cfg.SMTP.From, cfg.SMTP.AdminEmail,
		)))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.KafkaAlertTopic),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		alertOpts = append(alertOpts, alert.WithSink(alert.NewKafkaSink(kafkaClient, cfg.KafkaAlertTopic)))
	}
	alerts := alert.New(alertStore, alertOpts...)
	defer alerts.Flush()

	threats, err := threat.NewEngine(alerts, lockouts,
		threat.WithLogger(log), threat.WithMetrics(threatmetrics.New()))
	if err != nil {
		return err
	}

	sessions, err := session.New(sessionStore, session.WithLogger(log))
	if err != nil {
		return err
	}
	go session.NewSweeper(sessions, log).Run(ctx)

	vouchers, err := voucher.New(voucherStore,
		voucher.WithLogger(log), voucher.WithTTL(cfg.VoucherTTL))
	if err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), auth.DefaultTokenTTL)
	if err != nil {
		return err
	}
	authSvc, err := auth.New(authStore, lockouts, issuer, auth.WithLogger(log))
	if err != nil {
		return err
	}

	trusted, err := geofence.ParseTrustedNetworks(cfg.TrustedNetworks)
	if err != nil {
		return err
	}
	marker, err := attendance.New(
		sessions,
		vouchers,
		faces,
		liveness.NewDetector(liveness.WithLogger(log)),
		limiter,
		lockouts,
		threats,
		attendanceStore,
		attendance.WithLogger(log),
		attendance.WithMetrics(attendancemetrics.New()),
		attendance.WithTrustedNetworks(trusted),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(authSvc, vouchers, marker, faces, alertStore, cfg.VoucherTTL, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, issuer, log))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
