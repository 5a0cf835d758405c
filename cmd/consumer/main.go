package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-sharing/internal/config"
	"github.com/example/ride-sharing/internal/events"
	"github.com/example/ride-sharing/internal/logging"
	"github.com/example/ride-sharing/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	p := &projector{rc: radapter, prefix: cfg.RedisStatsPrefix, attempts: cfg.RetryAttempts, delay: cfg.RetryDelay}
	consume(ctx, r, p, logger)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func consume(ctx context.Context, r messageReader, p *projector, logger *slog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				logger.Info("shutting down consumer")
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		ev, err := events.Decode(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err)
			continue
		}

		if err := p.apply(ctx, ev); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "ride_id", ev.RideID, "type", ev.Type, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// StatsUpdater defines the small subset of redis operations we need for tests and production.
type StatsUpdater interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return r.c.HIncrBy(ctx, key, field, incr).Err()
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

// projector keeps per-user counters and per-ride status hashes in Redis for
// external reporting.
type projector struct {
	rc       StatsUpdater
	prefix   string
	attempts int
	delay    time.Duration
}

func (p *projector) userKey(id string) string { return p.prefix + "user:" + id }
func (p *projector) rideKey(id string) string { return p.prefix + "ride:" + id }

// apply runs each step of ev with its own retries so a retried step never
// repeats an increment that already succeeded.
func (p *projector) apply(ctx context.Context, ev models.RideEvent) error {
	var steps []func() error
	switch ev.Type {
	case models.EventRideOffered:
		steps = append(steps,
			func() error { return p.rc.HIncrBy(ctx, p.userKey(ev.UserID), "offered_rides", 1) },
			func() error {
				return p.rc.HSet(ctx, p.rideKey(ev.RideID), map[string]interface{}{
					"status": string(models.RideActive), "owner_id": ev.UserID, "origin": ev.Origin,
					"destination": ev.Destination, "offered_seats": ev.Seats,
				})
			},
		)
	case models.EventRideSelected:
		steps = append(steps,
			func() error { return p.rc.HIncrBy(ctx, p.userKey(ev.UserID), "taken_rides", 1) },
			func() error { return p.rc.HIncrBy(ctx, p.rideKey(ev.RideID), "reserved_seats", int64(ev.Seats)) },
		)
	case models.EventRideEnded:
		steps = append(steps, func() error {
			return p.rc.HSet(ctx, p.rideKey(ev.RideID), map[string]interface{}{"status": string(models.RideEnded)})
		})
	case models.EventRideCancelled:
		steps = append(steps, func() error {
			return p.rc.HSet(ctx, p.rideKey(ev.RideID), map[string]interface{}{"status": string(models.RideCancelled)})
		})
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	for _, step := range steps {
		if err := withRetry(ctx, p.attempts, p.delay, step); err != nil {
			return err
		}
	}
	return nil
}

// withRetry calls fn up to attempts times, doubling delay between failures.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
