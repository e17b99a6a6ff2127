package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/runcoach/internal/adaptation"
	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/jobs"
	"github.com/briangreenhill/runcoach/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database:", err)
	}
	defer pool.Close()
	st := store.New(pool)
	loop := adaptation.New(st, cfg.Policy, logger)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpt)
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing asynq client: %v", closeErr)
		}
	}()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    8,
		StrictPriority: false,
		Queues: map[string]int{
			"adapt":   10, // higher priority
			"default": 5,  // default priority
		},
	})
	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskAdaptFanout, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.AdaptFanoutPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				log.Printf("[asynq] bad payload: %v", err)
				return err
			}
		}
		athletes, err := st.ListAthletesWithActivePlan(ctx)
		if err != nil {
			log.Printf("[adapt] list athletes: %v", err)
			return err
		}
		enqueued := 0
		for _, a := range athletes {
			payload, _ := json.Marshal(jobs.AdaptAthletePayload{AthleteID: a.ID.String(), AsOfUnix: p.AsOfUnix})
			task := asynq.NewTask(jobs.TaskAdaptAthlete, payload)
			if _, err := client.EnqueueContext(ctx, task, asynq.Queue("adapt"), asynq.MaxRetry(3)); err != nil {
				log.Printf("[adapt] enqueue athlete=%s failed: %v", a.ID, err)
				continue
			}
			enqueued++
		}
		log.Printf("[adapt] fanout enqueued %d of %d athletes", enqueued, len(athletes))
		return nil
	})

	mux.HandleFunc(jobs.TaskAdaptAthlete, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.AdaptAthletePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Printf("[asynq] bad payload: %v", err)
			return err
		}
		aid, err := uuid.Parse(p.AthleteID)
		if err != nil {
			log.Printf("[adapt] bad athlete id %q (dropping job)", p.AthleteID)
			return nil
		}
		asOf := time.Now().UTC()
		if p.AsOfUnix != 0 {
			asOf = time.Unix(p.AsOfUnix, 0).UTC()
		}

		log.Printf("[adapt] start athlete=%s", p.AthleteID)
		start := time.Now()
		rec, err := loop.RunWeekly(ctx, aid, asOf)
		duration := time.Since(start)

		if err != nil {
			if isRetryableError(err) {
				log.Printf("[adapt] retryable error athlete=%s duration=%v: %v", p.AthleteID, duration, err)
				return err // allow retry
			}
			log.Printf("[adapt] permanent error athlete=%s duration=%v: %v (dropping job)", p.AthleteID, duration, err)
			return nil // don't retry permanent failures
		}
		log.Printf("[adapt] done athlete=%s week=%s outcome=%s duration=%v",
			p.AthleteID, rec.WeekStart.Format("2006-01-02"), rec.Outcome, duration)
		return nil
	})

	// every Monday morning, run the adaptation for everyone
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register("0 6 * * 1",
		asynq.NewTask(jobs.TaskAdaptFanout, nil),
		asynq.Queue("adapt"),
	); err != nil {
		log.Fatalf("register schedule: %v", err)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
	}()

	log.Println("Worker running...")
	log.Fatal(srv.Run(mux))
}

// isRetryableError determines if an error should trigger a job retry
func isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())

	// Network/connectivity issues - should retry
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dns") {
		return true
	}

	// Postgres hiccups - should retry
	if strings.Contains(errStr, "too many clients") ||
		strings.Contains(errStr, "deadlock") {
		return true
	}

	// Everything else (closed weeks, bad data, etc.) - don't retry
	return false
}
