// Package routes wires the JSON API. Handlers stay thin: parse,
// authorize, call into the engine, map errors to status codes.
package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/runcoach/internal/auth"
	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/contextbuilder"
	"github.com/briangreenhill/runcoach/internal/decision"
	appmw "github.com/briangreenhill/runcoach/internal/http/middleware"
	"github.com/briangreenhill/runcoach/internal/jobs"
	"github.com/briangreenhill/runcoach/internal/metrics"
	"github.com/briangreenhill/runcoach/internal/store"
)

// tokenTTL is how long an issued bearer token stays valid.
const tokenTTL = 90 * 24 * time.Hour

type Server struct {
	Router    *chi.Mux
	Store     *store.Store
	Orch      *decision.Orchestrator
	Tokens    auth.Tokens
	RedisAddr string
	Log       zerolog.Logger
}

type ServerOptions struct {
	Store  *store.Store
	Orch   *decision.Orchestrator
	Tokens auth.Tokens
	Cfg    config.Config
	Log    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:    r,
		Store:     opts.Store,
		Orch:      opts.Orch,
		Tokens:    opts.Tokens,
		RedisAddr: opts.Cfg.RedisAddr,
		Log:       opts.Log,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/athletes", s.handleCreateAthlete)

		v1.Group(func(pr chi.Router) {
			pr.Use(appmw.Bearer(s.Tokens))
			pr.Route("/athletes/{athleteID}", func(ar chi.Router) {
				ar.Use(appmw.RequireAthlete)
				ar.Post("/decisions/today", s.handleDecideToday)
				ar.Get("/decisions/{date}", s.handleGetDecision)
				ar.Post("/decisions/{date}/response", s.handleSessionResponse)
				ar.Post("/wellness", s.handleUpsertWellness)
				ar.Post("/runs", s.handleCreateRun)
				ar.Post("/adaptation/run", s.handleTriggerAdaptation)
			})
		})
	})

	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func athleteID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "athleteID"))
}

func dateParam(r *http.Request) (time.Time, error) {
	return time.Parse("2006-01-02", chi.URLParam(r, "date"))
}

func (s *Server) handleCreateAthlete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string     `json:"name"`
		Email    *string    `json:"email"`
		Goal     *string    `json:"goal"`
		RaceDate *time.Time `json:"race_date"`
		HRMax    int32      `json:"hr_max"`
		HRRest   int32      `json:"hr_rest"`
		Tz       string     `json:"tz"`
		Lat      *float64   `json:"lat"`
		Lon      *float64   `json:"lon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.HRMax <= 0 || req.HRRest <= 0 || req.HRRest >= req.HRMax {
		writeError(w, http.StatusBadRequest, "name and a valid hr_rest < hr_max are required")
		return
	}
	if req.Tz == "" {
		req.Tz = "UTC"
	} else if _, err := time.LoadLocation(req.Tz); err != nil {
		writeError(w, http.StatusBadRequest, "unknown tz")
		return
	}

	a, err := s.Store.CreateAthlete(r.Context(), store.Athlete{
		Name:     req.Name,
		Email:    req.Email,
		Goal:     req.Goal,
		RaceDate: req.RaceDate,
		HRMax:    req.HRMax,
		HRRest:   req.HRRest,
		Tz:       req.Tz,
		Lat:      req.Lat,
		Lon:      req.Lon,
	})
	if err != nil {
		s.Log.Error().Err(err).Msg("create athlete")
		writeError(w, http.StatusInternalServerError, "could not create athlete")
		return
	}

	token := s.Tokens.Sign(a.ID.String(), time.Now().Add(tokenTTL))
	writeJSON(w, http.StatusCreated, map[string]any{"athlete": a, "token": token})
}

// handleDecideToday computes (or returns the cached) decision for the
// athlete's current local day. An optional body carries force_refresh
// and a manual wellness override.
func (s *Server) handleDecideToday(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}

	var req struct {
		Date           string                         `json:"date"`
		ForceRefresh   bool                           `json:"force_refresh"`
		ManualWellness *contextbuilder.ManualWellness `json:"manual_wellness"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ManualWellness != nil {
		if err := req.ManualWellness.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	a, err := s.Store.GetAthlete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "athlete not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load athlete")
		return
	}
	day := localToday(a.Tz)
	if req.Date != "" {
		day, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	env, err := s.Orch.Decide(r.Context(), id, day, decision.Options{
		ForceRefresh:   req.ForceRefresh,
		ManualWellness: req.ManualWellness,
	})
	switch {
	case errors.Is(err, decision.ErrNotPersisted):
		// the decision is usable right now, the caller just cannot rely
		// on the cache for it
		writeJSON(w, http.StatusOK, env)
	case errors.Is(err, decision.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "no decision available, try again shortly",
			"retry": true,
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, env)
	}
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}
	day, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	env, err := s.Orch.Get(r.Context(), id, day)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no decision for that day")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// handleSessionResponse records what the athlete did with the day's
// recommendation. Responses are append-only.
func (s *Server) handleSessionResponse(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}
	day, err := dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var req struct {
		Response string  `json:"response"`
		Note     *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	switch req.Response {
	case "accepted", "declined", "modified":
	default:
		writeError(w, http.StatusBadRequest, "response must be accepted, declined or modified")
		return
	}

	dec, err := s.Store.GetDailyDecision(r.Context(), id, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if dec == nil {
		writeError(w, http.StatusNotFound, "no decision for that day")
		return
	}

	mod, err := s.Store.InsertSessionModification(r.Context(), store.SessionModification{
		AthleteID:  id,
		DecisionID: dec.ID,
		Response:   req.Response,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not record response")
		return
	}
	writeJSON(w, http.StatusCreated, mod)
}

// handleUpsertWellness stores one day of wellness data and recomputes
// the rolling baseline from the trailing 30 days.
func (s *Server) handleUpsertWellness(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}

	var req struct {
		Day           string   `json:"day"`
		HRV           *float64 `json:"hrv"`
		RestingHR     *float64 `json:"resting_hr"`
		SleepScore    *float64 `json:"sleep_score"`
		DeepSleepMin  *int32   `json:"deep_sleep_min"`
		RemSleepMin   *int32   `json:"rem_sleep_min"`
		LightSleepMin *int32   `json:"light_sleep_min"`
		SelfReported  bool     `json:"self_reported"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	day, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	if req.SleepScore != nil && (*req.SleepScore < 0 || *req.SleepScore > 100) {
		writeError(w, http.StatusBadRequest, "sleep_score must be 0-100")
		return
	}

	sample := store.WellnessSample{
		AthleteID:     id,
		Day:           day,
		HRV:           req.HRV,
		RestingHR:     req.RestingHR,
		SleepScore:    req.SleepScore,
		DeepSleepMin:  req.DeepSleepMin,
		RemSleepMin:   req.RemSleepMin,
		LightSleepMin: req.LightSleepMin,
		SelfReported:  req.SelfReported,
	}
	if err := s.Store.UpsertWellnessSample(r.Context(), sample); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store sample")
		return
	}

	if err := s.recomputeBaseline(r, id, day); err != nil {
		// the sample is stored; a stale baseline corrects itself on the
		// next write
		s.Log.Warn().Err(err).Str("athlete", id.String()).Msg("baseline recompute failed")
	}
	writeJSON(w, http.StatusOK, sample)
}

func (s *Server) recomputeBaseline(r *http.Request, id uuid.UUID, day time.Time) error {
	from := day.AddDate(0, 0, -30)
	samples, err := s.Store.ListWellnessRange(r.Context(), id, from, day.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	b := store.Baseline{AthleteID: id, ComputedAt: time.Now().UTC()}
	b.HRV = meanOf(samples, func(s store.WellnessSample) *float64 { return s.HRV })
	b.RestingHR = meanOf(samples, func(s store.WellnessSample) *float64 { return s.RestingHR })
	b.SleepScore = meanOf(samples, func(s store.WellnessSample) *float64 { return s.SleepScore })
	return s.Store.UpsertBaseline(r.Context(), b)
}

func meanOf(samples []store.WellnessSample, pick func(store.WellnessSample) *float64) *float64 {
	sum, n := 0.0, 0
	for _, s := range samples {
		if v := pick(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// handleCreateRun records a completed run. Stress and session type are
// derived server side when the client does not supply a type.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}

	var req struct {
		StartedAt   time.Time `json:"started_at"`
		DistanceKm  float64   `json:"distance_km"`
		DurationSec int32     `json:"duration_sec"`
		AvgHR       *int32    `json:"avg_hr"`
		SessionType string    `json:"session_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StartedAt.IsZero() || req.DistanceKm <= 0 || req.DurationSec <= 0 {
		writeError(w, http.StatusBadRequest, "started_at, distance_km and duration_sec are required")
		return
	}

	a, err := s.Store.GetAthlete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load athlete")
		return
	}

	sessionType := req.SessionType
	if sessionType == "" {
		sessionType = metrics.InferSessionType(req.DistanceKm, req.DurationSec, req.AvgHR, a.HRRest, a.HRMax)
	}
	rec, err := s.Store.InsertTrainingRecord(r.Context(), store.TrainingRecord{
		AthleteID:   id,
		StartedAt:   req.StartedAt,
		DistanceKm:  req.DistanceKm,
		DurationSec: req.DurationSec,
		AvgHR:       req.AvgHR,
		Stress:      metrics.TrainingStress(req.DurationSec, req.AvgHR, a.HRRest, a.HRMax),
		SessionType: sessionType,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store run")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleTriggerAdaptation enqueues the weekly adaptation for this
// athlete instead of waiting for the scheduler.
func (s *Server) handleTriggerAdaptation(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid athlete id")
		return
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: s.RedisAddr})
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			s.Log.Warn().Err(closeErr).Msg("closing asynq client")
		}
	}()

	payload, _ := json.Marshal(jobs.AdaptAthletePayload{AthleteID: id.String()})
	task := asynq.NewTask(jobs.TaskAdaptAthlete, payload)
	info, err := client.Enqueue(task,
		asynq.Queue("adapt"),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		s.Log.Error().Err(err).Msg("enqueue adaptation")
		writeError(w, http.StatusInternalServerError, "could not enqueue")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

// localToday is the athlete's current calendar day. An unknown zone
// falls back to UTC rather than failing the request.
func localToday(tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
