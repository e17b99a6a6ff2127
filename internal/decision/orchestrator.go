// Package decision is the daily entry point of the coaching engine: it
// enforces the one-decision-per-day cache, builds the context snapshot
// on a miss, invokes the external capability and persists the result.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/runcoach/internal/capability"
	"github.com/briangreenhill/runcoach/internal/contextbuilder"
	"github.com/briangreenhill/runcoach/internal/store"
)

var (
	// ErrUnavailable means no decision could be produced; the caller
	// should retry later. Nothing was persisted, so any prior cached
	// decision remains authoritative.
	ErrUnavailable = errors.New("decision temporarily unavailable")

	// ErrNotPersisted means a decision was produced but could not be
	// durably cached; a retry will recompute.
	ErrNotPersisted = errors.New("decision not durably cached")
)

// Store is the cache surface. *store.Store satisfies it.
type Store interface {
	GetDailyDecision(ctx context.Context, athleteID uuid.UUID, day time.Time) (*store.DailyDecision, error)
	UpsertDailyDecision(ctx context.Context, d store.DailyDecision) (store.DailyDecision, error)
}

// ContextBuilder is satisfied by *contextbuilder.Builder.
type ContextBuilder interface {
	Build(ctx context.Context, athleteID uuid.UUID, day time.Time, override *contextbuilder.ManualWellness) (contextbuilder.DailyContext, error)
}

// Capability is satisfied by *capability.Client.
type Capability interface {
	Decide(ctx context.Context, dailyContext any) (capability.Result, []byte, error)
}

// Envelope is what callers get back: the capability payload verbatim
// plus cache provenance flags.
type Envelope struct {
	AthleteID      string          `json:"athlete_id"`
	Date           string          `json:"date"`
	Action         string          `json:"action"`
	RecoveryScore  int32           `json:"recovery_score"`
	RecoveryStatus string          `json:"recovery_status"`
	Result         json.RawMessage `json:"result"`
	Cached         bool            `json:"cached"`
	DurablyCached  bool            `json:"durably_cached"`
}

// Options modify one Decide call.
type Options struct {
	// ForceRefresh bypasses the cache and overwrites the stored
	// decision. It is the only way past a cached row; there is no TTL
	// within a day.
	ForceRefresh bool
	// ManualWellness replaces device wellness for the day (see
	// contextbuilder.ManualWellness). It only takes effect when a
	// decision is actually computed: a cached decision is returned
	// unchanged, so callers wanting the check-in reflected must set
	// ForceRefresh alongside it.
	ManualWellness *contextbuilder.ManualWellness
}

// Orchestrator computes at most one decision per (athlete, day).
type Orchestrator struct {
	store      Store
	builder    ContextBuilder
	capability Capability
	timeout    time.Duration
	log        zerolog.Logger

	locks keyedLocks
}

func New(st Store, builder ContextBuilder, capab Capability, timeout time.Duration, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      st,
		builder:    builder,
		capability: capab,
		timeout:    timeout,
		log:        log,
	}
}

// Decide returns the decision for (athlete, day), computing it if
// needed. Concurrent calls for the same key are serialized in-process so
// the external capability runs at most once per miss; across processes
// the store upsert stays last-write-wins.
func (o *Orchestrator) Decide(ctx context.Context, athleteID uuid.UUID, day time.Time, opts Options) (Envelope, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	key := athleteID.String() + "|" + day.Format("2006-01-02")

	unlock := o.locks.lock(key)
	defer unlock()

	if !opts.ForceRefresh {
		cached, err := o.store.GetDailyDecision(ctx, athleteID, day)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if cached != nil {
			return envelopeFrom(*cached, true, true), nil
		}
	}

	dc, err := o.builder.Build(ctx, athleteID, day, opts.ManualWellness)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	capCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	result, raw, err := o.capability.Decide(capCtx, dc)
	if err != nil {
		o.log.Error().Err(err).Str("athlete", athleteID.String()).Msg("capability call failed")
		return Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// the capability client already validated; re-check before anything
	// is persisted so a misbehaving implementation cannot slip through
	if err := result.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	row := store.DailyDecision{
		AthleteID:      athleteID,
		Day:            day,
		Action:         result.Decision.Action,
		RecoveryScore:  int32(result.RecoveryAssessment.OverallScore),
		RecoveryStatus: result.RecoveryAssessment.Status,
		Payload:        raw,
	}
	stored, err := o.store.UpsertDailyDecision(ctx, row)
	if err != nil {
		o.log.Error().Err(err).Str("athlete", athleteID.String()).Msg("decision not persisted")
		// still usable right now, but a retry must recompute
		return envelopeFrom(row, false, false), fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return envelopeFrom(stored, false, true), nil
}

// Get returns a previously computed decision without ever computing one.
func (o *Orchestrator) Get(ctx context.Context, athleteID uuid.UUID, day time.Time) (Envelope, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	cached, err := o.store.GetDailyDecision(ctx, athleteID, day)
	if err != nil {
		return Envelope{}, err
	}
	if cached == nil {
		return Envelope{}, store.ErrNotFound
	}
	return envelopeFrom(*cached, true, true), nil
}

func envelopeFrom(d store.DailyDecision, cached, durable bool) Envelope {
	return Envelope{
		AthleteID:      d.AthleteID.String(),
		Date:           d.Day.Format("2006-01-02"),
		Action:         d.Action,
		RecoveryScore:  d.RecoveryScore,
		RecoveryStatus: d.RecoveryStatus,
		Result:         json.RawMessage(d.Payload),
		Cached:         cached,
		DurablyCached:  durable,
	}
}
