package jobs

const (
	// TaskAdaptFanout enqueues one TaskAdaptAthlete per athlete with an
	// active plan. Emitted weekly by the scheduler or on demand.
	TaskAdaptFanout = "adapt:fanout"

	// TaskAdaptAthlete runs the weekly adaptation loop for one athlete.
	TaskAdaptAthlete = "adapt:athlete"
)

type AdaptFanoutPayload struct {
	AsOfUnix int64 `json:"as_of_unix,omitempty"`
}

type AdaptAthletePayload struct {
	AthleteID string `json:"athlete_id"`
	AsOfUnix  int64  `json:"as_of_unix,omitempty"`
}
