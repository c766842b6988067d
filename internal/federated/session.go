package federated

import (
	"sync"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// SessionHandle is an ephemeral, single-owner recorder for one session's
// trajectory. It is invalidated once EndSession has run.
type SessionHandle struct {
	mu              sync.Mutex
	coordinator     *Coordinator
	agentID         string
	capacity        int
	initialPatterns []Pattern
	trajectory      Trajectory
	startedAt       time.Time
	ended           bool
}

// AgentID returns the session's identifier.
func (h *SessionHandle) AgentID() string {
	return h.agentID
}

// InitialPatterns returns the patterns the session warm-started with.
func (h *SessionHandle) InitialPatterns() []Pattern {
	return append([]Pattern(nil), h.initialPatterns...)
}

// RecordTrajectory appends one (activation, reward) step to the
// session's trajectory, optionally setting the trajectory's route label
// on first use. Rejects once the session has ended or its capacity is
// reached.
func (h *SessionHandle) RecordTrajectory(vec []float32, reward float64, route string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ended {
		return coreerrors.ValidationError("session has already ended", nil)
	}
	if len(h.trajectory.Steps) >= h.capacity {
		return coreerrors.CapacityError("trajectory buffer is full", nil)
	}
	if h.trajectory.StartedAt.IsZero() {
		h.trajectory.StartedAt = time.Now()
	}
	if route != "" {
		h.trajectory.RouteLabel = route
	}
	h.trajectory.Steps = append(h.trajectory.Steps, Step{Activation: vec, Reward: reward})
	return nil
}

// EndSession force-learns the session's trajectory into the coordinator
// and returns summary stats. The handle may not be used afterward.
func (h *SessionHandle) EndSession() (SessionStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ended {
		return SessionStats{}, coreerrors.ValidationError("session has already ended", nil)
	}
	h.ended = true

	start := h.trajectory.StartedAt
	if start.IsZero() {
		start = time.Now()
	}

	learned := h.coordinator.Aggregate(h.trajectory)

	return SessionStats{
		TrajectoryCount: len(h.trajectory.Steps),
		AvgQuality:      h.trajectory.Quality(),
		PatternsLearned: learned,
		DurationMs:      time.Since(start).Milliseconds(),
	}, nil
}
