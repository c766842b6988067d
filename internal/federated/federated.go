// Package federated implements the federated session aggregator (C8):
// bounded per-session trajectory recording, cross-session pattern
// consolidation, and optional LoRA-style low-rank adapters applied to
// in-session embeddings.
package federated

import (
	"strings"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// DefaultTrajectoryCapacity and MaxTrajectoryCapacity bound how many
// steps a single session's trajectory may accumulate.
const (
	DefaultTrajectoryCapacity = 10000
	MaxTrajectoryCapacity     = 100000
)

// maxAgentIDLength is the longest accepted session/agent identifier.
const maxAgentIDLength = 256

// Step is one recorded (activation vector, reward) pair within a
// trajectory.
type Step struct {
	Activation []float32
	Reward     float64
}

// Trajectory is the ordered record of one session's activity.
type Trajectory struct {
	SessionID  string
	Steps      []Step
	RouteLabel string
	StartedAt  time.Time
}

// Quality is the trajectory's overall quality: the mean step reward, or
// 0 for a trajectory with no steps.
func (t *Trajectory) Quality() float64 {
	if len(t.Steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range t.Steps {
		sum += s.Reward
	}
	return sum / float64(len(t.Steps))
}

// ValidateAgentID rejects empty, over-long, or null-byte-containing
// identifiers.
func ValidateAgentID(id string) error {
	if id == "" {
		return coreerrors.ValidationError("agent id must not be empty", nil)
	}
	if len(id) > maxAgentIDLength {
		return coreerrors.ValidationError("agent id exceeds the maximum length", nil)
	}
	if strings.ContainsRune(id, 0) {
		return coreerrors.ValidationError("agent id must not contain a null byte", nil)
	}
	return nil
}

// SessionStats summarizes one completed session for the caller.
type SessionStats struct {
	TrajectoryCount int
	AvgQuality      float64
	PatternsLearned int
	DurationMs      int64
}
