package risk

import (
	"math"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

// Profile is the per-user behavioral baseline, computed on demand from all
// recorded session behavior. It is derived state and never persisted.
type Profile struct {
	AvgActions    float64
	StdActions    float64
	AvgDownloads  float64
	AvgDuration   float64
	TotalSessions int
}

// DefaultProfile is the lenient baseline for users with no history, so a
// first session is not flagged as anomalous across the board.
func DefaultProfile() Profile {
	return Profile{
		AvgActions:   DefaultAvgActions,
		StdActions:   DefaultStdActions,
		AvgDownloads: DefaultAvgDownloads,
		AvgDuration:  DefaultAvgDuration,
	}
}

// BuildUserProfile derives the baseline from every session_behavior document
// recorded for the user. Zero means fall back to the bootstrap defaults, and
// the standard deviation is floored at 1 to keep z-scores finite.
func BuildUserProfile(db *docstore.Store, userID string) Profile {
	sessions := db.C(domain.ColSessionBehavior).Find(docstore.Query{"user_id": userID}).All()
	if len(sessions) == 0 {
		return DefaultProfile()
	}

	actions := make([]float64, 0, len(sessions))
	downloads := make([]float64, 0, len(sessions))
	durations := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		actions = append(actions, docstore.F64(s, "action_count"))
		downloads = append(downloads, docstore.F64(s, "download_count"))
		durations = append(durations, docstore.F64(s, "duration_minutes"))
	}

	return Profile{
		AvgActions:    meanOr(actions, DefaultAvgActions),
		StdActions:    stdDev(actions),
		AvgDownloads:  meanOr(downloads, DefaultAvgDownloads),
		AvgDuration:   meanOr(durations, DefaultAvgDuration),
		TotalSessions: len(sessions),
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// meanOr substitutes def when the mean is zero, mirroring the bootstrap
// behavior: an all-zero history is no baseline at all.
func meanOr(vals []float64, def float64) float64 {
	if m := mean(vals); m != 0 {
		return m
	}
	return def
}

// stdDev is the population standard deviation, floored at 1; with fewer than
// two samples it falls back to the default spread.
func stdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return DefaultStdActions
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Max(1, math.Sqrt(sum/float64(len(vals))))
}
