// Package risk implements the scoring and adaptive-decision engine: seven
// weighted risk components compared against a per-user behavioral baseline,
// combined into a single score that drives an allow / re-authenticate /
// block decision.
package risk

// Component factor names. Breakdown order follows factorOrder.
const (
	FactorTimeDeviation       = "time_deviation"
	FactorDeviceMismatch      = "device_mismatch"
	FactorIPLocation          = "ip_location"
	FactorBehavioralAnomaly   = "behavioral_anomaly"
	FactorDownloadSpike       = "download_spike"
	FactorUnauthorizedService = "unauthorized_service"
	FactorLoginAttempts       = "login_attempts"
)

var factorOrder = []string{
	FactorTimeDeviation,
	FactorDeviceMismatch,
	FactorIPLocation,
	FactorBehavioralAnomaly,
	FactorDownloadSpike,
	FactorUnauthorizedService,
	FactorLoginAttempts,
}

// Weights is the fixed component weight table. The seven weights sum to
// exactly 1.0.
var Weights = map[string]float64{
	FactorTimeDeviation:       0.15,
	FactorDeviceMismatch:      0.15,
	FactorIPLocation:          0.15,
	FactorBehavioralAnomaly:   0.20,
	FactorDownloadSpike:       0.15,
	FactorUnauthorizedService: 0.15,
	FactorLoginAttempts:       0.10,
}

// defaultWeight applies to unrecognized factor names fed to Composite.
const defaultWeight = 0.1

// Threshold and baseline tuning constants, centralized so they are
// independently testable rather than scattered as magic literals.
const (
	// Business-hours window: [NormalHoursStart, NormalHoursEnd).
	NormalHoursStart = 8
	NormalHoursEnd   = 20

	// Hours treated as deep off-hours; risk there is boosted 1.5x.
	deepOffHoursBoost = 1.5

	MaxNormalDownloads       = 10
	MaxNormalServiceSwitches = 5

	// Bootstrap risk while no device/IP baseline exists yet.
	baselineBootstrapRisk = 10.0

	unknownDeviceRisk  = 80.0
	sameSubnetRisk     = 30.0
	unknownNetworkRisk = 85.0

	// Decision thresholds on the final 0-100 score.
	allowThreshold  = 30.0
	reAuthThreshold = 60.0
)

// deepOffHours marks the hours that carry the extra boost.
var deepOffHours = map[int]bool{23: true, 0: true, 1: true, 2: true, 3: true}

// Baseline defaults used until a user has behavioral history.
const (
	DefaultAvgActions   = 20.0
	DefaultStdActions   = 10.0
	DefaultAvgDownloads = 5.0
	DefaultAvgDuration  = 30.0
)

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
