package risk

import (
	"fmt"
	"strings"
)

// Each calculator is a pure function returning a raw risk in [0, 100] and a
// human-readable explanation. Absent inputs default rather than erroring so
// an evaluation always completes.

// BehaviorSample holds the observed activity of the session under
// evaluation.
type BehaviorSample struct {
	ActionCount          int
	DownloadCount        int
	DurationMinutes      float64
	ServiceSwitches      int
	FailedAccessAttempts int
	AccessedServices     []string
}

// TimeDeviation scores how far the login hour falls outside business hours.
// Hours in the deep off-hours zone (23:00-04:00) are boosted 1.5x.
func TimeDeviation(loginHour int) (float64, string) {
	if loginHour >= NormalHoursStart && loginHour < NormalHoursEnd {
		return 0, fmt.Sprintf("Login at %d:00 - within business hours (08-20)", loginHour)
	}
	var dev float64
	if loginHour < NormalHoursStart {
		dev = float64(NormalHoursStart - loginHour)
	} else {
		dev = float64(loginHour - NormalHoursEnd)
	}
	score := clamp100(dev / 12 * 100)
	if deepOffHours[loginHour] {
		score = clamp100(score * deepOffHoursBoost)
		return score, fmt.Sprintf("Login at %d:00 - deep off-hours (23:00-04:00 zone)", loginHour)
	}
	return score, fmt.Sprintf("Login at %d:00 - outside normal business hours", loginHour)
}

// DeviceMismatch checks the session device fingerprint against the user's
// known devices. An empty known set is the bootstrap case, not an anomaly.
func DeviceMismatch(device string, known []string) (float64, string) {
	if len(known) == 0 {
		return baselineBootstrapRisk, "First session - establishing device baseline"
	}
	for _, k := range known {
		if k == device {
			return 0, "Recognised device"
		}
	}
	if len(device) > 40 {
		device = device[:40]
	}
	return unknownDeviceRisk, fmt.Sprintf("Unknown device %q not in %d registered devices", device, len(known))
}

// IPLocation checks the originating address against known addresses; a
// shared /16 prefix counts as the same network at reduced risk.
func IPLocation(ip string, known []string) (float64, string) {
	if len(known) == 0 {
		return baselineBootstrapRisk, "First session - establishing IP baseline"
	}
	for _, k := range known {
		if k == ip {
			return 0, "Known IP address"
		}
	}
	parts := strings.Split(ip, ".")
	for _, k := range known {
		kp := strings.Split(k, ".")
		if len(parts) >= 2 && len(kp) >= 2 && parts[0] == kp[0] && parts[1] == kp[1] {
			return sameSubnetRisk, fmt.Sprintf("IP %s same subnet but different host", ip)
		}
	}
	return unknownNetworkRisk, fmt.Sprintf("IP %s from completely unknown network", ip)
}

// DownloadSpike compares the current download count to the baseline average.
// With no baseline, only a hard threshold applies.
func DownloadSpike(current int, avg float64) (float64, string) {
	if avg == 0 {
		if current > MaxNormalDownloads {
			return 70, fmt.Sprintf("%d downloads with no baseline - suspicious", current)
		}
		return 0, "Download activity normal"
	}
	ratio := float64(current) / avg
	switch {
	case ratio <= 1.5:
		return 0, fmt.Sprintf("%d downloads within normal range (avg %.0f)", current, avg)
	case ratio <= 3:
		return 30 + (ratio-1.5)*20, fmt.Sprintf("%d downloads - %.1fx above avg %.0f", current, ratio, avg)
	default:
		return clamp100(60 + (ratio-3)*10), fmt.Sprintf("%d downloads - %.1fx above avg - SPIKE DETECTED", current, ratio)
	}
}

// BehavioralAnomaly combines up to four weighted sub-signals: action-count
// z-score, service switching, session duration, and failed access attempts.
func BehavioralAnomaly(sample BehaviorSample, profile Profile) (float64, string) {
	var factors []string
	total := 0.0

	actions := float64(sample.ActionCount)
	if profile.StdActions > 0 && actions > profile.AvgActions+2*profile.StdActions {
		z := (actions - profile.AvgActions) / profile.StdActions
		total += clamp100(z*20) * 0.4
		factors = append(factors, fmt.Sprintf("Action count %d is %.1f std devs above normal (%.0f)", sample.ActionCount, z, profile.AvgActions))
	}

	if sample.ServiceSwitches > MaxNormalServiceSwitches {
		total += clamp100(float64(sample.ServiceSwitches)/MaxNormalServiceSwitches*40) * 0.3
		factors = append(factors, fmt.Sprintf("Service switching %d exceeds limit (%d)", sample.ServiceSwitches, MaxNormalServiceSwitches))
	}

	if profile.AvgDuration > 0 && sample.DurationMinutes > profile.AvgDuration*3 {
		total += clamp100(sample.DurationMinutes/profile.AvgDuration*20) * 0.3
		factors = append(factors, fmt.Sprintf("Duration %.0fmin is %.1fx longer than avg", sample.DurationMinutes, sample.DurationMinutes/profile.AvgDuration))
	}

	if sample.FailedAccessAttempts > 0 {
		total += clamp100(float64(sample.FailedAccessAttempts)*15) * 0.2
		factors = append(factors, fmt.Sprintf("%d failed access attempts recorded", sample.FailedAccessAttempts))
	}

	if len(factors) == 0 {
		return 0, "Behavior within normal patterns"
	}
	return clamp100(total), strings.Join(factors, "; ")
}

// UnauthorizedService scores access to services outside the user's allowed
// list. No restriction list, or a wildcard entry, disables the check.
func UnauthorizedService(accessed, allowed []string) (float64, string) {
	if len(allowed) == 0 {
		return 0, "No service restrictions configured"
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		if a == "*" {
			return 0, "No service restrictions configured"
		}
		allowedSet[a] = true
	}
	var unauthorized []string
	for _, s := range accessed {
		if !allowedSet[s] {
			unauthorized = append(unauthorized, s)
		}
	}
	if len(unauthorized) == 0 {
		return 0, "All accessed services are authorised"
	}
	return clamp100(float64(len(unauthorized)) * 30), "Unauthorised access to: " + strings.Join(unauthorized, ", ")
}

// LoginAttempts scores the number of attempts it took to log in.
func LoginAttempts(count int) (float64, string) {
	if count <= 1 {
		return 0, "Successful login on first attempt"
	}
	if count == 2 {
		return 40, "Successful login after 1 failed attempt"
	}
	return clamp100(40 + float64(count-2)*25), fmt.Sprintf("Successful login after %d failed attempts - possible brute-force", count-1)
}
