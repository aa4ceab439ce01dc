package scheduler

import "time"

// IsDue reports whether an entry should run. Pure function of its arguments
// so clock handling stays out of the decision. An entry that has never run is
// due immediately.
func IsDue(now, lastRun time.Time, frequency Frequency) bool {
	if lastRun.IsZero() {
		return true
	}
	interval := time.Duration(frequency.Days()) * 24 * time.Hour
	return now.Sub(lastRun) >= interval
}

// NextRun derives when an entry next becomes due. Zero lastRun yields now:
// a never-run entry is already due.
func NextRun(now, lastRun time.Time, frequency Frequency) time.Time {
	if lastRun.IsZero() {
		return now
	}
	return lastRun.Add(time.Duration(frequency.Days()) * 24 * time.Hour)
}
