package metrics

import (
	"testing"
	"time"
)

func TestNilReceiverRecordsNothing(t *testing.T) {
	var m *Metrics
	m.IncrementHit("tax")
	m.IncrementMiss("tax")
	m.IncrementClear("all")
	m.ObserveResolve("tax", time.Millisecond)
}
