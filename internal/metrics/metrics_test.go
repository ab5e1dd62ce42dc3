package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsIsSingleton(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	if a != b {
		t.Fatalf("NewMetrics returned different instances")
	}

	a.GestureCommandsTotal.WithLabelValues("next").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "reels_gesture_commands_total" {
			return
		}
	}
	t.Errorf("reels_gesture_commands_total not registered")
}
