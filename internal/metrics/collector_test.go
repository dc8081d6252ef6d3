package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/winprojfs/winprojfs/internal/config"
)

func enabledConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Enabled:   true,
		Port:      9600,
		Path:      "/metrics",
		Namespace: "winprojfs",
	}
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("enabled", func(t *testing.T) {
		collector, err := NewCollector(enabledConfig())
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		collector, err := NewCollector(config.MetricsConfig{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have a registry")
		}
	})
}

func TestRecordCallback(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(enabledConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordCallback("get_file_data", 5*time.Millisecond, true)
	collector.RecordCallback("get_file_data", 2*time.Millisecond, true)
	collector.RecordCallback("get_file_data", time.Millisecond, false)

	got := testutil.ToFloat64(collector.callbackCounter.WithLabelValues("get_file_data", "success"))
	if got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	got = testutil.ToFloat64(collector.callbackCounter.WithLabelValues("get_file_data", "error"))
	if got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(enabledConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordError("get_placeholder_info", "NOT_FOUND")
	collector.RecordError("get_placeholder_info", "NOT_FOUND")

	got := testutil.ToFloat64(collector.errorCounter.WithLabelValues("get_placeholder_info", "NOT_FOUND"))
	if got != 2 {
		t.Errorf("error count = %v, want 2", got)
	}
}

func TestGaugeAndCounter(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(enabledConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.SetActiveEnumerations(3)
	if got := testutil.ToFloat64(collector.activeEnumerations); got != 3 {
		t.Errorf("active enumerations = %v, want 3", got)
	}

	collector.AddBytesProjected(1024)
	collector.AddBytesProjected(512)
	if got := testutil.ToFloat64(collector.bytesProjected); got != 1536 {
		t.Errorf("bytes projected = %v, want 1536", got)
	}
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(config.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	// None of these may panic on a collector without a registry.
	collector.RecordCallback("get_file_data", time.Millisecond, true)
	collector.RecordError("notification", "IO_FAILURE")
	collector.SetActiveEnumerations(1)
	collector.AddBytesProjected(42)

	var nilCollector *Collector
	nilCollector.RecordCallback("get_file_data", time.Millisecond, true)
	nilCollector.SetActiveEnumerations(0)
}
