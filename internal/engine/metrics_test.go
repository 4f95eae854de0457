package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/seantiz/docgen/internal/model"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expected := []string{
		"docgen_engine_generations_total",
		"docgen_engine_inflight_generations",
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}

	for _, name := range expected {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestGenerationsTotalPreinitialized(t *testing.T) {
	fam := getFamily(t, "docgen_engine_generations_total")

	// Three services times three results.
	if len(fam.GetMetric()) < 9 {
		t.Errorf("expected at least 9 metric series, got %d", len(fam.GetMetric()))
	}

	var deferred int
	for _, m := range fam.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" && l.GetValue() == statusDeferred {
				deferred++
			}
		}
	}
	if deferred < 3 {
		t.Errorf("deferred series = %d, want at least 3", deferred)
	}
}

func TestGenerationDurationObserved(t *testing.T) {
	generationDuration.WithLabelValues(model.ServiceLocal).Observe(0.025)

	fam := getFamily(t, "docgen_engine_generation_seconds")
	var count uint64
	for _, m := range fam.GetMetric() {
		count += m.GetHistogram().GetSampleCount()
	}
	if count == 0 {
		t.Error("generationDuration has no observations")
	}
}

func getFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}
