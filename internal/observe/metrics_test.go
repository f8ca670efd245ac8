package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// hasAttr reports whether attrs contain key=value.
func hasAttr(dp metricdata.DataPoint[int64], key, value string) bool {
	for _, kv := range dp.Attributes.ToSlice() {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, StageDecode, 120*time.Millisecond)
	m.RecordStage(ctx, StageDecode, 80*time.Millisecond)
	m.RecordStage(ctx, StageEncode, time.Second)

	rm := collect(t, reader)
	met := findMetric(rm, "audiotrim.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2 (one per stage)", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		stage, _ := dp.Attributes.Value("stage")
		if stage.AsString() == StageDecode && dp.Count != 2 {
			t.Errorf("decode count = %d, want 2", dp.Count)
		}
	}
}

func TestRecordTrim(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTrim(ctx, "energy", StatusOK)
	m.RecordTrim(ctx, "energy", StatusOK)
	m.RecordTrim(ctx, "windowed", StatusError)

	rm := collect(t, reader)
	met := findMetric(rm, "audiotrim.trims")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		if hasAttr(dp, "strategy", "energy") && hasAttr(dp, "status", StatusOK) {
			if dp.Value != 2 {
				t.Errorf("counter value = %d, want 2", dp.Value)
			}
			return
		}
	}
	t.Error("data point with strategy=energy,status=ok not found")
}

func TestActiveTrimsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveTrims.Add(ctx, 1)
	m.ActiveTrims.Add(ctx, 1)
	m.ActiveTrims.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "audiotrim.active_trims")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active trims = %+v, want a single point of 1", sum.DataPoints)
	}
}

func TestReductionAndAudioProcessed(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ReductionPercent.Record(ctx, 44)
	m.AudioProcessed.Add(ctx, 10)
	m.AudioProcessed.Add(ctx, 2.5)

	rm := collect(t, reader)

	if met := findMetric(rm, "audiotrim.reduction"); met == nil {
		t.Error("reduction metric not found")
	}
	met := findMetric(rm, "audiotrim.audio.processed")
	if met == nil {
		t.Fatal("audio processed metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[float64])
	if !ok {
		t.Fatal("metric is not a float sum")
	}
	if got := sum.DataPoints[0].Value; got != 12.5 {
		t.Errorf("audio processed = %v, want 12.5", got)
	}
}
