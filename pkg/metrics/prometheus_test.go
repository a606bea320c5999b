package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporter_BasicMetrics(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	collector.RecordInsert(10*time.Millisecond, true)
	collector.RecordUpdate(50*time.Millisecond, false)
	collector.RecordDelete(5*time.Millisecond, true)
	collector.RecordGet(1*time.Millisecond, true)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		"# TYPE corvusdb_inserts_total counter",
		"# TYPE corvusdb_updates_total counter",
		"# TYPE corvusdb_deletes_total counter",
		"# TYPE corvusdb_gets_total counter",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output", want)
		}
	}

	for _, want := range []string{
		"corvusdb_inserts_total 1",
		"corvusdb_updates_total 1",
		"corvusdb_updates_failed_total 1",
		"corvusdb_deletes_total 1",
		"corvusdb_gets_total 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestPrometheusExporter_Histograms(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	collector.RecordInsert(500*time.Microsecond, true)
	collector.RecordInsert(5*time.Millisecond, true)
	collector.RecordInsert(50*time.Millisecond, true)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "# TYPE corvusdb_insert_duration_seconds histogram") {
		t.Error("missing insert_duration_seconds histogram type")
	}
	if !strings.Contains(output, `corvusdb_insert_duration_seconds_bucket{le="0.001"}`) {
		t.Error("missing insert_duration_seconds_bucket le=0.001")
	}
	if !strings.Contains(output, "corvusdb_insert_duration_seconds_count 3") {
		t.Error("expected insert_duration_seconds_count 3")
	}
}

func TestPrometheusExporter_Percentiles(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	for i := 1; i <= 10; i++ {
		collector.RecordGet(time.Duration(i)*time.Millisecond, true)
	}

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"corvusdb_get_duration_seconds_p50",
		"corvusdb_get_duration_seconds_p95",
		"corvusdb_get_duration_seconds_p99",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output", want)
		}
	}
}

func TestPrometheusExporter_PageIO(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	collector.RecordPageRead()
	collector.RecordPageRead()
	collector.RecordPageWrite()

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "corvusdb_page_reads_total 2") {
		t.Error("expected page_reads_total 2")
	}
	if !strings.Contains(output, "corvusdb_page_writes_total 1") {
		t.Error("expected page_writes_total 1")
	}
}

func TestPrometheusExporter_OperatorNexts(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	collector.RecordOperatorNext("heap_scan")
	collector.RecordOperatorNext("heap_scan")
	collector.RecordOperatorNext("aggregate")

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `corvusdb_operator_next_total{kind="heap_scan"} 2`) {
		t.Error("expected heap_scan operator_next_total of 2")
	}
	if !strings.Contains(output, `corvusdb_operator_next_total{kind="aggregate"} 1`) {
		t.Error("expected aggregate operator_next_total of 1")
	}
}

func TestPrometheusExporter_CustomNamespace(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)
	exporter.SetNamespace("mydb")

	collector.RecordInsert(1*time.Millisecond, true)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "mydb_inserts_total 1") {
		t.Error("expected custom namespace prefix in output")
	}
	if strings.Contains(output, "corvusdb_inserts_total") {
		t.Error("did not expect default namespace prefix after SetNamespace")
	}
}

func TestPrometheusExporter_UptimeGauge(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("Failed to write metrics: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "# TYPE corvusdb_uptime_seconds gauge") {
		t.Error("missing uptime_seconds gauge type")
	}
}
