package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *MetricsCollector
	namespace string // metric namespace prefix
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *MetricsCollector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		namespace: "corvusdb",
	}
}

// SetNamespace sets the metric namespace prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	uptime := time.Since(pe.collector.startTime).Seconds()
	if err := pe.writeGauge(w, "uptime_seconds", "Process uptime in seconds", uptime); err != nil {
		return err
	}

	if err := pe.writeOpMetrics(w, "insert", &pe.collector.insertsExecuted, &pe.collector.insertsFailed,
		&pe.collector.totalInsertTime, pe.collector.insertTimings); err != nil {
		return err
	}
	if err := pe.writeOpMetrics(w, "update", &pe.collector.updatesExecuted, &pe.collector.updatesFailed,
		&pe.collector.totalUpdateTime, pe.collector.updateTimings); err != nil {
		return err
	}
	if err := pe.writeOpMetrics(w, "delete", &pe.collector.deletesExecuted, &pe.collector.deletesFailed,
		&pe.collector.totalDeleteTime, pe.collector.deleteTimings); err != nil {
		return err
	}
	if err := pe.writeOpMetrics(w, "get", &pe.collector.getsExecuted, &pe.collector.getsFailed,
		&pe.collector.totalGetTime, pe.collector.getTimings); err != nil {
		return err
	}

	pageReads := atomic.LoadUint64(&pe.collector.pageReads)
	pageWrites := atomic.LoadUint64(&pe.collector.pageWrites)
	if err := pe.writeCounter(w, "page_reads_total", "Total HeapFile page reads", pageReads); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "page_writes_total", "Total HeapFile page writes", pageWrites); err != nil {
		return err
	}

	pe.collector.mu.RLock()
	kinds := make([]string, 0, len(pe.collector.operatorNexts))
	for k := range pe.collector.operatorNexts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		count := pe.collector.operatorNexts[kind]
		metricName := fmt.Sprintf("%s_operator_next_total", pe.namespace)
		if _, err := fmt.Fprintf(w, "# HELP %s Total next() calls served per operator kind\n# TYPE %s counter\n%s{kind=%q} %d\n",
			metricName, metricName, metricName, kind, count); err != nil {
			pe.collector.mu.RUnlock()
			return err
		}
	}
	pe.collector.mu.RUnlock()

	return nil
}

func (pe *PrometheusExporter) writeOpMetrics(w io.Writer, op string, executed, failed, totalTime *uint64, th *TimingHistogram) error {
	execVal := atomic.LoadUint64(executed)
	failVal := atomic.LoadUint64(failed)
	totalVal := atomic.LoadUint64(totalTime)

	if err := pe.writeCounter(w, op+"s_total", "Total number of "+op+" operations", execVal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, op+"s_failed_total", "Total number of failed "+op+" operations", failVal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, op+"_duration_nanoseconds_total", "Total "+op+" execution time in nanoseconds", totalVal); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, op+"_duration_seconds", op+" operation duration histogram", th); err != nil {
		return err
	}
	return pe.writePercentiles(w, op+"_duration_seconds", th)
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeHistogram writes cumulative Prometheus histogram buckets from
// timing data. Sum is omitted: the per-bucket counts and the accompanying
// counter total are enough for Prometheus to compute rates.
func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.GetBuckets()
	var cumulative uint64
	for _, b := range []struct {
		le  string
		key string
	}{
		{"0.001", "0-1ms"},
		{"0.01", "1-10ms"},
		{"0.1", "10-100ms"},
		{"1.0", "100-1000ms"},
		{"+Inf", ">1000ms"},
	} {
		cumulative += buckets[b.key]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", metricName, b.le, cumulative); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}

func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	percentiles := th.GetPercentiles()
	for _, p := range []string{"p50", "p95", "p99"} {
		if err := pe.writeGauge(w, baseName+"_"+p,
			fmt.Sprintf("%s percentile of %s", p, baseName),
			percentiles[p].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
