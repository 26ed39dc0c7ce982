package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func gatherValue(t *testing.T, m *PrometheusMetrics, name string, labels map[string]string) (float64, uint64) {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue(), 0
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue(), 0
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				return h.GetSampleSum(), h.GetSampleCount()
			}
		}
	}
	return 0, 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *PrometheusMetrics
	m.RecordTx("createPool", TxSuccess, 1, time.Second)
	m.RecordRPC("eth_call", time.Millisecond, nil)
	m.RecordError("rpc")
	m.RecordRun("deploy", time.Second, nil)
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}
	if err := m.Export(ExportConfig{TextfilePath: "/nonexistent/x.prom"}); err != nil {
		t.Errorf("nil Export() error = %v", err)
	}
}

func TestRecordTx(t *testing.T) {
	m := NewPrometheusMetrics()

	m.RecordTx("approve", TxSuccess, 46_000, 2*time.Second)
	m.RecordTx("approve", TxSuccess, 30_000, time.Second)
	m.RecordTx("approve", TxFailed, 0, 0)

	if v, _ := gatherValue(t, m, "poolkit_transactions_total", map[string]string{"tx": "approve", "status": TxSuccess}); v != 2 {
		t.Errorf("success count = %v, want 2", v)
	}
	if v, _ := gatherValue(t, m, "poolkit_transactions_total", map[string]string{"tx": "approve", "status": TxFailed}); v != 1 {
		t.Errorf("failed count = %v, want 1", v)
	}
	// Failed sends are not observed in the histograms.
	if sum, count := gatherValue(t, m, "poolkit_gas_used", map[string]string{"tx": "approve"}); count != 2 || sum != 76_000 {
		t.Errorf("gas histogram = sum %v count %d", sum, count)
	}
	if sum, _ := gatherValue(t, m, "poolkit_receipt_wait_seconds", map[string]string{"tx": "approve"}); sum != 3 {
		t.Errorf("wait sum = %v, want 3", sum)
	}
}

func TestRecordRPCBucketsUnknownMethods(t *testing.T) {
	m := NewPrometheusMetrics()

	m.RecordRPC("eth_call", 100*time.Millisecond, nil)
	m.RecordRPC("debug_traceCall", 100*time.Millisecond, nil)
	m.RecordRPC("eth_call", 100*time.Millisecond, errors.New("boom"))

	if _, count := gatherValue(t, m, "poolkit_rpc_latency_seconds", map[string]string{"method": "other"}); count != 1 {
		t.Errorf("other count = %d, want 1", count)
	}
	if _, count := gatherValue(t, m, "poolkit_rpc_latency_seconds", map[string]string{"method": "eth_call", "status": "error"}); count != 1 {
		t.Errorf("eth_call error count = %d, want 1", count)
	}
}

func TestExportTextfile(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordRun("init-pool", 1500*time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "poolkit.prom")
	if err := m.Export(ExportConfig{TextfilePath: path}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `poolkit_run_duration_seconds{command="init-pool",status="completed"} 1.5`) {
		t.Errorf("textfile missing run duration:\n%s", data)
	}
}

func TestExportPushgateway(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewPrometheusMetrics()
	m.RecordError("revert")

	err := m.Export(ExportConfig{PushgatewayURL: server.URL, Grouping: map[string]string{"command": "transfer"}})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if gotPath != "/metrics/job/poolkit/command/transfer" {
		t.Errorf("push path = %q", gotPath)
	}
	if gotBody == "" {
		t.Error("push body is empty")
	}
}
