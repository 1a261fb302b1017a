package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRefresh(20*time.Millisecond, nil)
	m.ObserveRefresh(5*time.Millisecond, errors.New("down"))
	m.SetSnapshot(3, []models.OperationDescriptor{{Kind: models.OpList}, {Kind: models.OpList}, {Kind: models.OpProcedure}}, 2)
	m.ExecutionFinished("list_customer", models.OpList, "ok", time.Millisecond)
	m.ExecutionFinished("nope", "", "NotFound", time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"toolsmith_refreshes_total",
		"toolsmith_refresh_duration_seconds",
		"toolsmith_operations",
		"toolsmith_snapshot_revision",
		"toolsmith_discovery_failures",
		"toolsmith_executions_total",
		"toolsmith_execution_duration_seconds",
		"toolsmith_cache_lookups_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}

	if got := testutil.ToFloat64(m.operations.WithLabelValues("list")); got != 2 {
		t.Errorf("expected 2 list operations, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("delete")); got != 0 {
		t.Errorf("expected 0 delete operations, got %v", got)
	}
	if got := testutil.ToFloat64(m.refreshes.WithLabelValues("error")); got != 1 {
		t.Errorf("expected one failed refresh, got %v", got)
	}
	if got := testutil.ToFloat64(m.executions.WithLabelValues("unknown", "NotFound")); got != 1 {
		t.Errorf("expected unknown-kind execution to be counted, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(NewRegistry())
	m.CacheLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `toolsmith_cache_lookups_total{result="hit"} 1`) {
		t.Errorf("exposition missing cache counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector missing")
	}
}
