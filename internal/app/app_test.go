package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/config"
	"github.com/bobmcallan/toolsmith/internal/models"
)

const customerYAML = `type_name: Customer
permissions: [read, create]
fields:
  - name: customer_name
    kind: text
    required: true
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "customer.yaml"), []byte(customerYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewDefaultConfig()
	cfg.Discovery.Static.DefinitionsDir = dir
	cfg.Storage.Badger.Path = t.TempDir()
	return cfg
}

func opNames(ops []models.OperationDescriptor) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	return strings.Join(names, ",")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Discovery.Mode = "psychic"
	if _, err := New(cfg, common.NewSilentLogger()); err == nil {
		t.Error("expected an invalid configuration error")
	}
}

func TestStart_InitialRefresh(t *testing.T) {
	a, err := New(testConfig(t), common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.Start(context.Background())

	got := opNames(a.Service.ListOperations("", ""))
	want := "list_customer,get_customer,create_customer,call_frappe_desk_query_report_run"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if a.MCPHandler == nil {
		t.Error("expected the MCP handler to be enabled by default")
	}
	if a.Storage != nil {
		t.Error("storage should only open when the discovery cache is enabled")
	}
}

func TestStart_FailedInitialRefreshKeepsServing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Discovery.Static.DefinitionsDir = filepath.Join(t.TempDir(), "missing")

	a, err := New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.Start(context.Background())
	if n := len(a.Service.ListOperations("", "")); n != 0 {
		t.Errorf("expected an empty registry, got %d operations", n)
	}
	if a.Service.Status().LastError == "" {
		t.Error("expected the failed refresh to be recorded")
	}
}

func TestStart_WatcherPicksUpNewDefinitions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Discovery.Watch = true

	a, err := New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	a.Start(context.Background())

	item := "type_name: Item\npermissions: [read]\nfields:\n  - name: item_code\n    kind: text\n"
	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(cfg.Discovery.Static.DefinitionsDir, "item.yaml"), []byte(item), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(a.Service.ListOperations("", "Item")) == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("watcher did not refresh, operations: %s", opNames(a.Service.ListOperations("", "")))
}

func TestNew_DiscoveryCacheOpensStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Discovery.Cache.Enabled = true

	a, err := New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Start(context.Background())
	if a.Storage == nil {
		t.Fatal("expected storage to be opened")
	}
	keys, err := a.Storage.SnapshotStorage().Keys(context.Background())
	if err != nil || len(keys) != 1 {
		t.Errorf("expected one persisted discovery result, got %v (%v)", keys, err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDiscoveryOptions(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Discovery.Live.FallbackTypes = []string{"Customer"}
	cfg.Discovery.Live.IncludeChildTables = true
	cfg.Discovery.Live.RolesMethod = "toolsmith.api.roles"
	opts := DiscoveryOptions(cfg)
	if opts.Mode != "static" || opts.Concurrency != 8 || opts.Timeout != 15*time.Second {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(opts.FallbackTypes) != 1 || !opts.IncludeChildTables || opts.RolesMethod != "toolsmith.api.roles" {
		t.Errorf("live options not mapped: %+v", opts)
	}
}
