package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/toolsmith/internal/app"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/config"
	"github.com/bobmcallan/toolsmith/internal/discovery"
	"github.com/bobmcallan/toolsmith/internal/server"
	testcommon "github.com/bobmcallan/toolsmith/tests/common"
)

const (
	testAPIKey    = "it-key"
	testAPISecret = "it-secret"
)

// ToolsmithEnv runs the full application in-process against a stubbed Frappe
// site and serves it through httptest.
type ToolsmithEnv struct {
	Stub *testcommon.FrappeStub
	App  *app.App
	URL  string
}

// customerDoc is a trimmed Frappe DocType document.
var customerDoc = map[string]interface{}{
	"doctype": "DocType",
	"name":    "Customer",
	"module":  "Selling",
	"istable": 0,
	"fields": []map[string]interface{}{
		{"fieldname": "customer_name", "fieldtype": "Data", "reqd": 1, "label": "Customer Name"},
		{"fieldname": "customer_type", "fieldtype": "Select", "options": "Company\nIndividual"},
		{"fieldname": "territory", "fieldtype": "Link", "options": "Territory"},
	},
	"permissions": []map[string]interface{}{
		{"role": "Sales User", "read": 1, "create": 1, "write": 1},
	},
}

// stubSite registers the metadata and data endpoints of a site exposing the
// Customer type and its child table.
func stubSite(t *testing.T, stub *testcommon.FrappeStub) {
	t.Helper()
	stub.Reset(t)
	stub.Stub(t,
		testcommon.JSONStub("GET", "/api/resource/DocType", 200, map[string]interface{}{
			"data": []map[string]interface{}{
				{"name": "Customer", "module": "Selling", "istable": 0},
				{"name": "Customer Credit Limit", "module": "Selling", "istable": 1},
			},
		}),
		testcommon.JSONStub("GET", "/api/resource/DocType/Customer", 200, map[string]interface{}{"data": customerDoc}),
		testcommon.JSONStub("POST", "/api/method/"+discovery.LoggedUserMethod, 200, map[string]interface{}{
			"message": "sales@example.com",
		}),
		testcommon.JSONStub("POST", "/api/method/"+discovery.DefaultRolesMethod, 200, map[string]interface{}{
			"message": []string{"Sales User", "Sales Manager"},
		}),
		testcommon.JSONStub("GET", "/api/resource/Customer", 200, map[string]interface{}{
			"data": []map[string]interface{}{{"name": "CUST-0001", "customer_name": "Acme"}},
		}),
		testcommon.JSONStub("POST", "/api/resource/Customer", 200, map[string]interface{}{
			"data": map[string]interface{}{"name": "CUST-0002", "customer_name": "Globex"},
		}),
		testcommon.JSONStub("GET", "/api/resource/Customer/CUST-404", 404, map[string]interface{}{
			"exc_type": "DoesNotExistError",
		}),
	)
}

// NewToolsmithEnv starts the stub, wires a live-mode application to it and
// runs the initial refresh.
func NewToolsmithEnv(t *testing.T) *ToolsmithEnv {
	t.Helper()

	stub := testcommon.StartFrappeStub(t)
	stubSite(t, stub)

	cfg := config.NewDefaultConfig()
	cfg.Discovery.Mode = "live"
	cfg.Remote.URL = stub.URL()
	cfg.Remote.APIKey = testAPIKey
	cfg.Remote.APISecret = testAPISecret
	cfg.Storage.Badger.Path = t.TempDir()

	application, err := app.New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}
	application.Start(context.Background())

	ts := httptest.NewServer(server.New(application).Handler())
	t.Cleanup(func() {
		ts.Close()
		application.Close()
	})

	return &ToolsmithEnv{Stub: stub, App: application, URL: ts.URL}
}
