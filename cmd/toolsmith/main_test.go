package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobmcallan/toolsmith/internal/models"
)

const customerYAML = `type_name: Customer
permissions: [read, create]
fields:
  - name: customer_name
    kind: text
    required: true
`

// writeConfig creates a static-mode config pointing at a definitions dir
// holding one Customer type.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	defs := filepath.Join(dir, "definitions")
	if err := os.MkdirAll(defs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(defs, "customer.yaml"), []byte(customerYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := `[discovery]
mode = "static"

[discovery.static]
definitions_dir = "` + filepath.ToSlash(defs) + `"

[remote]
require_credentials = false

[logging]
level = "error"
`
	path := filepath.Join(dir, "toolsmith.toml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "toolsmith version ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOperationsCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "operations", "--config", cfg, "--target", "Customer")
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	for _, name := range []string{"list_customer", "get_customer", "create_customer"} {
		if !strings.Contains(out, name) {
			t.Errorf("missing %s in:\n%s", name, out)
		}
	}
	if strings.Contains(out, "call_") {
		t.Errorf("target filter should exclude procedures:\n%s", out)
	}

	if _, err := run(t, "operations", "--config", cfg, "--kind", "bogus"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestDescribeAndDiscoverCommands(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "describe", "create_customer", "--config", cfg)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	var schema models.OperationSchema
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("describe output is not JSON: %v\n%s", err, out)
	}
	if schema.Operation.Name != "create_customer" {
		t.Errorf("unexpected operation %+v", schema.Operation)
	}

	if _, err := run(t, "describe", "nope", "--config", cfg); err == nil {
		t.Error("expected an error for an unknown operation")
	}

	out, err = run(t, "discover", "--config", cfg)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !strings.Contains(out, `"create_customer"`) || !strings.Contains(out, `"revision": 1`) {
		t.Errorf("unexpected discover output:\n%s", out)
	}
}

func TestExecCommand_ValidationFailure(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "exec", "create_customer", "--config", cfg, "--args", `{}`)
	if err == nil {
		t.Fatal("expected a failed execution to return an error")
	}
	var env models.ResultEnvelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("exec output is not JSON: %v\n%s", err, out)
	}
	if env.OK || env.ErrorKind != models.ErrKindValidation {
		t.Errorf("unexpected envelope %+v", env)
	}

	if _, err := run(t, "exec", "create_customer", "--config", cfg, "--args", `[1]`); err == nil {
		t.Error("expected an error for non-object args")
	}
}

func TestScanCommand(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "erpnext"), 0755); err != nil {
		t.Fatal(err)
	}
	code := "import frappe\n\n@frappe.whitelist()\ndef ping(name: str):\n\treturn name\n"
	if err := os.WriteFile(filepath.Join(src, "erpnext", "api.py"), []byte(code), 0644); err != nil {
		t.Fatal(err)
	}

	manifest := filepath.Join(t.TempDir(), "procedures.yaml")
	if _, err := run(t, "scan", src, "-o", manifest); err != nil {
		t.Fatalf("scan: %v", err)
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "name: erpnext.api.ping") {
		t.Errorf("unexpected manifest:\n%s", data)
	}
}
