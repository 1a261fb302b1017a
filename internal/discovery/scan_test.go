package discovery

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/toolsmith/internal/executor"
	"github.com/bobmcallan/toolsmith/internal/generator"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/google/go-cmp/cmp"
)

const apiSource = `import frappe
from frappe import _


@frappe.whitelist(allow_guest=True)
@rate_limit(limit=5)
def get_price(
	item_code: str,
	price_list: Optional[str] = None,
	qty: float = 1,
	*args,
	**kwargs,
):
	'''
	Price of an item.
	'''
	return 0


def helper(x):
	return x


@frappe.whitelist()
def make_invoice(self, source_name, target_doc=None, opts: dict | None = None, strict: bool | None = False):
	"""Make a sales invoice from an order."""
	pass
`

func TestScanFile(t *testing.T) {
	procs, failures := scanFile("erpnext.selling.api", "erpnext/selling/api.py", []byte(apiSource))
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(procs) != 2 {
		t.Fatalf("expected 2 procedures, got %d: %+v", len(procs), procs)
	}

	price := procs[0]
	if price.QualifiedName != "erpnext.selling.api.get_price" {
		t.Errorf("unexpected name %q", price.QualifiedName)
	}
	if price.Description != "Price of an item." {
		t.Errorf("unexpected description %q", price.Description)
	}
	if price.Source != "erpnext/selling/api.py:7" {
		t.Errorf("unexpected source %q", price.Source)
	}
	wantPrice := []models.ProcedureParam{
		{Name: "item_code", Kind: models.KindText, Required: true},
		{Name: "price_list", Kind: models.KindText},
		{Name: "qty", Kind: models.KindDecimal},
	}
	if diff := cmp.Diff(wantPrice, price.Parameters); diff != "" {
		t.Errorf("get_price parameters (-want +got):\n%s", diff)
	}

	invoice := procs[1]
	wantInvoice := []models.ProcedureParam{
		{Name: "source_name", Required: true},
		{Name: "target_doc"},
		{Name: "opts"},
		{Name: "strict", Kind: models.KindBoolean},
	}
	if diff := cmp.Diff(wantInvoice, invoice.Parameters); diff != "" {
		t.Errorf("make_invoice parameters (-want +got):\n%s", diff)
	}
	if invoice.Description != "Make a sales invoice from an order." {
		t.Errorf("unexpected description %q", invoice.Description)
	}
	if !invoice.ParametersDeclared {
		t.Error("scanned procedures declare their parameter list")
	}
}

func TestScanFile_DecoratorWithoutFunction(t *testing.T) {
	_, failures := scanFile("m", "m.py", []byte("@frappe.whitelist()\nclass Nope:\n\tpass\n"))
	if len(failures) != 1 || failures[0].Source != "m.py:1" {
		t.Errorf("expected one failure at m.py:1, got %v", failures)
	}
}

func TestModuleName(t *testing.T) {
	tests := map[string]string{
		"erpnext/stock/utils.py":        "erpnext.stock.utils",
		"erpnext/accounts/__init__.py":  "erpnext.accounts",
		"api.py":                        "api",
		filepath.Join("a", "b", "c.py"): "a.b.c",
	}
	for in, want := range tests {
		if got := moduleName(in); got != want {
			t.Errorf("moduleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScanSources_SkipsCaches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/api.py", "@frappe.whitelist()\ndef ping():\n\treturn 'pong'\n")
	writeFile(t, root, "app/__pycache__/api.py", "@frappe.whitelist()\ndef stale():\n\tpass\n")
	writeFile(t, root, ".git/hooks.py", "@frappe.whitelist()\ndef hidden():\n\tpass\n")

	procs, failures := ScanSources(context.Background(), []string{root})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(procs) != 1 || procs[0].QualifiedName != "app.api.ping" {
		t.Errorf("unexpected procedures: %+v", procs)
	}
	if len(procs[0].Parameters) != 0 || !procs[0].ParametersDeclared {
		t.Errorf("expected declared empty parameter list: %+v", procs[0])
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	procs := []models.ProcedureDescriptor{
		{QualifiedName: "a.declared", ParametersDeclared: true, Parameters: []models.ProcedureParam{}},
		{QualifiedName: "a.typed", ParametersDeclared: true, Parameters: []models.ProcedureParam{{Name: "x", Kind: models.KindInteger, Required: true}}},
		{QualifiedName: "a.unknown", Description: "no signature"},
	}
	var buf bytes.Buffer
	if err := WriteManifest(&buf, ManifestFrom(procs)); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	m, err := ParseManifest(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseManifest failed: %v\n%s", err, buf.String())
	}
	got := m.Descriptors("test")
	if len(got) != 3 {
		t.Fatalf("expected 3 procedures, got %d", len(got))
	}
	if !got[0].ParametersDeclared || len(got[0].Parameters) != 0 {
		t.Errorf("declared empty list lost: %+v", got[0])
	}
	if got[1].Parameters[0].Kind != models.KindInteger || !got[1].Parameters[0].Required {
		t.Errorf("typed parameter lost: %+v", got[1])
	}
	if got[2].ParametersDeclared || got[2].Source != "test" {
		t.Errorf("undeclared entry changed: %+v", got[2])
	}
}

func TestScanFile_KeywordArgumentsAllowExtraNames(t *testing.T) {
	src := "@frappe.whitelist()\ndef get_items(doctype, *args, **kwargs):\n\tpass\n\n@frappe.whitelist()\ndef strict(doctype, *args):\n\tpass\n"
	procs, failures := scanFile("erpnext.api", "erpnext/api.py", []byte(src))
	if len(failures) != 0 || len(procs) != 2 {
		t.Fatalf("unexpected scan result %+v %v", procs, failures)
	}
	if !procs[0].AcceptsKeywords || procs[1].AcceptsKeywords {
		t.Fatalf("keyword flags wrong: %v %v", procs[0].AcceptsKeywords, procs[1].AcceptsKeywords)
	}

	// the flag must survive a manifest written by the scan command
	var buf bytes.Buffer
	if err := WriteManifest(&buf, ManifestFrom(procs)); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	m, err := ParseManifest(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseManifest failed: %v\n%s", err, buf.String())
	}
	reloaded := m.Descriptors("test")
	if !reloaded[0].AcceptsKeywords || reloaded[1].AcceptsKeywords {
		t.Fatalf("keyword flags lost in manifest:\n%s", buf.String())
	}

	ops, genFailures := generator.Generate(nil, reloaded)
	if len(genFailures) != 0 {
		t.Fatalf("unexpected generation failures: %v", genFailures)
	}
	byName := map[string]models.OperationDescriptor{}
	for _, op := range ops {
		byName[op.Name] = op
	}

	open := byName["call_erpnext_api_get_items"]
	if !open.AdditionalParameters {
		t.Error("**kwargs procedure should accept additional parameters")
	}
	if v := executor.Validate(open, map[string]interface{}{"doctype": "Item", "limit": 5.0}); len(v) != 0 {
		t.Errorf("expected no violations, got %v", v)
	}

	closed := byName["call_erpnext_api_strict"]
	want := []models.Violation{{Parameter: "limit", Reason: "unknown parameter"}}
	if diff := cmp.Diff(want, executor.Validate(closed, map[string]interface{}{"doctype": "Item", "limit": 5.0})); diff != "" {
		t.Errorf("violations (-want +got):\n%s", diff)
	}
}
