package schema

import (
	"testing"

	"github.com/bobmcallan/toolsmith/internal/models"
)

func customer() models.ResourceDescriptor {
	return models.ResourceDescriptor{
		TypeName: "Customer",
		Module:   "Selling",
		Fields: []models.FieldDescriptor{
			{Name: "customer_name", Kind: models.KindText, Required: true},
			{Name: "customer_type", Kind: models.KindEnum, Options: []string{"Company", "Individual"}},
		},
		Permissions: models.PermissionSet{models.PermCreate, models.PermRead},
	}
}

func TestBuild_SortsAndNormalizes(t *testing.T) {
	result := &models.DiscoveryResult{
		Provider: "static",
		Resources: []models.ResourceDescriptor{
			{TypeName: "Supplier"},
			customer(),
			{TypeName: "Item"},
		},
		Procedures: []models.ProcedureDescriptor{
			{QualifiedName: "frappe.desk.query_report.run"},
			{QualifiedName: "erpnext.api.ping"},
		},
	}

	snap, failures := Build(result)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	resources := snap.Resources()
	if len(resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(resources))
	}
	want := []string{"Customer", "Item", "Supplier"}
	for i, r := range resources {
		if r.TypeName != want[i] {
			t.Errorf("resource %d: expected %s, got %s", i, want[i], r.TypeName)
		}
	}

	procs := snap.Procedures()
	if procs[0].QualifiedName != "erpnext.api.ping" {
		t.Errorf("procedures not sorted: %v", procs)
	}

	c, ok := snap.Resource("Customer")
	if !ok {
		t.Fatal("Customer not found")
	}
	if len(c.Permissions) != 2 || c.Permissions[0] != models.PermRead {
		t.Errorf("permissions not canonicalized: %v", c.Permissions)
	}
	if snap.Provider != "static" || snap.Version == "" {
		t.Errorf("snapshot metadata missing: provider=%q version=%q", snap.Provider, snap.Version)
	}
}

func TestBuild_ExcludesInvalid(t *testing.T) {
	dupField := customer()
	dupField.TypeName = "Dup Field"
	dupField.Fields = append(dupField.Fields, models.FieldDescriptor{Name: "customer_name", Kind: models.KindText})

	emptyEnum := models.ResourceDescriptor{
		TypeName: "Bad Enum",
		Fields:   []models.FieldDescriptor{{Name: "status", Kind: models.KindEnum}},
	}
	badRef := models.ResourceDescriptor{
		TypeName: "Bad Ref",
		Fields:   []models.FieldDescriptor{{Name: "item", Kind: models.KindReference, Options: []string{"Item", "Batch"}}},
	}

	result := &models.DiscoveryResult{
		Resources: []models.ResourceDescriptor{customer(), dupField, emptyEnum, badRef, customer()},
		Procedures: []models.ProcedureDescriptor{
			{QualifiedName: "a..b"},
			{QualifiedName: "ok.proc"},
			{QualifiedName: "ok.proc"},
		},
		Failures: []models.DiscoveryFailure{{Source: "x.yaml", Kind: models.ErrKindMalformedDefinition, Message: "bad yaml"}},
	}

	snap, failures := Build(result)
	if n, _ := snap.Counts(); n != 1 {
		t.Errorf("expected 1 valid resource, got %d", n)
	}
	if _, n := snap.Counts(); n != 1 {
		t.Errorf("expected 1 valid procedure, got %d", n)
	}
	// carried failure + 3 invalid resources + duplicate type + bad name + duplicate procedure
	if len(failures) != 7 {
		t.Fatalf("expected 7 failures, got %d: %v", len(failures), failures)
	}
	if failures[0].Source != "x.yaml" {
		t.Errorf("discovery failures should be carried first, got %v", failures[0])
	}
	for _, f := range failures {
		if f.Kind != models.ErrKindMalformedDefinition {
			t.Errorf("expected MalformedDefinition, got %s (%s)", f.Kind, f.Message)
		}
	}
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	snap, _ := Build(&models.DiscoveryResult{Resources: []models.ResourceDescriptor{customer()}})

	r, _ := snap.Resource("Customer")
	r.Fields[0].Name = "mutated"
	r.Fields[1].Options[0] = "mutated"

	again, _ := snap.Resource("Customer")
	if again.Fields[0].Name != "customer_name" || again.Fields[1].Options[0] != "Company" {
		t.Errorf("snapshot was mutated through a returned copy: %+v", again.Fields)
	}
}

func TestBuild_NilResult(t *testing.T) {
	snap, failures := Build(nil)
	if snap == nil {
		t.Fatal("expected empty snapshot")
	}
	if r, p := snap.Counts(); r != 0 || p != 0 || len(failures) != 0 {
		t.Errorf("expected empty snapshot, got %d/%d/%d", r, p, len(failures))
	}
}

func TestValidateProcedure(t *testing.T) {
	tests := []struct {
		name    string
		proc    models.ProcedureDescriptor
		wantErr bool
	}{
		{"valid", models.ProcedureDescriptor{QualifiedName: "erpnext.stock.get_item_details"}, false},
		{"empty", models.ProcedureDescriptor{}, true},
		{"space", models.ProcedureDescriptor{QualifiedName: "erp next.x"}, true},
		{"trailing dot", models.ProcedureDescriptor{QualifiedName: "erpnext."}, true},
		{"dup param", models.ProcedureDescriptor{QualifiedName: "a.b", Parameters: []models.ProcedureParam{{Name: "x"}, {Name: "x"}}}, true},
		{"enum param without options", models.ProcedureDescriptor{QualifiedName: "a.b", Parameters: []models.ProcedureParam{{Name: "x", Kind: models.KindEnum}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProcedure(tt.proc)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
