package provider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spectersec/specter/pkg/models"
)

// fakeProvider is an in-memory provider for registry tests.
type fakeProvider struct {
	name string
}

func (f fakeProvider) Name() string            { return f.name }
func (f fakeProvider) Operations() []Operation { return nil }
func (f fakeProvider) Invoke(ctx context.Context, op string, args json.RawMessage) (Result, error) {
	return Result{Content: "ok"}, nil
}

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		name string
		want models.Role
	}{
		{"ghidramcp", models.RoleStatic},
		{"stringmcp", models.RoleStatic},
		{"flareflossmcp", models.RoleStatic},
		{"hashdbmcp", models.RoleStatic},
		{"capamcp", models.RoleStatic},
		{"virtualboxvm", models.RoleDynamic},
		{"procmon-bridge", models.RoleDynamic},
		{"sandbox", models.RoleDynamic},
		{"vagrantsetup", models.RoleDynamic},
		// Unknown providers default to static.
		{"mystery-tool", models.RoleStatic},
	}

	for _, tt := range tests {
		if got := ClassifyRole(tt.name); got != tt.want {
			t.Errorf("ClassifyRole(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistryPartitions(t *testing.T) {
	r := NewRegistry(
		fakeProvider{name: "stringmcp"},
		fakeProvider{name: "hashdbmcp"},
		fakeProvider{name: "virtualboxvm"},
	)

	if !r.HasCapability(models.RoleStatic) {
		t.Error("expected static capability")
	}
	if !r.HasCapability(models.RoleDynamic) {
		t.Error("expected dynamic capability")
	}

	static := r.ForRole(models.RoleStatic)
	if len(static) != 2 {
		t.Fatalf("expected 2 static providers, got %d", len(static))
	}
	// Sorted by name.
	if static[0].Name() != "hashdbmcp" || static[1].Name() != "stringmcp" {
		t.Errorf("unexpected static order: %s, %s", static[0].Name(), static[1].Name())
	}

	roles := r.AvailableWorkerRoles()
	if len(roles) != 2 {
		t.Errorf("expected both worker roles available, got %v", roles)
	}
}

func TestRegistryStaticOnly(t *testing.T) {
	r := NewRegistry(fakeProvider{name: "stringmcp"})

	if r.HasCapability(models.RoleDynamic) {
		t.Error("expected no dynamic capability")
	}
	roles := r.AvailableWorkerRoles()
	if len(roles) != 1 || roles[0] != models.RoleStatic {
		t.Errorf("expected static only, got %v", roles)
	}
}

const testInventory = `
providers:
  stringmcp:
    transport: stdio
    command: python
    args: ["stringMCP.py", "--transport", "stdio"]
    operations:
      - name: callStrings
        description: Extract printable strings from a file
        input:
          file_path:
            type: string
            description: Path to the file
        required: [file_path]
  virtualboxmcp:
    transport: stdio
    command: /usr/local/bin/vboxmcp
    operations:
      - name: start_vm
        description: Start the analysis VM
`

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeInventory(t, testInventory)

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	p, ok := r.Get("stringmcp")
	if !ok {
		t.Fatal("stringmcp not registered")
	}
	ops := p.Operations()
	if len(ops) != 1 || ops[0].Name != "callStrings" {
		t.Errorf("unexpected operations: %+v", ops)
	}

	// Relative .py script resolves against the inventory directory.
	sp, ok := p.(*StdioProvider)
	if !ok {
		t.Fatalf("expected StdioProvider, got %T", p)
	}
	if !filepath.IsAbs(sp.args[0]) {
		t.Errorf("expected resolved script path, got %q", sp.args[0])
	}
	if filepath.Dir(sp.args[0]) != filepath.Dir(path) {
		t.Errorf("script should resolve next to inventory: %q", sp.args[0])
	}

	inv := r.Inventory()
	if len(inv[models.RoleStatic]) != 1 || len(inv[models.RoleDynamic]) != 1 {
		t.Errorf("unexpected inventory: %v", inv)
	}
}

func TestLoadFileRejectsBadTransport(t *testing.T) {
	path := writeInventory(t, `
providers:
  ghidramcp:
    transport: sse
    command: python
`)

	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported transport") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestLoadFileRejectsMissingCommand(t *testing.T) {
	path := writeInventory(t, `
providers:
  stringmcp:
    transport: stdio
`)

	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "requires a command") {
		t.Fatalf("expected command error, got %v", err)
	}
}

func TestLoadFileRejectsEmpty(t *testing.T) {
	path := writeInventory(t, "providers: {}\n")

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for empty inventory")
	}
}
