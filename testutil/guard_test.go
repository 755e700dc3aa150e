package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPackagesPredicate(t *testing.T) {
	match := Packages("internal/savegame", "/internal/core/")
	cases := []struct {
		in   string
		want bool
	}{
		{"shelfcore/internal/savegame", true},
		{"shelfcore/internal/core", true},
		{"shelfcore/internal/core/sub", true},
		{"shelfcore/internal/corex", false},
		{"shelfcore/internal/scene", false},
		{"example.com/internal/savegame", false},
	}
	for _, c := range cases {
		if got := match(c.in); got != c.want {
			t.Fatalf("Packages(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestModuleExceptPredicate(t *testing.T) {
	match := ModuleExcept("pkg/domain")
	cases := []struct {
		in   string
		want bool
	}{
		{"shelfcore/pkg/domain", false},
		{"shelfcore/internal/scene", true},
		{"shelfcore", true},
		{"github.com/google/uuid", false},
		{"fmt", false},
	}
	for _, c := range cases {
		if got := match(c.in); got != c.want {
			t.Fatalf("ModuleExcept(%q)=%v want %v", c.in, got, c.want)
		}
	}
	if !InternalImportForbidden("shelfcore/internal/tasks") || InternalImportForbidden("shelfcore/pkg/domain") {
		t.Fatalf("unexpected InternalImportForbidden result")
	}
}

func TestDirectImportViolationsSkipsTestsAndDirs(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"shelfcore/internal/core\"\n)\nvar _ = fmt.Sprint\nvar _ = core.DefaultConfig\n")
	writeGo(t, dir, "a_test.go", "package tmp\nimport \"shelfcore/internal/savegame\"\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, filepath.Join(dir, "sub"), "b.go", "package sub\nimport \"shelfcore/internal/savegame\"\n")

	viols, err := directImportViolations(dir, Packages("internal"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "shelfcore/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	writeGo(t, dir, "broken.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, Packages("internal")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTransitiveViolationsUsesGoList(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })

	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nshelfcore/pkg/domain\n\nshelfcore/internal/savegame\n"), nil
	}
	viols, _, err := transitiveDependencyViolations(".", Packages("internal/savegame"))
	if err != nil || len(viols) != 1 || viols[0] != "shelfcore/internal/savegame" {
		t.Fatalf("unexpected result %v %v", viols, err)
	}

	goListDeps = func(string) ([]byte, error) { return []byte("boom"), errors.New("exit 1") }
	if _, out, err := transitiveDependencyViolations(".", Packages("internal")); err == nil || string(out) != "boom" {
		t.Fatalf("expected go list failure to surface, got %v %q", err, out)
	}
}

func TestFailIfViolations(t *testing.T) {
	var c captureFatal
	failIfViolations(&c, "direct import", "layering", nil)
	if c.msg != "" {
		t.Fatalf("no violations must not fail, got %q", c.msg)
	}
	failIfViolations(&c, "direct import", "layering", []string{"x (in a.go)"})
	if !strings.Contains(c.msg, "x (in a.go)") {
		t.Fatalf("expected violation listed, got %q", c.msg)
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "stdlib only")
}
