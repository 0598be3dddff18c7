package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) {
	c.msg = format
	if len(args) > 1 {
		if s, ok := args[1].(string); ok {
			c.msg = s
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"incidentcore/internal/core", true},
		{"incidentcore/pkg/domain", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestStorageDriverForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"modernc.org/sqlite", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"github.com/google/uuid", false},
		{"database/sql", false},
	}
	for _, c := range cases {
		if got := StorageDriverForbidden(c.in); got != c.want {
			t.Fatalf("StorageDriverForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(InternalImportForbidden, StorageDriverForbidden)
	if !pred("modernc.org/sqlite") || !pred("x/internal/y") {
		t.Fatalf("expected combined predicate to match both")
	}
	if pred("fmt") {
		t.Fatalf("expected fmt to be allowed")
	}
}

func TestAssertNoDirectImportsIgnoresTestFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("x.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}\n")
	write("x_test.go", "package tmp\nimport \"forbidden/pkg\"\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	AssertNoDirectImports(t, dir, func(p string) bool { return p == "forbidden/pkg" }, "none")
}

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := "package tmp\nimport (\n\t\"fmt\"\n\t\"forbidden/pkg\"\n)\nfunc X(){fmt.Println(1)}\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, func(p string) bool { return p == "forbidden/pkg" })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "bad.go") {
		t.Fatalf("unexpected violations %v", viols)
	}
	var c captureFatal
	failIfDirectViolations(&c, "reason", viols)
	if !strings.Contains(c.msg, "forbidden/pkg") {
		t.Fatalf("expected failure message to list violation, got %q", c.msg)
	}
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package tmp\nimport (\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}
