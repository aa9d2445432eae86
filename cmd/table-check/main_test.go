package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp table: %v", err)
	}
	return path
}

func TestCLICleanTable(t *testing.T) {
	path := writeTempTable(t, `{"1":10,"2":6,"3":3,"4":1}`)
	var stdout, stderr bytes.Buffer

	if code := cli([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Allocation tables passed.") {
		t.Fatalf("unexpected output: %s", stdout.String())
	}
}

func TestCLIReportsDefectsLenient(t *testing.T) {
	path := writeTempTable(t, `{"0":5,"2":"six","3":3}`)
	var stdout, stderr bytes.Buffer

	if code := cli([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("lenient mode should pass, got %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, `entry "0" dropped: rank must be at least 1`) {
		t.Fatalf("missing rank defect: %s", out)
	}
	if !strings.Contains(out, `entry "2" dropped: points value is not an integer`) {
		t.Fatalf("missing points defect: %s", out)
	}
	if !strings.Contains(out, "2 defective entries would be dropped") {
		t.Fatalf("missing summary: %s", out)
	}
}

func TestCLIStrictFailsOnDefects(t *testing.T) {
	path := writeTempTable(t, `{"0":5,"2":"six","3":3}`)
	var stdout, stderr bytes.Buffer

	if code := cli([]string{"-strict", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "2 defective entries") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestCLIVariantLayout(t *testing.T) {
	path := writeTempTable(t, `{"general":{"1":10},"relay":{"0":1},"veteran":{"1":2}}`)
	var stdout, stderr bytes.Buffer

	if code := cli([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, `variant relay: entry "0" dropped`) {
		t.Fatalf("missing relay defect: %s", out)
	}
	if !strings.Contains(out, `unknown variant "veteran"`) {
		t.Fatalf("missing variant defect: %s", out)
	}
}

func TestCLIMultipleFiles(t *testing.T) {
	clean := writeTempTable(t, `{"1":10}`)
	dirty := filepath.Join(t.TempDir(), "dirty.json")
	if err := os.WriteFile(dirty, []byte(`{"-1":4}`), 0o600); err != nil {
		t.Fatalf("write temp table: %v", err)
	}
	var stdout, stderr bytes.Buffer

	if code := cli([]string{"-strict", clean, dirty}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), `entry "-1" dropped`) {
		t.Fatalf("missing defect from second file: %s", stdout.String())
	}
}

func TestCLIErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("expected usage message, got %s", stderr.String())
	}

	stderr.Reset()
	if code := cli([]string{"-bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected flag exit 2, got %d", code)
	}

	stderr.Reset()
	if code := cli([]string{filepath.Join(t.TempDir(), "missing.json")}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for missing file, got %d", code)
	}
	if !strings.Contains(stderr.String(), "table check failed") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}

	stderr.Reset()
	bad := writeTempTable(t, "not json")
	if code := cli([]string{bad}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for bad json, got %d", code)
	}
}

func TestCheckFileSingleTableWithStringPoints(t *testing.T) {
	// A bare table whose values are not all objects must not be mistaken for
	// a variant map.
	path := writeTempTable(t, `{"1":10,"2":{"nested":1}}`)
	var stdout bytes.Buffer

	defects, err := checkFile(path, &stdout)
	if err != nil {
		t.Fatalf("checkFile: %v", err)
	}
	if defects != 1 {
		t.Fatalf("expected 1 defect for the object value, got %d", defects)
	}
	if !strings.Contains(stdout.String(), `entry "2" dropped: points value is not an integer`) {
		t.Fatalf("unexpected output: %s", stdout.String())
	}
}
