/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/internal/cli"
)

// testCLI runs the CLI against a SQLite file in a temp directory.
type testCLI struct {
	t   *testing.T
	dir string
	env map[string]string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	return &testCLI{
		t:   t,
		dir: dir,
		env: map[string]string{
			cli.EnvBackend: "sqlite",
			cli.EnvPath:    filepath.Join(dir, "docstore.db"),
		},
	}
}

func (c *testCLI) runWithInput(stdin string, args ...string) (string, string, int) {
	var out, errOut bytes.Buffer
	full := append([]string{"docstore", "--env-file", filepath.Join(c.dir, ".env")}, args...)
	code := cli.Run(strings.NewReader(stdin), &out, &errOut, full, c.env, nil)
	return out.String(), errOut.String(), code
}

func (c *testCLI) run(args ...string) (string, string, int) {
	return c.runWithInput("", args...)
}

func (c *testCLI) mustRun(args ...string) string {
	c.t.Helper()
	stdout, stderr, code := c.run(args...)
	if code != 0 {
		c.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}
	return strings.TrimSpace(stdout)
}

func (c *testCLI) mustFail(args ...string) string {
	c.t.Helper()
	_, stderr, code := c.run(args...)
	if code == 0 {
		c.t.Fatalf("command %v succeeded, expected failure", args)
	}
	return strings.TrimSpace(stderr)
}

func (c *testCLI) writeFile(name, content string) string {
	c.t.Helper()
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		c.t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestVersion(t *testing.T) {
	c := newTestCLI(t)
	out := c.mustRun("--version")
	if !strings.Contains(out, docstore.Version) {
		t.Errorf("version output %q does not contain %s", out, docstore.Version)
	}
}

func TestUsage(t *testing.T) {
	c := newTestCLI(t)
	out := c.mustRun()
	for _, cmd := range []string{"provision", "insert", "query", "update", "delete", "teardown", "demo"} {
		if !strings.Contains(out, "  "+cmd) {
			t.Errorf("usage does not list %s:\n%s", cmd, out)
		}
	}

	stderr := c.mustFail("frobnicate")
	if !strings.Contains(stderr, "unknown command: frobnicate") {
		t.Errorf("unexpected stderr: %s", stderr)
	}
}

func TestCommandHelp(t *testing.T) {
	c := newTestCLI(t)
	out := c.mustRun("query", "--help")
	if !strings.HasPrefix(out, "Usage: docstore query") || !strings.Contains(out, "--where") {
		t.Errorf("unexpected help output:\n%s", out)
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	c := newTestCLI(t)

	got := lines(c.mustRun("provision"))
	want := []string{"database FamilyDB: Created", "collection FamilyCollection: Created"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first provision (-want +got):\n%s", diff)
	}

	got = lines(c.mustRun("provision"))
	want = []string{"database FamilyDB: Found", "collection FamilyCollection: Found"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("second provision (-want +got):\n%s", diff)
	}
}

func TestDocumentCommands(t *testing.T) {
	c := newTestCLI(t)

	input := `{"id": "Andersen.1", "lastName": "Andersen", "grade": 5}
[{"id": "Wakefield.7", "lastName": "Wakefield", "grade": 8},
 {"id": "Andersen.2", "lastName": "Andersen", "grade": "5"}]`

	stdout, stderr, code := c.runWithInput(input, "insert")
	if code != 0 {
		t.Fatalf("insert failed: %s", stderr)
	}
	want := []string{"Andersen.1\tCreated", "Wakefield.7\tCreated", "Andersen.2\tCreated"}
	if diff := cmp.Diff(want, lines(strings.TrimSpace(stdout))); diff != "" {
		t.Errorf("insert (-want +got):\n%s", diff)
	}

	stdout, _, _ = c.runWithInput(`{"id": "Andersen.1", "lastName": "Andersen", "grade": 99}`, "insert", "-")
	if strings.TrimSpace(stdout) != "Andersen.1\tFound" {
		t.Errorf("second insert = %q, want Found", stdout)
	}

	t.Run("Query", func(t *testing.T) {
		ids := func(out string) []string {
			var got []string
			for _, line := range lines(out) {
				var doc map[string]any
				if err := json.Unmarshal([]byte(line), &doc); err != nil {
					t.Fatalf("query output %q is not JSON: %v", line, err)
				}
				got = append(got, doc["id"].(string))
			}
			return got
		}

		structured := ids(c.mustRun("query", "--where", "lastName=Andersen"))
		raw := ids(c.mustRun("query", "--sql", "SELECT * FROM f WHERE f.lastName = 'Andersen'"))
		if diff := cmp.Diff([]string{"Andersen.1", "Andersen.2"}, structured); diff != "" {
			t.Errorf("structured query (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(structured, raw); diff != "" {
			t.Errorf("raw query differs from structured (-structured +raw):\n%s", diff)
		}

		if diff := cmp.Diff([]string{"Andersen.1"}, ids(c.mustRun("query", "-w", "grade=5"))); diff != "" {
			t.Errorf("numeric query (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Andersen.2"}, ids(c.mustRun("query", "-w", "grade='5'"))); diff != "" {
			t.Errorf("string query (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Wakefield.7"}, ids(c.mustRun("query", "-p", "Wakefield"))); diff != "" {
			t.Errorf("partition query (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Andersen.1", "Wakefield.7", "Andersen.2"}, ids(c.mustRun("query", "--max-items", "1"))); diff != "" {
			t.Errorf("paged query (-want +got):\n%s", diff)
		}

		stderr := c.mustFail("query", "--sql", "SELECT * FROM f WHERE f.a > 1")
		if !strings.HasPrefix(stderr, "Malformed:") {
			t.Errorf("unexpected stderr: %s", stderr)
		}
	})

	t.Run("ReadUpdate", func(t *testing.T) {
		var doc map[string]any
		if err := json.Unmarshal([]byte(c.mustRun("read", "Andersen.1", "-p", "Andersen")), &doc); err != nil {
			t.Fatalf("read output is not JSON: %v", err)
		}
		if doc["grade"] != 5.0 {
			t.Errorf("grade = %v, want 5", doc["grade"])
		}

		stale := c.writeFile("stale.json", `{"id": "Andersen.1", "lastName": "Andersen", "grade": 7}`)
		stderr := c.mustFail("update", stale, "--if-match", `"stale"`)
		if !strings.HasPrefix(stderr, "PreconditionFailed:") {
			t.Errorf("unexpected stderr: %s", stderr)
		}

		doc["grade"] = 6
		data, _ := json.Marshal(doc)
		updated := c.writeFile("updated.json", string(data))
		if out := c.mustRun("update", updated, "--if-match", doc["_etag"].(string)); out != "Andersen.1\tReplaced" {
			t.Errorf("update = %q", out)
		}

		if err := json.Unmarshal([]byte(c.mustRun("read", "Andersen.1", "-p", "Andersen")), &doc); err != nil {
			t.Fatalf("read output is not JSON: %v", err)
		}
		if doc["grade"] != 6.0 {
			t.Errorf("grade = %v, want 6", doc["grade"])
		}

		missing := c.writeFile("missing.json", `{"id": "Nobody.1", "lastName": "Nobody"}`)
		if stderr := c.mustFail("update", missing); !strings.HasPrefix(stderr, "NotFound:") {
			t.Errorf("unexpected stderr: %s", stderr)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if out := c.mustRun("delete", "Andersen.1", "-p", "Andersen"); out != "Andersen.1\tDeleted" {
			t.Errorf("delete = %q", out)
		}
		if stderr := c.mustFail("delete", "Andersen.1", "-p", "Andersen"); !strings.HasPrefix(stderr, "NotFound:") {
			t.Errorf("unexpected stderr: %s", stderr)
		}
		if stderr := c.mustFail("delete", "Andersen.2"); !strings.HasPrefix(stderr, "InvalidInput:") {
			t.Errorf("delete without partition key: %s", stderr)
		}
	})

	if out := c.mustRun("teardown"); out != "database FamilyDB: Deleted" {
		t.Errorf("teardown = %q", out)
	}
	if stderr := c.mustFail("teardown"); !strings.HasPrefix(stderr, "NotFound:") {
		t.Errorf("second teardown: %s", stderr)
	}
}

func TestDemo(t *testing.T) {
	c := newTestCLI(t)
	c.env[cli.EnvBackend] = "memory"

	out := c.mustRun("demo")
	want := []string{
		"Created database FamilyDB",
		"Created collection FamilyCollection",
		"Created family Andersen.1",
		"Created family Wakefield.7",
		"Replaced family Andersen.1",
		"Deleted family Andersen.1",
		"Deleted database FamilyDB",
	}
	var got []string
	for _, line := range lines(out) {
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, "Running") {
			got = append(got, line)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("demo steps (-want +got):\n%s", diff)
	}

	reads := strings.Count(out, "\tRead ")
	if reads != 4 {
		t.Errorf("expected 4 query results, got %d:\n%s", reads, out)
	}
	before, after, _ := strings.Cut(out, "Replaced family Andersen.1")
	if !strings.Contains(before, `"grade":5`) || !strings.Contains(after, `"grade":6`) {
		t.Errorf("replace not visible in query results:\n%s", out)
	}
	for _, line := range lines(out) {
		if strings.HasPrefix(line, "\tRead ") && strings.Contains(line, `"id":"Wakefield.7"`) {
			t.Errorf("query returned a non-matching family: %s", line)
		}
	}
}

func TestDemoKeepIsRepeatable(t *testing.T) {
	c := newTestCLI(t)

	c.mustRun("demo", "--keep")
	out := c.mustRun("demo", "--keep")
	for _, line := range []string{"Found database FamilyDB", "Found collection FamilyCollection", "Found family Andersen.1", "Found family Wakefield.7"} {
		if !strings.Contains(out, line) {
			t.Errorf("second run missing %q:\n%s", line, out)
		}
	}
	if n := len(lines(c.mustRun("query"))); n != 2 {
		t.Errorf("expected 2 documents after two runs, got %d", n)
	}
}

func TestConfigErrorsAreReported(t *testing.T) {
	c := newTestCLI(t)
	c.env[cli.EnvBackend] = "nosuchbackend"

	stderr := c.mustFail("provision")
	if !strings.HasPrefix(stderr, "NotFound:") {
		t.Errorf("unexpected stderr: %s", stderr)
	}

	c.env[cli.EnvBackend] = "sqlite"
	c.env[cli.EnvThroughput] = "lots"
	if stderr := c.mustFail("provision"); !strings.HasPrefix(stderr, "InvalidInput:") {
		t.Errorf("unexpected stderr: %s", stderr)
	}
}
