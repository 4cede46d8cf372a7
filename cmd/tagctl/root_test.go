package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

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

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFormatCommand(t *testing.T) {
	dict := writeFile(t, "dict.yaml", "- Java\n- Go\n")

	out, err := run(t, "format", "--dictionary", dict, "go，java；rust;c;zig")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if strings.TrimSpace(out) != "Go,Java,rust,c" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFormatCommandJSON(t *testing.T) {
	out, err := run(t, "format", "--json", "--max-length", "20", "js,VeryLongTagTitle")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	var got struct {
		Tags  string   `json:"tags"`
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Tags != "JavaScript,VeryLongTagTitle" || len(got.Items) != 2 {
		t.Fatalf("unexpected output %+v", got)
	}
}

func TestFormatCommandReserved(t *testing.T) {
	rules := writeFile(t, "rules.yaml", "reserved: [admin]\nwhitelist: [C#]\n")

	if _, err := run(t, "format", "--rules", rules, "go,admin"); !errors.Is(err, errReserved) {
		t.Fatalf("expected errReserved, got %v", err)
	}
}

func TestHeadCommand(t *testing.T) {
	out, err := run(t, "head", "a,b,c", "2")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if strings.TrimSpace(out) != "a,b" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := run(t, "head", "a,b,c", "two"); err == nil {
		t.Fatalf("expected error for non-numeric n")
	}
}

func TestCheckCommand(t *testing.T) {
	rules := writeFile(t, "rules.yaml", "reserved: [admin]\nwhitelist: [C#]\n")

	out, err := run(t, "check", "--rules", rules, "c#")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if strings.TrimSpace(out) != "reserved=false whitelisted=true" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCommandsRequireArgs(t *testing.T) {
	for _, args := range [][]string{{"format"}, {"head", "a"}, {"check"}} {
		if _, err := run(t, args...); err == nil {
			t.Fatalf("%v: expected argument error", args)
		}
	}
}

func TestMissingDictionaryFile(t *testing.T) {
	if _, err := run(t, "format", "--dictionary", filepath.Join(t.TempDir(), "missing.yaml"), "go"); err == nil {
		t.Fatalf("expected error for missing dictionary")
	}
}

func TestRulesCommand(t *testing.T) {
	rules := writeFile(t, "rules.yaml", "reserved: [Admin]\nwhitelist: [C#]\nsynonyms:\n  Kubernetes: [k8s]\n")

	out, err := run(t, "rules", "--json", "--rules", rules, "--max-length", "12")
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	var got struct {
		Reserved       []string            `json:"reserved"`
		Whitelist      []string            `json:"whitelist"`
		Synonyms       map[string][]string `json:"synonyms"`
		MaxTitleLength int                 `json:"maxTitleLength"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got.Reserved) != 1 || got.Reserved[0] != "Admin" {
		t.Fatalf("reserved words must keep their configured spelling, got %v", got.Reserved)
	}
	if len(got.Whitelist) != 1 || got.Whitelist[0] != "C#" {
		t.Fatalf("unexpected whitelist %v", got.Whitelist)
	}
	if len(got.Synonyms["Kubernetes"]) != 1 || got.MaxTitleLength != 12 {
		t.Fatalf("unexpected rules %+v", got)
	}

	if _, err := run(t, "rules", "--max-length", "0"); err == nil {
		t.Fatalf("expected error for non-positive max length")
	}
}
