package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{line: "QUEUE_BACKEND=sqs", key: "QUEUE_BACKEND", val: "sqs", ok: true},
		{line: `export LEGACY_BILLING_URL="http://legacy:8001"`, key: "LEGACY_BILLING_URL", val: "http://legacy:8001", ok: true},
		{line: "RABBITMQ_QUEUE='bill-run-jobs'", key: "RABBITMQ_QUEUE", val: "bill-run-jobs", ok: true},
		{line: "# comment"},
		{line: "NOEQUALS"},
		{line: "=value"},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, val, ok)
		}
	}
}

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BILLING_TEST_SET=file\nBILLING_TEST_UNSET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BILLING_TEST_SET", "process")
	t.Setenv("BILLING_TEST_UNSET", "")
	os.Unsetenv("BILLING_TEST_UNSET")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("BILLING_TEST_SET"); got != "process" {
		t.Fatalf("expected process value kept, got %q", got)
	}
	if got := os.Getenv("BILLING_TEST_UNSET"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
