/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", filepath.Join(t.TempDir(), ".env"), nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultFileConfig(), cfg); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}
	if cfg.CollectionOptions.PartitionKeyPath != "/lastName" || cfg.CollectionOptions.Throughput != 400 {
		t.Errorf("unexpected collection options: %+v", cfg.CollectionOptions)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTemp(t, dir, "docstore.yaml", `
backend: dynamodb
settings:
  region: eu-west-1
  endpoint: http://localhost:8000
  tablePrefix: test.
database: FromFile
collection: FromFile
collectionOptions:
  partitionKeyPath: /tenant
  throughput: 1000
  indexingPolicy:
    mode: lazy
    includedPaths: ["/name/?"]
`)
	envFile := writeTemp(t, dir, ".env", `
DOCSTORE_DATABASE=FromDotenv
DOCSTORE_COLLECTION=FromDotenv
DOCSTORE_ACCESS_KEY=dotenv-key
`)
	env := map[string]string{
		EnvCollection: "FromEnv",
		EnvThroughput: "500",
	}

	cfg, err := LoadConfig(configPath, envFile, env)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := FileConfig{
		Backend: "dynamodb",
		Settings: datastore.Settings{
			Endpoint:    "http://localhost:8000",
			Region:      "eu-west-1",
			AccessKey:   "dotenv-key",
			Path:        DefaultPath,
			TablePrefix: "test.",
		},
		Database:   "FromDotenv",
		Collection: "FromEnv",
		CollectionOptions: storagemodels.CollectionOptions{
			PartitionKeyPath: "/tenant",
			Throughput:       500,
			IndexingPolicy: storagemodels.IndexingPolicy{
				Mode:          storagemodels.IndexingLazy,
				IncludedPaths: []string{"/name/?"},
			},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTemp(t, dir, "other.yaml", "database: Other\n")

	cfg, err := LoadConfig("", "", map[string]string{EnvConfig: configPath})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database != "Other" {
		t.Errorf("Database = %q, want Other", cfg.Database)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  string
		env     map[string]string
		wantErr error
	}{
		{
			name:    "unknown field",
			config:  "backnd: sqlite\n",
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "bad throughput",
			env:     map[string]string{EnvThroughput: "lots"},
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "empty database",
			env:     map[string]string{EnvDatabase: ""},
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "nested partition key path",
			env:     map[string]string{EnvPartitionKeyPath: "/address/city"},
			wantErr: errors.ErrInvalidInput,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var configPath string
			if tt.config != "" {
				configPath = writeTemp(t, dir, filepath.Base(t.Name())+".yaml", tt.config)
			}
			_, err := LoadConfig(configPath, filepath.Join(dir, "missing.env"), tt.env)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("case %d: got %v, want %v", i, err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "absent.yaml"), "", nil); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"Andersen", "Andersen"},
		{"5", 5.0},
		{"-1.5", -1.5},
		{"true", true},
		{"false", false},
		{"'5'", "5"},
		{`"true"`, "true"},
		{"'", "'"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseLiteral(tt.raw); got != tt.want {
			t.Errorf("parseLiteral(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeDocuments(t *testing.T) {
	docs, err := decodeDocuments([]byte(`{"id": "a"}
[{"id": "b"}, {"id": "c"}]
{"id": "d"}`))
	if err != nil {
		t.Fatalf("decodeDocuments failed: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}

	for _, bad := range []string{`null`, `"text"`, `{"id": `, `[1, 2]`} {
		if _, err := decodeDocuments([]byte(bad)); err == nil {
			t.Errorf("decodeDocuments(%s) succeeded, want error", bad)
		}
	}
}
