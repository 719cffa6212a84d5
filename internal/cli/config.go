/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/sqlite"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/sample"
	"github.com/suparena/docstore/storagemodels"
)

// Environment variables read by LoadConfig. Values from the process
// environment take precedence over values from the .env file.
const (
	EnvConfig           = "DOCSTORE_CONFIG"
	EnvBackend          = "DOCSTORE_BACKEND"
	EnvEndpoint         = "DOCSTORE_ENDPOINT"
	EnvRegion           = "DOCSTORE_REGION"
	EnvAccessKey        = "DOCSTORE_ACCESS_KEY"
	EnvSecretKey        = "DOCSTORE_SECRET_KEY"
	EnvPath             = "DOCSTORE_PATH"
	EnvTablePrefix      = "DOCSTORE_TABLE_PREFIX"
	EnvDatabase         = "DOCSTORE_DATABASE"
	EnvCollection       = "DOCSTORE_COLLECTION"
	EnvPartitionKeyPath = "DOCSTORE_PARTITION_KEY_PATH"
	EnvThroughput       = "DOCSTORE_THROUGHPUT"
)

// DefaultPath is the SQLite file used when no backend is configured.
const DefaultPath = "docstore.db"

// FileConfig is the on-disk configuration of the CLI.
//
//	backend: dynamodb
//	settings:
//	  region: us-east-1
//	  endpoint: http://localhost:8000
//	database: FamilyDB
//	collection: FamilyCollection
//	collectionOptions:
//	  partitionKeyPath: /lastName
//	  throughput: 400
type FileConfig struct {
	Backend           string                         `yaml:"backend"`
	Settings          datastore.Settings             `yaml:"settings"`
	Database          string                         `yaml:"database"`
	Collection        string                         `yaml:"collection"`
	CollectionOptions storagemodels.CollectionOptions `yaml:"collectionOptions"`
}

// DefaultFileConfig targets the sample family collection in a local SQLite
// file.
func DefaultFileConfig() FileConfig {
	opts := storagemodels.DefaultCollectionOptions()
	opts.PartitionKeyPath = sample.PartitionKeyPath
	return FileConfig{
		Backend:           sqlite.BackendName,
		Settings:          datastore.Settings{Path: DefaultPath},
		Database:          sample.DatabaseName,
		Collection:        sample.CollectionName,
		CollectionOptions: opts,
	}
}

// ClientConfig returns the client configuration for the configured address.
func (c FileConfig) ClientConfig() docstore.Config {
	cfg := docstore.DefaultConfig(c.Database, c.Collection)
	cfg.CollectionOptions = c.CollectionOptions
	return cfg
}

// Validate checks that the configuration names a backend and a usable
// address.
func (c FileConfig) Validate() error {
	if c.Backend == "" {
		return errors.NewValidationError("backend", "backend is required")
	}
	if err := c.ClientConfig().Address().Validate(); err != nil {
		return err
	}
	return c.CollectionOptions.Validate()
}

// LoadConfig builds the configuration from defaults, the YAML file at
// configPath, the dotenv file at envFile and env, in increasing order of
// precedence. An empty configPath falls back to DOCSTORE_CONFIG; when neither
// is set no file is read. A missing envFile is ignored.
func LoadConfig(configPath, envFile string, env map[string]string) (FileConfig, error) {
	cfg := DefaultFileConfig()

	merged, err := mergeEnv(envFile, env)
	if err != nil {
		return cfg, err
	}

	if configPath == "" {
		configPath = merged[EnvConfig]
	}
	if configPath != "" {
		if err := readConfigFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, merged); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// mergeEnv overlays env on the values read from envFile.
func mergeEnv(envFile string, env map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			for k, v := range values {
				merged[k] = v
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	for k, v := range env {
		merged[k] = v
	}
	return merged, nil
}

func readConfigFile(path string, cfg *FileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return errors.NewValidationError("config", fmt.Sprintf("%s: %v", path, err))
	}
	return nil
}

func applyEnv(cfg *FileConfig, env map[string]string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvBackend, &cfg.Backend},
		{EnvEndpoint, &cfg.Settings.Endpoint},
		{EnvRegion, &cfg.Settings.Region},
		{EnvAccessKey, &cfg.Settings.AccessKey},
		{EnvSecretKey, &cfg.Settings.SecretKey},
		{EnvPath, &cfg.Settings.Path},
		{EnvTablePrefix, &cfg.Settings.TablePrefix},
		{EnvDatabase, &cfg.Database},
		{EnvCollection, &cfg.Collection},
		{EnvPartitionKeyPath, &cfg.CollectionOptions.PartitionKeyPath},
	}
	for _, s := range strs {
		if v, ok := env[s.key]; ok {
			*s.dst = v
		}
	}

	if v, ok := env[EnvThroughput]; ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return errors.NewValidationError(EnvThroughput, fmt.Sprintf("not an integer: %q", v))
		}
		cfg.CollectionOptions.Throughput = int32(n)
	}
	return nil
}
