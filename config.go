/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"log/slog"

	"github.com/suparena/docstore/storagemodels"
)

// Config holds configuration for a Client.
type Config struct {
	// Database is the database the client provisions and addresses.
	Database string

	// Collection is the collection within Database.
	Collection string

	// CollectionOptions apply when the collection is created. They are not
	// reconciled with an existing collection.
	// Default: storagemodels.DefaultCollectionOptions()
	//
	// An empty PartitionKeyPath falls back to the path registered for the
	// document type with registry.RegisterPartitionKeyPath, and otherwise
	// leaves the collection unpartitioned.
	CollectionOptions storagemodels.CollectionOptions

	// Logger receives provisioning decisions at Info and document outcomes
	// at Debug.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns a configuration for database and collection with the
// default collection options.
func DefaultConfig(database, collection string) Config {
	return Config{
		Database:          database,
		Collection:        collection,
		CollectionOptions: storagemodels.DefaultCollectionOptions(),
	}
}

// Address returns the database and collection the config points at.
func (c Config) Address() storagemodels.StoreAddress {
	return storagemodels.StoreAddress{Database: c.Database, Collection: c.Collection}
}

// validate fills in defaults and rejects unusable names and options.
func (c *Config) validate() error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CollectionOptions.IndexingPolicy.Mode == "" {
		c.CollectionOptions.IndexingPolicy.Mode = storagemodels.IndexingConsistent
	}
	if len(c.CollectionOptions.IndexingPolicy.IncludedPaths) == 0 {
		c.CollectionOptions.IndexingPolicy.IncludedPaths = []string{"/*"}
	}
	if err := c.Address().Validate(); err != nil {
		return err
	}
	return c.CollectionOptions.Validate()
}
