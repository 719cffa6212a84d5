/*
Package docstore is a client layer for schemaless document stores with
idempotent provisioning, partition-aware document operations and a dual-mode
query interface.

Key Features:
  - Create-if-absent provisioning of databases and collections, safe on every
    process start and under concurrent callers
  - Type-safe document operations using Go generics
  - Partition keys passed alongside the document address, never inside it
  - Structured and raw-text queries that return the same results in the same order
  - Optional version tokens (IfMatch) for read-modify-write sequences
  - Pluggable transports: DynamoDB, SQLite and in-memory
  - Semantic error kinds for not-found, already-exists, throttling and more

Basic Usage:

	import (
	    "github.com/suparena/docstore"
	    "github.com/suparena/docstore/datastore"
	    _ "github.com/suparena/docstore/datastore/sqlite"
	)

	// Open a transport
	t, _ := datastore.Open(ctx, "sqlite", datastore.Settings{Path: "families.db"})

	// Provision FamilyDB/FamilyCollection and bind a typed client
	cfg := docstore.DefaultConfig("FamilyDB", "FamilyCollection")
	cfg.CollectionOptions.PartitionKeyPath = "/lastName"
	families, _ := docstore.NewClient[Family](ctx, t, cfg)

	// Idempotent insert
	status, _ := families.CreateIfAbsent(ctx, andersen)

	// Structured and raw queries
	for f, err := range families.NewQuery().WhereEqual("lastName", "Andersen").Execute(ctx) {
	    ...
	}
	for f, err := range families.QueryText(ctx, "SELECT * FROM f WHERE f.lastName = 'Andersen'") {
	    ...
	}

	// Conditional replace
	item, _ := families.Read(ctx, "Andersen.1", storagemodels.WithPartitionKey("Andersen"))
	item.Value.Children[0].Grade = 6
	_, err := families.Replace(ctx, item.ID, item.Value, storagemodels.IfMatch(item.ETag))
*/
package docstore
