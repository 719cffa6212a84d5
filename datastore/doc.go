/*
Package datastore defines the transport layer docstore clients talk through.

The main interface is Transport, which executes resource-level requests
addressed by storagemodels.Path:

	type Transport interface {
	    ReadResource(ctx, path, opts) (storagemodels.Document, error)
	    CreateResource(ctx, path, body, opts) (storagemodels.Document, error)
	    ReplaceResource(ctx, path, body, opts) (storagemodels.Document, error)
	    DeleteResource(ctx, path, opts) error
	    ExecuteQuery(ctx, path, spec, feedOpts) iter.Seq2[storagemodels.Document, error]
	}

Implementations:
  - ddb: DynamoDB, one table per database and one per collection
  - sqlite: local SQLite file, useful as an emulator
  - mock: in-memory transport with failure injection for testing

Backends register themselves by name in init, like database/sql drivers:

	import _ "github.com/suparena/docstore/datastore/sqlite"

	t, err := datastore.Open(ctx, "sqlite", datastore.Settings{Path: "docstore.db"})
*/
package datastore
