/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite_test

import (
	"context"
	"iter"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/sqlite"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

var (
	dbPath   = storagemodels.DatabasePath("D")
	collPath = storagemodels.CollectionPath("D", "C")
	noOpts   = storagemodels.RequestOptions{}
)

func pk(value string) storagemodels.RequestOptions {
	return storagemodels.RequestOptions{PartitionKey: &storagemodels.PartitionKey{Path: "/lastName", Value: value}}
}

// openProvisioned opens a fresh store with database D and collection C
// partitioned on /lastName.
func openProvisioned(t *testing.T) *sqlite.Transport {
	t.Helper()
	ctx := context.Background()

	tr, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "docstore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	_, err = tr.CreateResource(ctx, dbPath, nil, noOpts)
	require.NoError(t, err)

	opts := storagemodels.DefaultCollectionOptions()
	opts.PartitionKeyPath = "/lastName"
	_, err = tr.CreateResource(ctx, collPath, storagemodels.CollectionDocument("C", opts), storagemodels.RequestOptions{Throughput: opts.Throughput})
	require.NoError(t, err)
	return tr
}

func ifMatch(opts storagemodels.RequestOptions, etag string) storagemodels.RequestOptions {
	opts.IfMatch = etag
	return opts
}

func family(id, lastName string, grade float64) storagemodels.Document {
	return storagemodels.Document{"id": id, "lastName": lastName, "grade": grade, "isRegistered": grade > 5}
}

func ids(t *testing.T, seq iter.Seq2[storagemodels.Document, error]) []string {
	t.Helper()
	var out []string
	for doc, err := range seq {
		require.NoError(t, err)
		out = append(out, doc.ID())
	}
	return out
}

func TestProvisioning(t *testing.T) {
	ctx := context.Background()
	tr, err := sqlite.Open(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.ReadResource(ctx, dbPath, noOpts)
	require.True(t, errors.IsNotFound(err), "got %v", err)

	_, err = tr.CreateResource(ctx, collPath, nil, noOpts)
	require.True(t, errors.IsNotFound(err), "collection without database: %v", err)

	created, err := tr.CreateResource(ctx, dbPath, nil, noOpts)
	require.NoError(t, err)
	require.NotEmpty(t, created.ETag())

	_, err = tr.CreateResource(ctx, dbPath, nil, noOpts)
	require.True(t, errors.IsAlreadyExists(err), "got %v", err)

	body := storagemodels.CollectionDocument("C", storagemodels.DefaultCollectionOptions())
	_, err = tr.CreateResource(ctx, collPath, body, storagemodels.RequestOptions{Throughput: 400})
	require.NoError(t, err)
	_, err = tr.CreateResource(ctx, collPath, body, noOpts)
	require.True(t, errors.IsAlreadyExists(err), "got %v", err)

	doc, err := tr.ReadResource(ctx, collPath, noOpts)
	require.NoError(t, err)
	require.Equal(t, 400.0, doc["throughput"])

	require.NoError(t, tr.DeleteResource(ctx, dbPath, noOpts))
	_, err = tr.ReadResource(ctx, collPath, noOpts)
	require.True(t, errors.IsNotFound(err), "collection must go with its database: %v", err)
	require.True(t, errors.IsNotFound(tr.DeleteResource(ctx, dbPath, noOpts)))
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := openProvisioned(t)
	path := storagemodels.DocumentPath("D", "C", "Andersen.1")

	created, err := tr.CreateResource(ctx, path, family("Andersen.1", "Andersen", 5), noOpts)
	require.NoError(t, err)

	_, err = tr.CreateResource(ctx, path, family("Andersen.1", "Andersen", 9), noOpts)
	require.True(t, errors.IsAlreadyExists(err), "got %v", err)

	// Same id in another partition is a different document.
	_, err = tr.CreateResource(ctx, path, family("Andersen.1", "Wakefield", 1), noOpts)
	require.NoError(t, err)

	got, err := tr.ReadResource(ctx, path, pk("Andersen"))
	require.NoError(t, err)
	require.Equal(t, 5.0, got["grade"])
	require.Equal(t, created.ETag(), got.ETag())

	_, err = tr.ReadResource(ctx, path, noOpts)
	require.True(t, errors.IsValidationError(err), "read without partition key: %v", err)

	_, err = tr.ReplaceResource(ctx, path, family("Andersen.1", "Andersen", 6), ifMatch(pk("Andersen"), `"stale"`))
	require.True(t, errors.IsConditionFailed(err), "got %v", err)

	replaced, err := tr.ReplaceResource(ctx, path, family("Andersen.1", "Andersen", 6), ifMatch(pk("Andersen"), created.ETag()))
	require.NoError(t, err)
	require.NotEqual(t, created.ETag(), replaced.ETag())

	got, err = tr.ReadResource(ctx, path, pk("Andersen"))
	require.NoError(t, err)
	require.Equal(t, 6.0, got["grade"])

	missing := storagemodels.DocumentPath("D", "C", "Nobody.0")
	_, err = tr.ReplaceResource(ctx, missing, family("Nobody.0", "Andersen", 1), noOpts)
	require.True(t, errors.IsNotFound(err), "got %v", err)

	require.NoError(t, tr.DeleteResource(ctx, path, pk("Andersen")))
	require.True(t, errors.IsNotFound(tr.DeleteResource(ctx, path, pk("Andersen"))))

	_, err = tr.ReadResource(ctx, path, pk("Wakefield"))
	require.NoError(t, err, "other partition must be untouched")
}

func TestConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	tr := openProvisioned(t)
	path := storagemodels.DocumentPath("D", "C", "Andersen.1")

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = tr.CreateResource(ctx, path, family("Andersen.1", "Andersen", float64(i)), noOpts)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errors.IsAlreadyExists(err), "got %v", err)
	}
	require.Equal(t, 1, wins)
}

func TestExecuteQuery(t *testing.T) {
	ctx := context.Background()
	tr := openProvisioned(t)

	docs := []storagemodels.Document{
		family("Wakefield.7", "Wakefield", 8),
		family("Andersen.1", "Andersen", 5),
		{"id": "Odd.1", "lastName": "Odd", "grade": "5", "isRegistered": 1.0},
		family("Andersen.2", "Andersen", 6),
	}
	for _, d := range docs {
		_, err := tr.CreateResource(ctx, storagemodels.DocumentPath("D", "C", d.ID()), d, noOpts)
		require.NoError(t, err)
	}
	all := storagemodels.NewFeedOptions()

	t.Run("InsertionOrder", func(t *testing.T) {
		got := ids(t, tr.ExecuteQuery(ctx, collPath, query.All(), all))
		require.Equal(t, []string{"Wakefield.7", "Andersen.1", "Odd.1", "Andersen.2"}, got)
	})

	t.Run("TypedComparison", func(t *testing.T) {
		got := ids(t, tr.ExecuteQuery(ctx, collPath, query.Structured(query.Equal("grade", 5)), all))
		require.Equal(t, []string{"Andersen.1"}, got)

		got = ids(t, tr.ExecuteQuery(ctx, collPath, query.Structured(query.Equal("isRegistered", true)), all))
		require.Equal(t, []string{"Wakefield.7", "Andersen.2"}, got)
	})

	t.Run("RawMatchesStructured", func(t *testing.T) {
		structured := ids(t, tr.ExecuteQuery(ctx, collPath, query.Structured(query.Equal("lastName", "Andersen")), all))
		raw := ids(t, tr.ExecuteQuery(ctx, collPath, query.MustParseText("SELECT * FROM f WHERE f.lastName = 'Andersen'"), all))
		require.Equal(t, []string{"Andersen.1", "Andersen.2"}, structured)
		require.Equal(t, structured, raw)
	})

	t.Run("Paging", func(t *testing.T) {
		var pages int
		opts := storagemodels.NewFeedOptions(
			storagemodels.WithMaxItemCount(1),
			storagemodels.WithProgressHandler(func(p storagemodels.FeedProgress) { pages = p.PagesProcessed }),
		)
		got := ids(t, tr.ExecuteQuery(ctx, collPath, query.All(), opts))
		require.Len(t, got, 4)
		require.Equal(t, 5, pages, "four full pages and a final empty one")
	})

	t.Run("Partition", func(t *testing.T) {
		opts := storagemodels.NewFeedOptions(storagemodels.WithFeedPartitionKey("Wakefield"))
		got := ids(t, tr.ExecuteQuery(ctx, collPath, query.All(), opts))
		require.Equal(t, []string{"Wakefield.7"}, got)
	})

	t.Run("EarlyStop", func(t *testing.T) {
		for doc, err := range tr.ExecuteQuery(ctx, collPath, query.All(), all) {
			require.NoError(t, err)
			require.Equal(t, "Wakefield.7", doc.ID())
			break
		}
		// The connection must be free again after an abandoned range.
		_, err := tr.ReadResource(ctx, collPath, noOpts)
		require.NoError(t, err)
	})

	t.Run("MissingCollection", func(t *testing.T) {
		for _, err := range tr.ExecuteQuery(ctx, storagemodels.CollectionPath("D", "Nope"), query.All(), all) {
			require.True(t, errors.IsNotFound(err), "got %v", err)
		}
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docstore.db")

	tr, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	_, err = tr.CreateResource(ctx, dbPath, nil, noOpts)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	reopened, err := datastore.Open(ctx, sqlite.BackendName, datastore.Settings{Path: path})
	require.NoError(t, err)
	defer datastore.Close(reopened)

	_, err = reopened.ReadResource(ctx, dbPath, noOpts)
	require.NoError(t, err)
}
