/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

const (
	testDB   = "FamilyDB"
	testColl = "FamilyCollection"
)

func provision(t *testing.T, m *mock.Transport, pkPath string) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.CreateResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.Document{"id": testDB}, storagemodels.RequestOptions{}); err != nil {
		t.Fatalf("create database failed: %v", err)
	}
	opts := storagemodels.DefaultCollectionOptions()
	opts.PartitionKeyPath = pkPath
	body := storagemodels.CollectionDocument(testColl, opts)
	if _, err := m.CreateResource(ctx, storagemodels.CollectionPath(testDB, testColl), body, storagemodels.NewRequestOptions(storagemodels.WithThroughput(400))); err != nil {
		t.Fatalf("create collection failed: %v", err)
	}
}

func docPath(id string) storagemodels.Path {
	return storagemodels.DocumentPath(testDB, testColl, id)
}

func family(id, lastName string) storagemodels.Document {
	return storagemodels.Document{"id": id, "lastName": lastName, "isRegistered": true}
}

func TestMemoryTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("ProvisioningConflicts", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "/lastName")

		_, err := m.CreateResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.Document{"id": testDB}, storagemodels.RequestOptions{})
		if !errors.IsAlreadyExists(err) {
			t.Fatalf("Expected already exists, got: %v", err)
		}

		coll, err := m.ReadResource(ctx, storagemodels.CollectionPath(testDB, testColl), storagemodels.RequestOptions{})
		if err != nil {
			t.Fatalf("read collection failed: %v", err)
		}
		opts, err := storagemodels.ParseCollectionDocument(coll)
		if err != nil {
			t.Fatalf("ParseCollectionDocument failed: %v", err)
		}
		if opts.PartitionKeyPath != "/lastName" {
			t.Errorf("Expected /lastName, got %q", opts.PartitionKeyPath)
		}
		if coll["throughput"] != float64(400) {
			t.Errorf("Expected throughput 400, got %v", coll["throughput"])
		}

		_, err = m.CreateResource(ctx, storagemodels.CollectionPath("Missing", testColl), storagemodels.CollectionDocument(testColl, opts), storagemodels.RequestOptions{})
		if !errors.IsNotFound(err) {
			t.Fatalf("Expected not found for missing database, got: %v", err)
		}

		if stats := m.Stats(); stats.CreateConflicts != 1 {
			t.Errorf("Expected 1 create conflict, got %d", stats.CreateConflicts)
		}
	})

	t.Run("DocumentLifecycle", func(t *testing.T) {
		m := mock.New().WithClock(func() time.Time { return time.Unix(1700000000, 0) })
		provision(t, m, "/lastName")
		pk := storagemodels.WithPartitionKey("Andersen")

		created, err := m.CreateResource(ctx, docPath("Andersen.1"), family("Andersen.1", "Andersen"), storagemodels.RequestOptions{})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if created.ETag() == "" || created.Timestamp() != 1700000000 {
			t.Fatalf("system properties missing: %v", created)
		}

		_, err = m.CreateResource(ctx, docPath("Andersen.1"), family("Andersen.1", "Andersen"), storagemodels.RequestOptions{})
		if !errors.IsAlreadyExists(err) {
			t.Fatalf("Expected already exists, got: %v", err)
		}

		// Same id in another partition is a different document.
		if _, err := m.CreateResource(ctx, docPath("Andersen.1"), family("Andersen.1", "Wakefield"), storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("Create in second partition failed: %v", err)
		}

		read, err := m.ReadResource(ctx, docPath("Andersen.1"), storagemodels.NewRequestOptions(pk))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if read.ETag() != created.ETag() {
			t.Errorf("Expected etag %s, got %s", created.ETag(), read.ETag())
		}

		_, err = m.ReadResource(ctx, docPath("Andersen.1"), storagemodels.RequestOptions{})
		if !errors.IsValidationError(err) {
			t.Errorf("Expected validation error without partition key, got: %v", err)
		}

		updated := family("Andersen.1", "Andersen")
		updated["isRegistered"] = false
		replaced, err := m.ReplaceResource(ctx, docPath("Andersen.1"), updated, storagemodels.NewRequestOptions(storagemodels.IfMatch(created.ETag())))
		if err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		if replaced.ETag() == created.ETag() {
			t.Error("Replace should assign a new etag")
		}

		_, err = m.ReplaceResource(ctx, docPath("Andersen.1"), updated, storagemodels.NewRequestOptions(storagemodels.IfMatch(created.ETag())))
		if !errors.IsConditionFailed(err) {
			t.Fatalf("Expected precondition failure with stale etag, got: %v", err)
		}

		_, err = m.ReplaceResource(ctx, docPath("Missing.1"), family("Missing.1", "Andersen"), storagemodels.RequestOptions{})
		if !errors.IsNotFound(err) {
			t.Fatalf("Expected not found on replace of missing document, got: %v", err)
		}

		if err := m.DeleteResource(ctx, docPath("Andersen.1"), storagemodels.NewRequestOptions(pk)); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := m.DeleteResource(ctx, docPath("Andersen.1"), storagemodels.NewRequestOptions(pk)); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found on second delete, got: %v", err)
		}
		if m.Count(testDB, testColl) != 1 {
			t.Errorf("Expected 1 remaining document, got %d", m.Count(testDB, testColl))
		}
	})

	t.Run("CopiesOnReadAndWrite", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "")

		body := storagemodels.Document{"id": "a", "tags": []any{"x"}}
		if _, err := m.CreateResource(ctx, docPath("a"), body, storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		body["tags"].([]any)[0] = "mutated"

		read, err := m.ReadResource(ctx, docPath("a"), storagemodels.RequestOptions{})
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if read["tags"].([]any)[0] != "x" {
			t.Errorf("stored document shares memory with the caller")
		}
		read["tags"].([]any)[0] = "mutated"

		again, _ := m.ReadResource(ctx, docPath("a"), storagemodels.RequestOptions{})
		if again["tags"].([]any)[0] != "x" {
			t.Errorf("read result shares memory with the store")
		}
	})

	t.Run("QueryOrderAndPaging", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "/lastName")

		for i, ln := range []string{"Wakefield", "Andersen", "Andersen", "Smith", "Andersen"} {
			id := fmt.Sprintf("doc.%d", i)
			if _, err := m.CreateResource(ctx, docPath(id), family(id, ln), storagemodels.RequestOptions{}); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		var pages int
		opts := storagemodels.NewFeedOptions(
			storagemodels.WithMaxItemCount(2),
			storagemodels.WithProgressHandler(func(p storagemodels.FeedProgress) { pages = p.PagesProcessed }),
		)
		spec := query.Structured(query.Equal("lastName", "Andersen"))

		var ids []string
		for doc, err := range m.ExecuteQuery(ctx, storagemodels.CollectionPath(testDB, testColl), spec, opts) {
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			ids = append(ids, doc.ID())
		}
		want := []string{"doc.1", "doc.2", "doc.4"}
		if fmt.Sprint(ids) != fmt.Sprint(want) {
			t.Errorf("Expected %v, got %v", want, ids)
		}
		if pages != 2 {
			t.Errorf("Expected 2 pages, got %d", pages)
		}

		// Early break stops iteration.
		count := 0
		for range m.ExecuteQuery(ctx, storagemodels.CollectionPath(testDB, testColl), query.All(), storagemodels.DefaultFeedOptions()) {
			count++
			break
		}
		if count != 1 {
			t.Errorf("Expected 1 item before break, got %d", count)
		}

		scoped := storagemodels.NewFeedOptions(storagemodels.WithFeedPartitionKey("Smith"))
		n := 0
		for _, err := range m.ExecuteQuery(ctx, storagemodels.CollectionPath(testDB, testColl), query.All(), scoped) {
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			n++
		}
		if n != 1 {
			t.Errorf("Expected 1 document in partition Smith, got %d", n)
		}
	})

	t.Run("QueryErrors", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "")

		var errs []error
		for _, err := range m.ExecuteQuery(ctx, storagemodels.CollectionPath(testDB, "Missing"), query.All(), storagemodels.DefaultFeedOptions()) {
			errs = append(errs, err)
		}
		if len(errs) != 1 || !errors.IsNotFound(errs[0]) {
			t.Fatalf("Expected a single not found error, got %v", errs)
		}

		bad := query.Structured(query.Equal("lastName", nil))
		for _, err := range m.ExecuteQuery(ctx, storagemodels.CollectionPath(testDB, testColl), bad, storagemodels.DefaultFeedOptions()) {
			if !errors.IsMalformed(err) {
				t.Fatalf("Expected malformed, got %v", err)
			}
		}
	})

	t.Run("ErrorSimulation", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "")

		m.FailNext(mock.OpRead, errors.ErrThrottled)
		_, err := m.ReadResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.RequestOptions{})
		if !errors.IsThrottled(err) {
			t.Fatalf("Expected throttled, got: %v", err)
		}
		if _, err := m.ReadResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("FailNext should only affect one call: %v", err)
		}

		m.WithError(mock.OpCreate, errors.ErrUnauthorized)
		_, err = m.CreateResource(ctx, docPath("a"), storagemodels.Document{"id": "a"}, storagemodels.RequestOptions{})
		if !errors.IsUnauthorized(err) {
			t.Fatalf("Expected unauthorized, got: %v", err)
		}
		m.WithError(mock.OpCreate, nil)
		if _, err := m.CreateResource(ctx, docPath("a"), storagemodels.Document{"id": "a"}, storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("Create after clearing error failed: %v", err)
		}
	})

	t.Run("ReadHook", func(t *testing.T) {
		m := mock.New()
		var seen []storagemodels.Path
		m.WithReadHook(func(ctx context.Context, path storagemodels.Path, err error) {
			if errors.IsNotFound(err) {
				seen = append(seen, path)
			}
		})
		_, _ = m.ReadResource(ctx, storagemodels.DatabasePath("nope"), storagemodels.RequestOptions{})
		if len(seen) != 1 || seen[0] != storagemodels.DatabasePath("nope") {
			t.Errorf("hook not called with not found result: %v", seen)
		}
	})

	t.Run("DeleteDatabaseCascades", func(t *testing.T) {
		m := mock.New()
		provision(t, m, "")
		if _, err := m.CreateResource(ctx, docPath("a"), storagemodels.Document{"id": "a"}, storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if err := m.DeleteResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.RequestOptions{}); err != nil {
			t.Fatalf("Delete database failed: %v", err)
		}
		if _, err := m.ReadResource(ctx, docPath("a"), storagemodels.RequestOptions{}); !errors.IsNotFound(err) {
			t.Errorf("Expected not found after teardown, got: %v", err)
		}
		if len(m.Databases()) != 0 {
			t.Errorf("Expected no databases, got %v", m.Databases())
		}
		if err := m.DeleteResource(ctx, storagemodels.DatabasePath(testDB), storagemodels.RequestOptions{}); !errors.IsNotFound(err) {
			t.Errorf("Expected not found on second teardown, got: %v", err)
		}
	})
}

func TestMemoryBackendRegistered(t *testing.T) {
	tr, err := datastore.Open(context.Background(), mock.BackendName, datastore.Settings{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := tr.(*mock.Transport); !ok {
		t.Fatalf("Expected *mock.Transport, got %T", tr)
	}
}
