/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"iter"

	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Transport executes resource-level requests against a document store.
//
// Errors must match one of the sentinels in the errors package so callers can
// branch on kind: ErrNotFound, ErrAlreadyExists, ErrPreconditionFailed,
// ErrUnauthorized, ErrThrottled, ErrMalformed or ErrTransport.
type Transport interface {
	// ReadResource returns the database, collection or document at path.
	ReadResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error)

	// CreateResource atomically creates the resource at path, failing with
	// ErrAlreadyExists when it is present. For collection paths the body is a
	// storagemodels.CollectionDocument. Returns the stored document including
	// system properties.
	CreateResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error)

	// ReplaceResource overwrites an existing document, failing with
	// ErrNotFound when it is absent and ErrPreconditionFailed when
	// opts.IfMatch is set and differs from the stored _etag.
	ReplaceResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error)

	// DeleteResource removes the resource at path. Deleting a database or a
	// collection removes everything it contains.
	DeleteResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) error

	// ExecuteQuery runs spec over the documents of the collection at path.
	// Results come in insertion order. Nothing is fetched until the sequence
	// is ranged and every range re-executes the query. Transports that must
	// reorder what the store returns, such as DynamoDB, fetch every page
	// before yielding the first document.
	ExecuteQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) iter.Seq2[storagemodels.Document, error]
}

// Closer is implemented by transports that hold connections.
type Closer interface {
	Close() error
}
