/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"iter"

	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// QueryBuilder provides a fluent interface for building structured queries
type QueryBuilder[T any] struct {
	client *Client[T]
	pred   query.Predicate
	opts   []storagemodels.FeedOption
}

// NewQuery creates a new query builder matching every document
func (c *Client[T]) NewQuery() *QueryBuilder[T] {
	return &QueryBuilder[T]{client: c}
}

// WhereEqual adds field = value to the conjunction
func (q *QueryBuilder[T]) WhereEqual(field string, value any) *QueryBuilder[T] {
	q.pred = q.pred.And(field, value)
	return q
}

// WithPartitionKey restricts the query to one partition
func (q *QueryBuilder[T]) WithPartitionKey(value string) *QueryBuilder[T] {
	q.opts = append(q.opts, storagemodels.WithFeedPartitionKey(value))
	return q
}

// WithMaxItemCount sets the page size; n <= 0 lets the store decide
func (q *QueryBuilder[T]) WithMaxItemCount(n int32) *QueryBuilder[T] {
	q.opts = append(q.opts, storagemodels.WithMaxItemCount(n))
	return q
}

// WithProgressHandler sets a callback invoked after every page
func (q *QueryBuilder[T]) WithProgressHandler(handler func(storagemodels.FeedProgress)) *QueryBuilder[T] {
	q.opts = append(q.opts, storagemodels.WithProgressHandler(handler))
	return q
}

// Spec returns the structured query built so far
func (q *QueryBuilder[T]) Spec() query.Spec {
	return query.Structured(q.pred)
}

// String renders the equivalent raw query text
func (q *QueryBuilder[T]) String() string {
	return q.pred.String()
}

// Execute runs the query
func (q *QueryBuilder[T]) Execute(ctx context.Context) iter.Seq2[T, error] {
	return q.client.Query(ctx, q.Spec(), q.opts...)
}
