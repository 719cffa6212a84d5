/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/registry"
	"github.com/suparena/docstore/storagemodels"
)

// Item is a document read from the store together with its system properties.
type Item[T any] struct {
	Value     T
	ID        string
	ETag      string
	Timestamp time.Time
}

// Client performs partition-aware document operations on one collection.
// A Client holds no mutable state and is safe for concurrent use.
type Client[T any] struct {
	address   storagemodels.StoreAddress
	pkPath    string
	transport datastore.Transport
	logger    *slog.Logger
}

// NewClient provisions the configured database and collection if they are
// absent and returns a client bound to them.
func NewClient[T any](ctx context.Context, t datastore.Transport, cfg Config) (*Client[T], error) {
	if t == nil {
		return nil, errors.NewValidationError("transport", "transport is required")
	}
	if cfg.CollectionOptions.PartitionKeyPath == "" {
		if path, ok := registry.GetPartitionKeyPath[T](); ok {
			cfg.CollectionOptions.PartitionKeyPath = path
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := NewProvisioner(t, cfg.Logger)
	if _, err := p.EnsureDatabase(ctx, cfg.Database); err != nil {
		return nil, err
	}
	_, actual, err := p.ensureCollection(ctx, cfg.Database, cfg.Collection, cfg.CollectionOptions)
	if err != nil {
		return nil, err
	}
	if actual.PartitionKeyPath != cfg.CollectionOptions.PartitionKeyPath {
		return nil, errors.NewValidationError("partitionKeyPath",
			fmt.Sprintf("collection %s is partitioned on %q, not %q", cfg.Address(), actual.PartitionKeyPath, cfg.CollectionOptions.PartitionKeyPath))
	}

	return &Client[T]{
		address:   cfg.Address(),
		pkPath:    actual.PartitionKeyPath,
		transport: t,
		logger:    cfg.Logger,
	}, nil
}

// Address returns the database and collection the client is bound to.
func (c *Client[T]) Address() storagemodels.StoreAddress {
	return c.address
}

// PartitionKeyPath returns the collection's partition key path, or "" when the
// collection is not partitioned.
func (c *Client[T]) PartitionKeyPath() string {
	return c.pkPath
}

// CreateIfAbsent stores doc unless a document with the same id already exists
// in its partition. It returns Created or Found and never modifies an existing
// document.
func (c *Client[T]) CreateIfAbsent(ctx context.Context, doc T) (storagemodels.Status, error) {
	body, err := toDocument(doc)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}
	id, err := documentID(body)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}
	partition, err := datastore.ResolvePartition(c.pkPath, body, storagemodels.RequestOptions{})
	if err != nil {
		return storagemodels.StatusUnknown, err
	}

	status, _, err := ensureResource(ctx, c.transport, c.logger, c.address.DocumentPath(id), body, c.requestOptions(partition))
	if err != nil {
		return status, err
	}
	c.logger.Debug("document ensured", "collection", c.address.String(), "id", id, "partitionKey", partition, "status", status.String())
	return status, nil
}

// Read returns the document with id. Partitioned collections require
// storagemodels.WithPartitionKey.
func (c *Client[T]) Read(ctx context.Context, id string, opts ...storagemodels.RequestOption) (*Item[T], error) {
	ro, path, err := c.documentRequest(id, nil, opts)
	if err != nil {
		return nil, err
	}
	doc, err := c.transport.ReadResource(ctx, path, ro)
	if err != nil {
		return nil, errors.Wrap("read", path.String(), err)
	}
	v, err := fromDocument[T](doc)
	if err != nil {
		return nil, errors.Wrap("read", path.String(), err)
	}
	return &Item[T]{
		Value:     v,
		ID:        doc.ID(),
		ETag:      doc.ETag(),
		Timestamp: time.Unix(doc.Timestamp(), 0).UTC(),
	}, nil
}

// Replace overwrites the stored document with id by doc. It fails with
// ErrNotFound when the document does not exist and never creates one. The
// partition key of doc cannot differ from the stored one; use IfMatch to
// guard against concurrent writers.
func (c *Client[T]) Replace(ctx context.Context, id string, doc T, opts ...storagemodels.RequestOption) (storagemodels.Status, error) {
	body, err := toDocument(doc)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}
	bodyID, err := documentID(body)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}
	if bodyID != id {
		return storagemodels.StatusUnknown, errors.NewValidationError(storagemodels.IDProperty,
			fmt.Sprintf("document id %q does not match %q", bodyID, id))
	}
	ro, path, err := c.documentRequest(id, body, opts)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}

	if _, err := c.transport.ReplaceResource(ctx, path, body, ro); err != nil {
		return storagemodels.StatusUnknown, errors.Wrap("replace", path.String(), err)
	}
	c.logger.Debug("document replaced", "collection", c.address.String(), "id", id)
	return storagemodels.Replaced, nil
}

// Delete removes the document with id. It fails with ErrNotFound when the
// document does not exist.
func (c *Client[T]) Delete(ctx context.Context, id string, opts ...storagemodels.RequestOption) (storagemodels.Status, error) {
	ro, path, err := c.documentRequest(id, nil, opts)
	if err != nil {
		return storagemodels.StatusUnknown, err
	}
	if err := c.transport.DeleteResource(ctx, path, ro); err != nil {
		return storagemodels.StatusUnknown, errors.Wrap("delete", path.String(), err)
	}
	c.logger.Debug("document deleted", "collection", c.address.String(), "id", id)
	return storagemodels.Deleted, nil
}

// Query returns the documents matching spec in insertion order. The query
// runs when the sequence is ranged and every range re-runs it; see
// datastore.Transport for transports that buffer the result. Errors are
// yielded as elements and ranging stops at the first one.
func (c *Client[T]) Query(ctx context.Context, spec query.Spec, opts ...storagemodels.FeedOption) iter.Seq2[T, error] {
	path := c.address.CollectionPath()
	fo := storagemodels.NewFeedOptions(opts...)

	return func(yield func(T, error) bool) {
		var zero T
		spec := spec
		if err := spec.Validate(); err != nil {
			yield(zero, errors.Wrap("query", path.String(), err))
			return
		}
		if fo.PartitionKey != "" {
			if c.pkPath == "" {
				yield(zero, errors.NewValidationError("partitionKey", fmt.Sprintf("collection %s is not partitioned", c.address)))
				return
			}
			spec = spec.Where(storagemodels.PartitionKey{Path: c.pkPath}.Property(), fo.PartitionKey)
		}

		c.logger.Debug("query", "collection", c.address.String(), "mode", spec.Mode().String(), "text", spec.Text())
		for doc, err := range c.transport.ExecuteQuery(ctx, path, spec, fo) {
			if err != nil {
				yield(zero, errors.Wrap("query", path.String(), err))
				return
			}
			v, err := fromDocument[T](doc)
			if err != nil {
				yield(zero, errors.Wrap("query", path.String(), err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// QueryText parses text and runs it like Query. Unparsable text yields a
// single error matching errors.ErrMalformed.
func (c *Client[T]) QueryText(ctx context.Context, text string, opts ...storagemodels.FeedOption) iter.Seq2[T, error] {
	spec, err := query.ParseText(text)
	if err != nil {
		path := c.address.CollectionPath()
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, errors.Wrap("query", path.String(), err))
		}
	}
	return c.Query(ctx, spec, opts...)
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// documentRequest validates id and builds the path and request options for a
// document operation.
func (c *Client[T]) documentRequest(id string, body storagemodels.Document, opts []storagemodels.RequestOption) (storagemodels.RequestOptions, storagemodels.Path, error) {
	if err := storagemodels.ValidateName(storagemodels.IDProperty, id); err != nil {
		return storagemodels.RequestOptions{}, "", err
	}
	ro := storagemodels.NewRequestOptions(opts...)
	partition, err := datastore.ResolvePartition(c.pkPath, body, ro)
	if err != nil {
		return storagemodels.RequestOptions{}, "", err
	}
	out := c.requestOptions(partition)
	out.IfMatch = ro.IfMatch
	return out, c.address.DocumentPath(id), nil
}

func (c *Client[T]) requestOptions(partition string) storagemodels.RequestOptions {
	if c.pkPath == "" {
		return storagemodels.RequestOptions{}
	}
	return storagemodels.RequestOptions{
		PartitionKey: &storagemodels.PartitionKey{Path: c.pkPath, Value: partition},
	}
}

func documentID(body storagemodels.Document) (string, error) {
	id := body.ID()
	if err := storagemodels.ValidateName(storagemodels.IDProperty, id); err != nil {
		return "", err
	}
	return id, nil
}

// toDocument converts v to its JSON object form.
func toDocument[T any](v T) (storagemodels.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewValidationError("document", fmt.Sprintf("cannot encode %T: %v", v, err))
	}
	doc, err := storagemodels.DecodeDocument(data)
	if err != nil || doc == nil {
		return nil, errors.NewValidationError("document", fmt.Sprintf("%T does not encode to a JSON object", v))
	}
	return doc, nil
}

// fromDocument decodes a stored document into T. Properties T does not
// declare, such as _etag and _ts, are ignored.
func fromDocument[T any](doc storagemodels.Document) (T, error) {
	var v T
	data, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("%w: encode stored document: %v", errors.ErrMalformed, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: decode stored document into %T: %v", errors.ErrMalformed, v, err)
	}
	return v, nil
}
