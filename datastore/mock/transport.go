/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory datastore.Transport for testing
package mock

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// BackendName is the name the transport is registered under.
const BackendName = "memory"

func init() {
	datastore.MustRegister(BackendName, func(ctx context.Context, s datastore.Settings) (datastore.Transport, error) {
		return New(), nil
	})
}

// Op names a Transport method for failure injection and hooks.
type Op string

const (
	OpRead    Op = "read"
	OpCreate  Op = "create"
	OpReplace Op = "replace"
	OpDelete  Op = "delete"
	OpQuery   Op = "query"
)

// ReadHook runs after a read has been evaluated and before its result is
// returned. It runs without the transport lock held.
type ReadHook func(ctx context.Context, path storagemodels.Path, err error)

// Stats counts calls made against the transport.
type Stats struct {
	Reads           int
	Creates         int
	CreateConflicts int
	Replaces        int
	Deletes         int
	Queries         int
}

type docKey struct {
	partition string
	id        string
}

type entry struct {
	seq uint64
	doc storagemodels.Document
}

type collection struct {
	doc  storagemodels.Document
	opts storagemodels.CollectionOptions
	docs map[docKey]*entry
}

type database struct {
	doc         storagemodels.Document
	collections map[string]*collection
}

// Transport is an in-memory implementation of datastore.Transport. Documents
// are deep-copied on the way in and out.
type Transport struct {
	mu        sync.RWMutex
	databases map[string]*database
	seq       uint64
	etags     uint64
	stats     Stats
	now       func() time.Time
	errs      map[Op]error
	failNext  map[Op][]error
	readHook  ReadHook
}

// New creates an empty in-memory Transport
func New() *Transport {
	return &Transport{
		databases: make(map[string]*database),
		now:       time.Now,
		errs:      make(map[Op]error),
		failNext:  make(map[Op][]error),
	}
}

// WithError makes every call of op return err. A nil err clears it.
func (m *Transport) WithError(op Op, err error) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
	} else {
		m.errs[op] = err
	}
	return m
}

// FailNext queues err to be returned by the next call of op.
func (m *Transport) FailNext(op Op, err error) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = append(m.failNext[op], err)
	return m
}

// WithReadHook installs h for every ReadResource call.
func (m *Transport) WithReadHook(h ReadHook) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readHook = h
	return m
}

// WithClock sets the time source for _ts.
func (m *Transport) WithClock(now func() time.Time) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// injected returns the error configured for op, consuming a queued one first.
// Callers hold m.mu.
func (m *Transport) injected(op Op) error {
	if q := m.failNext[op]; len(q) > 0 {
		m.failNext[op] = q[1:]
		return q[0]
	}
	return m.errs[op]
}

// ReadResource returns a copy of the resource at path
func (m *Transport) ReadResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	doc, err := m.read(ctx, path, opts)

	m.mu.RLock()
	hook := m.readHook
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx, path, err)
	}
	return doc, err
}

func (m *Transport) read(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Reads++
	if err := m.injected(OpRead); err != nil {
		return nil, err
	}

	switch path.Kind() {
	case storagemodels.PathDatabase:
		db, ok := m.databases[path.Database()]
		if !ok {
			return nil, errors.NewNotFoundError("database", path.Database())
		}
		return db.doc.Clone(), nil
	case storagemodels.PathCollection:
		coll, err := m.collectionLocked(path)
		if err != nil {
			return nil, err
		}
		return coll.doc.Clone(), nil
	}

	coll, err := m.collectionLocked(path.Parent())
	if err != nil {
		return nil, err
	}
	partition, err := datastore.ResolvePartition(coll.opts.PartitionKeyPath, nil, opts)
	if err != nil {
		return nil, err
	}
	e, ok := coll.docs[docKey{partition: partition, id: path.DocumentID()}]
	if !ok {
		return nil, errors.NewNotFoundError("document", path.DocumentID())
	}
	return e.doc.Clone(), nil
}

// CreateResource creates the resource at path or fails with ErrAlreadyExists
func (m *Transport) CreateResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Creates++
	if err := m.injected(OpCreate); err != nil {
		return nil, err
	}

	switch path.Kind() {
	case storagemodels.PathDatabase:
		name := path.Database()
		if _, ok := m.databases[name]; ok {
			m.stats.CreateConflicts++
			return nil, errors.NewAlreadyExistsError("database", name)
		}
		db := &database{
			doc:         m.stamp(storagemodels.Document{storagemodels.IDProperty: name}),
			collections: make(map[string]*collection),
		}
		m.databases[name] = db
		return db.doc.Clone(), nil

	case storagemodels.PathCollection:
		db, ok := m.databases[path.Database()]
		if !ok {
			return nil, errors.NewNotFoundError("database", path.Database())
		}
		name := path.Collection()
		if _, ok := db.collections[name]; ok {
			m.stats.CreateConflicts++
			return nil, errors.NewAlreadyExistsError("collection", name)
		}
		if body == nil {
			body = storagemodels.CollectionDocument(name, storagemodels.CollectionOptions{})
		}
		if body.ID() != name {
			return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("collection id %q does not match path %q", body.ID(), path))
		}
		collOpts, err := storagemodels.ParseCollectionDocument(body)
		if err != nil {
			return nil, err
		}
		collOpts.Throughput = opts.Throughput
		doc := body.WithoutSystemProperties().Clone()
		if opts.Throughput > 0 {
			doc["throughput"] = float64(opts.Throughput)
		}
		coll := &collection{
			doc:  m.stamp(doc),
			opts: collOpts,
			docs: make(map[docKey]*entry),
		}
		db.collections[name] = coll
		return coll.doc.Clone(), nil
	}

	coll, err := m.collectionLocked(path.Parent())
	if err != nil {
		return nil, err
	}
	if body.ID() != path.DocumentID() {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(coll.opts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}
	key := docKey{partition: partition, id: body.ID()}
	if _, ok := coll.docs[key]; ok {
		m.stats.CreateConflicts++
		return nil, errors.NewAlreadyExistsError("document", body.ID())
	}
	m.seq++
	e := &entry{seq: m.seq, doc: m.stamp(body.WithoutSystemProperties().Clone())}
	coll.docs[key] = e
	return e.doc.Clone(), nil
}

// ReplaceResource overwrites an existing document
func (m *Transport) ReplaceResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.Kind() != storagemodels.PathDocument {
		return nil, errors.NewValidationError("path", fmt.Sprintf("only documents can be replaced, got %s path", path.Kind()))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Replaces++
	if err := m.injected(OpReplace); err != nil {
		return nil, err
	}

	coll, err := m.collectionLocked(path.Parent())
	if err != nil {
		return nil, err
	}
	if body.ID() != path.DocumentID() {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(coll.opts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}
	e, ok := coll.docs[docKey{partition: partition, id: body.ID()}]
	if !ok {
		return nil, errors.NewNotFoundError("document", body.ID())
	}
	if opts.IfMatch != "" && opts.IfMatch != e.doc.ETag() {
		return nil, errors.NewConditionFailedError("replace", fmt.Sprintf("_etag %s does not match %s", opts.IfMatch, e.doc.ETag()))
	}
	e.doc = m.stamp(body.WithoutSystemProperties().Clone())
	return e.doc.Clone(), nil
}

// DeleteResource removes the resource at path and everything below it
func (m *Transport) DeleteResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Deletes++
	if err := m.injected(OpDelete); err != nil {
		return err
	}

	switch path.Kind() {
	case storagemodels.PathDatabase:
		if _, ok := m.databases[path.Database()]; !ok {
			return errors.NewNotFoundError("database", path.Database())
		}
		delete(m.databases, path.Database())
		return nil
	case storagemodels.PathCollection:
		if _, err := m.collectionLocked(path); err != nil {
			return err
		}
		delete(m.databases[path.Database()].collections, path.Collection())
		return nil
	}

	coll, err := m.collectionLocked(path.Parent())
	if err != nil {
		return err
	}
	partition, err := datastore.ResolvePartition(coll.opts.PartitionKeyPath, nil, opts)
	if err != nil {
		return err
	}
	key := docKey{partition: partition, id: path.DocumentID()}
	e, ok := coll.docs[key]
	if !ok {
		return errors.NewNotFoundError("document", path.DocumentID())
	}
	if opts.IfMatch != "" && opts.IfMatch != e.doc.ETag() {
		return errors.NewConditionFailedError("delete", fmt.Sprintf("_etag %s does not match %s", opts.IfMatch, e.doc.ETag()))
	}
	delete(coll.docs, key)
	return nil
}

// ExecuteQuery yields the documents of the collection at path matching spec,
// in insertion order, one page of opts.MaxItemCount at a time.
func (m *Transport) ExecuteQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) iter.Seq2[storagemodels.Document, error] {
	return func(yield func(storagemodels.Document, error) bool) {
		docs, err := m.snapshot(ctx, path, spec, opts)
		if err != nil {
			yield(nil, err)
			return
		}

		progress := storagemodels.FeedProgress{StartTime: m.now()}
		for start := 0; start < len(docs) || start == 0; {
			end := len(docs)
			if opts.MaxItemCount > 0 && start+int(opts.MaxItemCount) < end {
				end = start + int(opts.MaxItemCount)
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			progress.PagesProcessed++
			for _, doc := range docs[start:end] {
				progress.ItemsProcessed++
				if !yield(doc, nil) {
					return
				}
			}
			if opts.ProgressHandler != nil {
				opts.ProgressHandler(progress)
			}
			if end == len(docs) {
				return
			}
			start = end
		}
	}
}

func (m *Transport) snapshot(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) ([]storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.Kind() != storagemodels.PathCollection {
		return nil, errors.NewValidationError("path", fmt.Sprintf("queries run against a collection, got %s path", path.Kind()))
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Queries++
	if err := m.injected(OpQuery); err != nil {
		return nil, err
	}
	coll, err := m.collectionLocked(path)
	if err != nil {
		return nil, err
	}

	entries := make([]*entry, 0, len(coll.docs))
	for key, e := range coll.docs {
		if opts.PartitionKey != "" && coll.opts.Partitioned() && key.partition != opts.PartitionKey {
			continue
		}
		if spec.Match(e.doc) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	docs := make([]storagemodels.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc.Clone()
	}
	return docs, nil
}

// collectionLocked looks up a collection path. Callers hold m.mu.
func (m *Transport) collectionLocked(path storagemodels.Path) (*collection, error) {
	db, ok := m.databases[path.Database()]
	if !ok {
		return nil, errors.NewNotFoundError("database", path.Database())
	}
	coll, ok := db.collections[path.Collection()]
	if !ok {
		return nil, errors.NewNotFoundError("collection", path.Collection())
	}
	return coll, nil
}

// stamp sets a fresh _etag and _ts on doc. Callers hold m.mu.
func (m *Transport) stamp(doc storagemodels.Document) storagemodels.Document {
	m.etags++
	doc[storagemodels.ETagProperty] = fmt.Sprintf("\"%08x\"", m.etags)
	doc[storagemodels.TimestampProperty] = float64(m.now().Unix())
	return doc
}

// Helper methods for testing

// Stats returns the call counters
func (m *Transport) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Documents returns copies of the documents in a collection in insertion order
func (m *Transport) Documents(db, coll string) []storagemodels.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(storagemodels.CollectionPath(db, coll))
	if err != nil {
		return nil
	}
	entries := make([]*entry, 0, len(c.docs))
	for _, e := range c.docs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	docs := make([]storagemodels.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc.Clone()
	}
	return docs
}

// Count returns the number of documents stored in a collection
func (m *Transport) Count(db, coll string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.databases[db]
	if !ok {
		return 0
	}
	c, ok := d.collections[coll]
	if !ok {
		return 0
	}
	return len(c.docs)
}

// Databases returns the names of the stored databases in sorted order
func (m *Transport) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.databases))
	for name := range m.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all data and resets the counters
func (m *Transport) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.databases = make(map[string]*database)
	m.stats = Stats{}
}
