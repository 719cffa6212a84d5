/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// BackendName is the name the transport is registered under.
const BackendName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const busyTimeoutMs = 5000

func init() {
	datastore.MustRegister(BackendName, func(ctx context.Context, s datastore.Settings) (datastore.Transport, error) {
		path := s.Path
		if path == "" {
			path = MemoryPath
		}
		return Open(ctx, path)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS databases (
	name TEXT PRIMARY KEY,
	etag TEXT NOT NULL,
	ts   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS collections (
	db   TEXT NOT NULL REFERENCES databases(name) ON DELETE CASCADE,
	name TEXT NOT NULL,
	body TEXT NOT NULL,
	etag TEXT NOT NULL,
	ts   INTEGER NOT NULL,
	PRIMARY KEY (db, name)
);
CREATE TABLE IF NOT EXISTS documents (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	db   TEXT NOT NULL,
	coll TEXT NOT NULL,
	pk   TEXT NOT NULL,
	id   TEXT NOT NULL,
	body TEXT NOT NULL,
	etag TEXT NOT NULL,
	ts   INTEGER NOT NULL,
	UNIQUE (db, coll, pk, id),
	FOREIGN KEY (db, coll) REFERENCES collections(db, name) ON DELETE CASCADE
);
`

// Transport implements datastore.Transport on a SQLite database file.
//
// Tables:
//
//	databases(name)                      PRIMARY KEY (name)
//	collections(db, name, body)          PRIMARY KEY (db, name)
//	documents(seq, db, coll, pk, id)     UNIQUE (db, coll, pk, id)
//
// Deletes cascade through foreign keys and seq records insertion order.
type Transport struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger for schema events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithClock sets the time source for _ts.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		t.now = now
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Transport, error) {
	if path == "" {
		return nil, errors.NewValidationError("path", "path is empty")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	// One connection keeps per-connection pragmas and in-memory databases
	// consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, stderrors.Join(fmt.Errorf("sqlite: ping: %w", err), db.Close())
	}
	if path != MemoryPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			return nil, stderrors.Join(fmt.Errorf("sqlite: apply pragmas: %w", err), db.Close())
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, stderrors.Join(fmt.Errorf("sqlite: apply schema: %w", err), db.Close())
	}

	t := &Transport{db: db, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger.Debug("sqlite store opened", "path", path)
	return t, nil
}

// Close closes the underlying database
func (t *Transport) Close() error {
	return t.db.Close()
}

// ReadResource returns the database, collection or document at path
func (t *Transport) ReadResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	switch path.Kind() {
	case storagemodels.PathDatabase:
		var etag string
		var ts int64
		err := t.db.QueryRowContext(ctx, "SELECT etag, ts FROM databases WHERE name = ?", path.Database()).Scan(&etag, &ts)
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("database", path.Database())
		}
		if err != nil {
			return nil, mapError(err, "database", path.Database())
		}
		return stamp(storagemodels.Document{storagemodels.IDProperty: path.Database()}, etag, ts), nil

	case storagemodels.PathCollection:
		doc, _, err := t.readCollection(ctx, path)
		return doc, err
	}

	_, collOpts, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	partition, err := datastore.ResolvePartition(collOpts.PartitionKeyPath, nil, opts)
	if err != nil {
		return nil, err
	}

	var body, etag string
	var ts int64
	err = t.db.QueryRowContext(ctx,
		"SELECT body, etag, ts FROM documents WHERE db = ? AND coll = ? AND pk = ? AND id = ?",
		path.Database(), path.Collection(), partition, path.DocumentID(),
	).Scan(&body, &etag, &ts)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("document", path.DocumentID())
	}
	if err != nil {
		return nil, mapError(err, "document", path.DocumentID())
	}
	return decode(body, etag, ts)
}

// CreateResource creates the resource at path or fails with ErrAlreadyExists
func (t *Transport) CreateResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	etag, ts := newETag(), t.now().Unix()

	switch path.Kind() {
	case storagemodels.PathDatabase:
		_, err := t.db.ExecContext(ctx, "INSERT INTO databases (name, etag, ts) VALUES (?, ?, ?)", path.Database(), etag, ts)
		if err != nil {
			return nil, mapError(err, "database", path.Database())
		}
		return stamp(storagemodels.Document{storagemodels.IDProperty: path.Database()}, etag, ts), nil

	case storagemodels.PathCollection:
		name := path.Collection()
		if body == nil {
			body = storagemodels.CollectionDocument(name, storagemodels.CollectionOptions{})
		}
		if body.ID() != name {
			return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("collection id %q does not match path %q", body.ID(), path))
		}
		if _, err := storagemodels.ParseCollectionDocument(body); err != nil {
			return nil, err
		}
		doc := body.WithoutSystemProperties().Clone()
		if opts.Throughput > 0 {
			doc["throughput"] = float64(opts.Throughput)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.NewValidationError("collection", err.Error())
		}
		_, err = t.db.ExecContext(ctx,
			"INSERT INTO collections (db, name, body, etag, ts) VALUES (?, ?, ?, ?, ?)",
			path.Database(), name, string(raw), etag, ts)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, errors.NewNotFoundError("database", path.Database())
			}
			return nil, mapError(err, "collection", name)
		}
		return stamp(doc, etag, ts), nil
	}

	_, collOpts, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	id := path.DocumentID()
	if body.ID() != id {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(collOpts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}
	doc := body.WithoutSystemProperties()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewValidationError("document", err.Error())
	}
	_, err = t.db.ExecContext(ctx,
		"INSERT INTO documents (db, coll, pk, id, body, etag, ts) VALUES (?, ?, ?, ?, ?, ?, ?)",
		path.Database(), path.Collection(), partition, id, string(raw), etag, ts)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errors.NewNotFoundError("collection", path.Collection())
		}
		return nil, mapError(err, "document", id)
	}
	return decode(string(raw), etag, ts)
}

// ReplaceResource overwrites an existing document
func (t *Transport) ReplaceResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.Kind() != storagemodels.PathDocument {
		return nil, errors.NewValidationError("path", fmt.Sprintf("only documents can be replaced, got %s path", path.Kind()))
	}
	_, collOpts, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	id := path.DocumentID()
	if body.ID() != id {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(collOpts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body.WithoutSystemProperties())
	if err != nil {
		return nil, errors.NewValidationError("document", err.Error())
	}

	etag, ts := newETag(), t.now().Unix()
	err = t.conditionalWrite(ctx, "replace", path, partition, opts.IfMatch,
		"UPDATE documents SET body = ?, etag = ?, ts = ? WHERE db = ? AND coll = ? AND pk = ? AND id = ? AND (? = '' OR etag = ?)",
		string(raw), etag, ts, path.Database(), path.Collection(), partition, id, opts.IfMatch, opts.IfMatch)
	if err != nil {
		return nil, err
	}
	return decode(string(raw), etag, ts)
}

// DeleteResource removes the resource at path and everything below it
func (t *Transport) DeleteResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) error {
	if err := path.Validate(); err != nil {
		return err
	}
	switch path.Kind() {
	case storagemodels.PathDatabase:
		return t.deleteRow(ctx, "database", path.Database(), "DELETE FROM databases WHERE name = ?", path.Database())
	case storagemodels.PathCollection:
		return t.deleteRow(ctx, "collection", path.Collection(), "DELETE FROM collections WHERE db = ? AND name = ?", path.Database(), path.Collection())
	}

	_, collOpts, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return err
	}
	partition, err := datastore.ResolvePartition(collOpts.PartitionKeyPath, nil, opts)
	if err != nil {
		return err
	}
	return t.conditionalWrite(ctx, "delete", path, partition, opts.IfMatch,
		"DELETE FROM documents WHERE db = ? AND coll = ? AND pk = ? AND id = ? AND (? = '' OR etag = ?)",
		path.Database(), path.Collection(), partition, path.DocumentID(), opts.IfMatch, opts.IfMatch)
}

// conditionalWrite runs stmt in a transaction and, when it changes no row,
// tells a missing document from a stale _etag.
func (t *Transport) conditionalWrite(ctx context.Context, op string, path storagemodels.Path, partition, ifMatch, stmt string, args ...any) error {
	id := path.DocumentID()
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "document", id)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mapError(err, "document", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		err := tx.QueryRowContext(ctx,
			"SELECT etag FROM documents WHERE db = ? AND coll = ? AND pk = ? AND id = ?",
			path.Database(), path.Collection(), partition, id,
		).Scan(&current)
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("document", id)
		}
		if err != nil {
			return mapError(err, "document", id)
		}
		return errors.NewConditionFailedError(op, fmt.Sprintf("_etag %s does not match %s", ifMatch, current))
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "document", id)
	}
	return nil
}

func (t *Transport) deleteRow(ctx context.Context, resource, key, stmt string, args ...any) error {
	res, err := t.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mapError(err, resource, key)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError(resource, key)
	}
	t.logger.Debug("sqlite resource deleted", "resource", resource, "key", key)
	return nil
}

func (t *Transport) readCollection(ctx context.Context, path storagemodels.Path) (storagemodels.Document, storagemodels.CollectionOptions, error) {
	var body, etag string
	var ts int64
	err := t.db.QueryRowContext(ctx,
		"SELECT body, etag, ts FROM collections WHERE db = ? AND name = ?",
		path.Database(), path.Collection(),
	).Scan(&body, &etag, &ts)
	if err == sql.ErrNoRows {
		return nil, storagemodels.CollectionOptions{}, errors.NewNotFoundError("collection", path.Collection())
	}
	if err != nil {
		return nil, storagemodels.CollectionOptions{}, mapError(err, "collection", path.Collection())
	}
	doc, err := decode(body, etag, ts)
	if err != nil {
		return nil, storagemodels.CollectionOptions{}, err
	}
	opts, err := storagemodels.ParseCollectionDocument(doc)
	if err != nil {
		return nil, storagemodels.CollectionOptions{}, fmt.Errorf("%w: collection %s: %w", errors.ErrMalformed, path.Collection(), err)
	}
	return doc, opts, nil
}

func newETag() string {
	return strconv.Quote(uuid.NewString())
}

func stamp(doc storagemodels.Document, etag string, ts int64) storagemodels.Document {
	doc[storagemodels.ETagProperty] = etag
	doc[storagemodels.TimestampProperty] = float64(ts)
	return doc
}

func decode(body, etag string, ts int64) (storagemodels.Document, error) {
	doc, err := storagemodels.DecodeDocument([]byte(body))
	if err != nil {
		return nil, errors.Malformed("decode stored body: %v", err)
	}
	if doc == nil {
		doc = storagemodels.Document{}
	}
	return stamp(doc, etag, ts), nil
}

// mapError translates a driver error into the errors package.
func mapError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se sqlite3.Error
	if !stderrors.As(err, &se) {
		return fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	switch se.Code {
	case sqlite3.ErrConstraint:
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.NewAlreadyExistsError(resource, key)
		}
		return fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %w", errors.ErrThrottled, err)
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return fmt.Errorf("%w: %w", errors.ErrMalformed, err)
	}
	return fmt.Errorf("%w: %w", errors.ErrTransport, err)
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return stderrors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
