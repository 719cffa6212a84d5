/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"log/slog"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// Provisioner creates databases and collections only when they are absent.
// It is safe to run on every process start and from concurrent callers.
type Provisioner struct {
	transport datastore.Transport
	logger    *slog.Logger
}

// NewProvisioner creates a Provisioner. A nil logger uses slog.Default().
func NewProvisioner(t datastore.Transport, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{transport: t, logger: logger}
}

// EnsureDatabase returns Found if the database exists and Created if this
// call created it.
func (p *Provisioner) EnsureDatabase(ctx context.Context, name string) (storagemodels.Status, error) {
	if err := storagemodels.ValidateName("database", name); err != nil {
		return storagemodels.StatusUnknown, err
	}
	path := storagemodels.DatabasePath(name)
	status, _, err := p.ensure(ctx, path, storagemodels.Document{storagemodels.IDProperty: name}, storagemodels.RequestOptions{})
	if err != nil {
		return status, err
	}
	p.logger.Info("database ensured", "database", name, "status", status.String())
	return status, nil
}

// EnsureCollection returns Found if the collection exists and Created if this
// call created it with opts. An existing collection is never modified, even
// when its options differ from opts.
func (p *Provisioner) EnsureCollection(ctx context.Context, db, coll string, opts storagemodels.CollectionOptions) (storagemodels.Status, error) {
	status, _, err := p.ensureCollection(ctx, db, coll, opts)
	return status, err
}

// ensureCollection also returns the options the collection actually has.
func (p *Provisioner) ensureCollection(ctx context.Context, db, coll string, opts storagemodels.CollectionOptions) (storagemodels.Status, storagemodels.CollectionOptions, error) {
	addr := storagemodels.StoreAddress{Database: db, Collection: coll}
	if err := addr.Validate(); err != nil {
		return storagemodels.StatusUnknown, opts, err
	}
	if err := opts.Validate(); err != nil {
		return storagemodels.StatusUnknown, opts, err
	}

	path := addr.CollectionPath()
	body := storagemodels.CollectionDocument(coll, opts)
	status, existing, err := p.ensure(ctx, path, body, storagemodels.NewRequestOptions(storagemodels.WithThroughput(opts.Throughput)))
	if err != nil {
		return status, opts, err
	}

	actual := opts
	if existing != nil {
		if parsed, perr := storagemodels.ParseCollectionDocument(existing); perr == nil {
			parsed.Throughput = opts.Throughput
			actual = parsed
		}
	}
	if actual.PartitionKeyPath != opts.PartitionKeyPath {
		p.logger.Warn("existing collection has a different partition key path",
			"database", db, "collection", coll,
			"requested", opts.PartitionKeyPath, "actual", actual.PartitionKeyPath)
	}
	p.logger.Info("collection ensured",
		"database", db, "collection", coll,
		"partitionKey", actual.PartitionKeyPath, "status", status.String())
	return status, actual, nil
}

// DeleteDatabase removes a database with all its collections and documents.
// It fails with ErrNotFound when the database does not exist.
func (p *Provisioner) DeleteDatabase(ctx context.Context, name string) error {
	if err := storagemodels.ValidateName("database", name); err != nil {
		return err
	}
	path := storagemodels.DatabasePath(name)
	if err := p.transport.DeleteResource(ctx, path, storagemodels.RequestOptions{}); err != nil {
		return errors.Wrap("delete", path.String(), err)
	}
	p.logger.Info("database deleted", "database", name)
	return nil
}

// DeleteCollection removes a collection with all its documents.
func (p *Provisioner) DeleteCollection(ctx context.Context, db, coll string) error {
	addr := storagemodels.StoreAddress{Database: db, Collection: coll}
	if err := addr.Validate(); err != nil {
		return err
	}
	path := addr.CollectionPath()
	if err := p.transport.DeleteResource(ctx, path, storagemodels.RequestOptions{}); err != nil {
		return errors.Wrap("delete", path.String(), err)
	}
	p.logger.Info("collection deleted", "database", db, "collection", coll)
	return nil
}

// ensure reads path and creates it from body when absent. A create that loses
// a race to another caller reports Found. The returned document is the
// existing resource when one was read, or nil.
func (p *Provisioner) ensure(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Status, storagemodels.Document, error) {
	return ensureResource(ctx, p.transport, p.logger, path, body, opts)
}

func ensureResource(ctx context.Context, t datastore.Transport, logger *slog.Logger, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Status, storagemodels.Document, error) {
	existing, err := t.ReadResource(ctx, path, opts)
	switch {
	case err == nil:
		return storagemodels.Found, existing, nil
	case !errors.IsNotFound(err):
		return storagemodels.StatusUnknown, nil, errors.Wrap("read", path.String(), err)
	}

	if _, err := t.CreateResource(ctx, path, body, opts); err != nil {
		if errors.IsAlreadyExists(err) {
			logger.Debug("resource created concurrently", "path", path.String())
			if path.Kind() != storagemodels.PathCollection {
				return storagemodels.Found, nil, nil
			}
			// The winner's collection options are authoritative.
			existing, rerr := t.ReadResource(ctx, path, opts)
			if rerr != nil {
				logger.Warn("reading concurrently created resource failed, assuming requested options",
					"path", path.String(), "error", rerr)
				return storagemodels.Found, nil, nil
			}
			return storagemodels.Found, existing, nil
		}
		return storagemodels.StatusUnknown, nil, errors.Wrap("create", path.String(), err)
	}
	return storagemodels.Created, nil, nil
}
