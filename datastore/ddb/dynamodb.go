/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// BackendName is the name the transport is registered under.
const BackendName = "dynamodb"

// DefaultTablePrefix is prepended to database names to form table names.
const DefaultTablePrefix = "docstore."

// DefaultWaitTimeout bounds how long table creation and deletion are awaited.
const DefaultWaitTimeout = 2 * time.Minute

func init() {
	datastore.MustRegister(BackendName, func(ctx context.Context, s datastore.Settings) (datastore.Transport, error) {
		client, err := NewDynamoDBClient(ctx, s)
		if err != nil {
			return nil, err
		}
		var opts []Option
		if s.TablePrefix != "" {
			opts = append(opts, WithTablePrefix(s.TablePrefix))
		}
		return New(client, opts...), nil
	})
}

// API is the subset of the DynamoDB client used by the transport.
type API interface {
	CreateTable(ctx context.Context, params *sdk.CreateTableInput, optFns ...func(*sdk.Options)) (*sdk.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *sdk.DescribeTableInput, optFns ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *sdk.DeleteTableInput, optFns ...func(*sdk.Options)) (*sdk.DeleteTableOutput, error)
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *sdk.BatchWriteItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	ExecuteStatement(ctx context.Context, params *sdk.ExecuteStatementInput, optFns ...func(*sdk.Options)) (*sdk.ExecuteStatementOutput, error)
}

// Transport implements datastore.Transport on DynamoDB.
//
// Each database is one table named by the table prefix and the database name.
// Collections are catalog items in their database's table and documents are
// items keyed by collection, partition key value and id.
type Transport struct {
	client      API
	prefix      string
	waitTimeout time.Duration
	waitDelay   time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Transport
type Option func(*Transport)

// WithTablePrefix sets the prefix prepended to database names.
func WithTablePrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithWaitTimeout bounds how long table creation and deletion are awaited.
// Zero disables waiting, in which case a table that is still CREATING is
// reported as an existing database.
func WithWaitTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.waitTimeout = d
	}
}

// WithWaitDelay sets the minimum delay between table status polls. Zero
// keeps the SDK waiter defaults.
func WithWaitDelay(d time.Duration) Option {
	return func(t *Transport) {
		t.waitDelay = d
	}
}

// WithLogger sets the logger for table lifecycle events.
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

// New constructs a Transport on top of client.
func New(client API, opts ...Option) *Transport {
	t := &Transport{
		client:      client,
		prefix:      DefaultTablePrefix,
		waitTimeout: DefaultWaitTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// NewDynamoDBClient initializes a DynamoDB client from s. Static credentials
// are used when an access key is configured, the default chain otherwise.
// A non-empty endpoint points the client at DynamoDB Local or a proxy.
func NewDynamoDBClient(ctx context.Context, s datastore.Settings) (*sdk.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if s.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.Region))
	}
	if s.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	})

	slog.Debug("DynamoDB client initialized", "region", cfg.Region, "endpoint", s.Endpoint)
	return client, nil
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,255}$`)

// TableName returns the table backing database db.
func (t *Transport) TableName(db string) (string, error) {
	name := t.prefix + db
	if !tableNamePattern.MatchString(name) {
		return "", errors.NewValidationError("database",
			fmt.Sprintf("%q does not form a valid DynamoDB table name (letters, digits, '_', '.', '-'; 3 to 255 characters)", name))
	}
	return name, nil
}

// ReadResource returns the database, collection or document at path
func (t *Transport) ReadResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	switch path.Kind() {
	case storagemodels.PathDatabase:
		return t.readDatabase(ctx, path.Database())
	case storagemodels.PathCollection:
		coll, err := t.readCollection(ctx, path)
		if err != nil {
			return nil, err
		}
		return coll.doc, nil
	}
	return t.readDocument(ctx, path, opts)
}

// CreateResource creates the resource at path or fails with ErrAlreadyExists
func (t *Transport) CreateResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	switch path.Kind() {
	case storagemodels.PathDatabase:
		return t.createDatabase(ctx, path.Database())
	case storagemodels.PathCollection:
		return t.createCollection(ctx, path, body, opts)
	}
	return t.createDocument(ctx, path, body, opts)
}

// ReplaceResource overwrites an existing document
func (t *Transport) ReplaceResource(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.Kind() != storagemodels.PathDocument {
		return nil, errors.NewValidationError("path", fmt.Sprintf("only documents can be replaced, got %s path", path.Kind()))
	}
	return t.replaceDocument(ctx, path, body, opts)
}

// DeleteResource removes the resource at path and everything below it
func (t *Transport) DeleteResource(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) error {
	if err := path.Validate(); err != nil {
		return err
	}
	switch path.Kind() {
	case storagemodels.PathDatabase:
		return t.deleteDatabase(ctx, path.Database())
	case storagemodels.PathCollection:
		return t.deleteCollection(ctx, path)
	}
	return t.deleteDocument(ctx, path, opts)
}
