/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/suparena/docstore/errors"
)

// System properties maintained by transports on every stored document.
const (
	IDProperty        = "id"
	ETagProperty      = "_etag"
	TimestampProperty = "_ts"
)

// Document is the JSON-shaped body exchanged with a transport.
type Document map[string]any

// ID returns the document's "id" property, or "" when it is missing or not a string.
func (d Document) ID() string {
	id, _ := d[IDProperty].(string)
	return id
}

// ETag returns the version token assigned by the store on the last write.
func (d Document) ETag() string {
	etag, _ := d[ETagProperty].(string)
	return etag
}

// Timestamp returns the last write time in unix seconds, or 0 if unknown.
func (d Document) Timestamp() int64 {
	switch ts := d[TimestampProperty].(type) {
	case int64:
		return ts
	case int:
		return int64(ts)
	case float64:
		return int64(math.Round(ts))
	case json.Number:
		if i, err := ts.Int64(); err == nil {
			return i
		}
	}
	return 0
}

// Property returns the value of a top-level property named by a partition key
// path such as "/lastName".
func (d Document) Property(path string) (any, bool) {
	v, ok := d[strings.TrimPrefix(path, "/")]
	return v, ok
}

// WithoutSystemProperties returns a shallow copy of d without _etag and _ts.
func (d Document) WithoutSystemProperties() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == ETagProperty || k == TimestampProperty {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of d. Nested maps and slices are copied; scalar
// values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(tv)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// StoreAddress identifies the database and collection a client is bound to.
type StoreAddress struct {
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Validate reports whether both names are usable path segments.
func (a StoreAddress) Validate() error {
	if err := ValidateName("database", a.Database); err != nil {
		return err
	}
	return ValidateName("collection", a.Collection)
}

func (a StoreAddress) DatabasePath() Path {
	return DatabasePath(a.Database)
}

func (a StoreAddress) CollectionPath() Path {
	return CollectionPath(a.Database, a.Collection)
}

func (a StoreAddress) DocumentPath(id string) Path {
	return DocumentPath(a.Database, a.Collection, id)
}

func (a StoreAddress) String() string {
	return a.Database + "/" + a.Collection
}

// PartitionKey addresses the logical partition of a document. Path names a
// top-level property ("/lastName"); Value is that property's value.
type PartitionKey struct {
	Path  string
	Value string
}

// Property returns the property name referenced by the path.
func (pk PartitionKey) Property() string {
	return strings.TrimPrefix(pk.Path, "/")
}

// ValidatePartitionKeyPath accepts "" (unpartitioned) or a single top-level
// property reference such as "/lastName".
func ValidatePartitionKeyPath(path string) error {
	if path == "" {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return errors.NewValidationError("partitionKeyPath", fmt.Sprintf("%q must start with /", path))
	}
	prop := strings.TrimPrefix(path, "/")
	if prop == "" || strings.ContainsAny(prop, "/.[]") {
		return errors.NewValidationError("partitionKeyPath", fmt.Sprintf("%q must reference one top-level property", path))
	}
	if prop == IDProperty || strings.HasPrefix(prop, "_") {
		return errors.NewValidationError("partitionKeyPath", fmt.Sprintf("%q cannot be a reserved property", path))
	}
	return nil
}

// Indexing modes accepted in an IndexingPolicy.
const (
	IndexingConsistent = "consistent"
	IndexingLazy       = "lazy"
	IndexingNone       = "none"
)

// IndexingPolicy is recorded with a collection at creation time.
type IndexingPolicy struct {
	Mode          string   `yaml:"mode"`
	IncludedPaths []string `yaml:"includedPaths"`
}

// CollectionOptions configure a collection when it is first created.
type CollectionOptions struct {
	// PartitionKeyPath is the partition key property, e.g. "/lastName".
	// Empty means the collection is not partitioned.
	PartitionKeyPath string `yaml:"partitionKeyPath"`
	// Throughput is the reserved capacity hint in request units per second.
	// Zero leaves the choice to the store.
	Throughput int32 `yaml:"throughput"`
	// IndexingPolicy configures the store's indexing for the collection.
	IndexingPolicy IndexingPolicy `yaml:"indexingPolicy"`
}

// DefaultCollectionOptions returns the options used by the original getting
// started sample: consistent range indexing on every path and 400 RU/s.
func DefaultCollectionOptions() CollectionOptions {
	return CollectionOptions{
		Throughput: 400,
		IndexingPolicy: IndexingPolicy{
			Mode:          IndexingConsistent,
			IncludedPaths: []string{"/*"},
		},
	}
}

// Partitioned reports whether the collection has a partition key.
func (o CollectionOptions) Partitioned() bool {
	return o.PartitionKeyPath != ""
}

// Validate checks the partition key path, throughput and indexing mode.
func (o CollectionOptions) Validate() error {
	if err := ValidatePartitionKeyPath(o.PartitionKeyPath); err != nil {
		return err
	}
	if o.Throughput < 0 {
		return errors.NewValidationError("throughput", "must not be negative")
	}
	switch o.IndexingPolicy.Mode {
	case "", IndexingConsistent, IndexingLazy, IndexingNone:
	default:
		return errors.NewValidationError("indexingPolicy.mode", fmt.Sprintf("unknown mode %q", o.IndexingPolicy.Mode))
	}
	return nil
}

// CollectionDocument encodes a collection definition as the body of a
// CreateResource call.
func CollectionDocument(name string, opts CollectionOptions) Document {
	doc := Document{IDProperty: name}
	if opts.PartitionKeyPath != "" {
		doc["partitionKey"] = map[string]any{
			"paths": []any{opts.PartitionKeyPath},
			"kind":  "Hash",
		}
	}
	mode := opts.IndexingPolicy.Mode
	if mode == "" {
		mode = IndexingConsistent
	}
	included := make([]any, 0, len(opts.IndexingPolicy.IncludedPaths))
	for _, p := range opts.IndexingPolicy.IncludedPaths {
		included = append(included, p)
	}
	doc["indexingPolicy"] = map[string]any{
		"indexingMode":  mode,
		"includedPaths": included,
	}
	return doc
}

// ParseCollectionDocument decodes a body produced by CollectionDocument.
// Throughput is not part of the body; transports receive it in RequestOptions.
func ParseCollectionDocument(doc Document) (CollectionOptions, error) {
	var opts CollectionOptions
	if doc.ID() == "" {
		return opts, errors.NewValidationError(IDProperty, "collection definition has no id")
	}
	if pk, ok := doc["partitionKey"].(map[string]any); ok {
		paths := toStrings(pk["paths"])
		if len(paths) != 1 {
			return opts, errors.NewValidationError("partitionKey", "exactly one path is supported")
		}
		opts.PartitionKeyPath = paths[0]
	}
	if ip, ok := doc["indexingPolicy"].(map[string]any); ok {
		opts.IndexingPolicy.Mode, _ = ip["indexingMode"].(string)
		opts.IndexingPolicy.IncludedPaths = toStrings(ip["includedPaths"])
	}
	return opts, opts.Validate()
}

func toStrings(v any) []string {
	switch tv := v.(type) {
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, e := range tv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Status is the outcome of a provisioning or document operation.
type Status int

const (
	StatusUnknown Status = iota
	Found
	Created
	Replaced
	Deleted
)

func (s Status) String() string {
	switch s {
	case Found:
		return "Found"
	case Created:
		return "Created"
	case Replaced:
		return "Replaced"
	case Deleted:
		return "Deleted"
	}
	return "Unknown"
}

// PartitionKeyValue returns the string value of the property named by path.
func (d Document) PartitionKeyValue(path string) (string, error) {
	v, ok := d.Property(path)
	if !ok {
		return "", errors.NewValidationError(strings.TrimPrefix(path, "/"), "partition key property is missing")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.NewValidationError(strings.TrimPrefix(path, "/"), "partition key must be a non-empty string")
	}
	return s, nil
}
