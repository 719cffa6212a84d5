/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"
)

// RequestOptions travel alongside a resource path on single-resource calls.
type RequestOptions struct {
	// PartitionKey scopes a document operation to one partition. The document
	// client fills in Path from the collection definition.
	PartitionKey *PartitionKey
	// IfMatch makes a replace or delete conditional on the stored _etag.
	IfMatch string
	// Throughput is the capacity hint applied when creating a collection.
	Throughput int32
}

// RequestOption is a functional option for configuring a single request
type RequestOption func(*RequestOptions)

// NewRequestOptions applies opts to a zero RequestOptions.
func NewRequestOptions(opts ...RequestOption) RequestOptions {
	var ro RequestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// WithPartitionKey sets the partition key value of the addressed document
func WithPartitionKey(value string) RequestOption {
	return func(opts *RequestOptions) {
		opts.PartitionKey = &PartitionKey{Value: value}
	}
}

// IfMatch makes the request fail with ErrPreconditionFailed unless the stored
// document still carries etag
func IfMatch(etag string) RequestOption {
	return func(opts *RequestOptions) {
		opts.IfMatch = etag
	}
}

// WithThroughput sets the throughput hint used when creating a collection
func WithThroughput(ru int32) RequestOption {
	return func(opts *RequestOptions) {
		opts.Throughput = ru
	}
}

// FeedOptions configures query execution
type FeedOptions struct {
	PartitionKey    string             // Restrict results to one partition key value
	MaxItemCount    int32              // Items per page; <= 0 lets the store decide (default: -1)
	MaxRetries      int                // Retry attempts for throttled pages (default: 3)
	RetryBackoff    time.Duration      // Backoff between retries (default: 1s)
	ProgressHandler func(FeedProgress) // Optional callback after every page
}

// FeedProgress tracks query paging progress
type FeedProgress struct {
	ItemsProcessed int64     // Total items yielded so far
	PagesProcessed int       // Total pages fetched
	StartTime      time.Time // When the query started
}

// FeedOption is a functional option for configuring queries
type FeedOption func(*FeedOptions)

// DefaultFeedOptions returns default feed options
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		MaxItemCount: -1,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// NewFeedOptions applies opts on top of DefaultFeedOptions.
func NewFeedOptions(opts ...FeedOption) FeedOptions {
	fo := DefaultFeedOptions()
	for _, opt := range opts {
		opt(&fo)
	}
	return fo
}

// WithFeedPartitionKey restricts a query to documents in one partition
func WithFeedPartitionKey(value string) FeedOption {
	return func(opts *FeedOptions) {
		opts.PartitionKey = value
	}
}

// WithMaxItemCount sets the page size
func WithMaxItemCount(n int32) FeedOption {
	return func(opts *FeedOptions) {
		opts.MaxItemCount = n
	}
}

// WithMaxRetries sets the maximum retry attempts for a throttled page
func WithMaxRetries(retries int) FeedOption {
	return func(opts *FeedOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the retry backoff duration
func WithRetryBackoff(backoff time.Duration) FeedOption {
	return func(opts *FeedOptions) {
		opts.RetryBackoff = backoff
	}
}

// WithProgressHandler sets a progress callback
func WithProgressHandler(handler func(FeedProgress)) FeedOption {
	return func(opts *FeedOptions) {
		opts.ProgressHandler = handler
	}
}
