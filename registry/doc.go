/*
Package registry maps Go document types to their collection settings.

Partition Key Registry:
Associates a Go type with the partition key path its collection is created
with, so a client can be constructed without repeating it:

	registry.MustRegisterPartitionKeyPath[sample.Family]("/lastName")

	path, ok := registry.GetPartitionKeyPath[sample.Family]()

An explicit docstore.Config.CollectionOptions.PartitionKeyPath takes
precedence over the registered path.

The registry is thread-safe and should be populated during initialization,
typically in init() functions.
*/
package registry
