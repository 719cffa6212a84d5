/*
Package storagemodels defines the data structures shared by the docstore client
and its transports.

Key Types:

Path:
Resource addresses. The partition key is never part of a path; it travels in
RequestOptions:

	storagemodels.DatabasePath("FamilyDB")                        // /databases/FamilyDB
	storagemodels.CollectionPath("FamilyDB", "Families")          // /databases/FamilyDB/collections/Families
	storagemodels.DocumentPath("FamilyDB", "Families", "Andersen.1")

Document:
The JSON-shaped body of a resource (map[string]any) with the required "id"
property and the store-maintained "_etag" and "_ts" properties.

CollectionOptions:
Partition key path, throughput hint and indexing policy applied when a
collection is first created:

	opts := storagemodels.DefaultCollectionOptions()
	opts.PartitionKeyPath = "/lastName"

RequestOptions and FeedOptions:
Configured through functional options:

	storagemodels.WithPartitionKey("Andersen")
	storagemodels.IfMatch(item.ETag)
	storagemodels.WithMaxItemCount(-1)

These types provide a consistent interface across the memory, SQLite and
DynamoDB transports.
*/
package storagemodels
