/*
Package ddb provides a DynamoDB implementation of datastore.Transport.

Storage layout follows a single-table design per database:

	table   "{prefix}{database}"          one per database, PK/SK string keys
	catalog PK="#collections" SK=name     one item per collection
	counter PK="#sequence"    SK=name     insertion counter per collection
	doc     PK="{coll}#{pk}"  SK=id       document body under "doc"

The partition key value of an unpartitioned collection is empty, so its
documents share PK "{coll}#".

Key Features:

Conditional writes:
Creates use attribute_not_exists, replaces and deletes use attribute_exists
plus an optional _etag match. Failed conditions return the old item so a
missing document can be told from a stale version.

Queries:
Structured queries run as a filtered Scan and raw queries as a parameterized
PartiQL statement. A feed partition key on a partitioned collection turns the
query into a key-condition Query. Throttled pages are retried with linear
backoff and results are returned in insertion order.

The transport registers itself as "dynamodb":

	t, err := datastore.Open(ctx, ddb.BackendName, datastore.Settings{
	    Region:   "us-east-1",
	    Endpoint: "http://localhost:8000", // DynamoDB Local
	})
*/
package ddb
