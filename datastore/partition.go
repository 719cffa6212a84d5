/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"fmt"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// ResolvePartition returns the partition key value a document request targets
// in a collection partitioned on pkPath. An unpartitioned collection always
// resolves to "".
//
// When body is non-nil its partition key property is authoritative and must
// agree with opts.PartitionKey if that is set. Without a body the request must
// carry opts.PartitionKey.
func ResolvePartition(pkPath string, body storagemodels.Document, opts storagemodels.RequestOptions) (string, error) {
	if pkPath == "" {
		return "", nil
	}
	if body == nil {
		if opts.PartitionKey == nil || opts.PartitionKey.Value == "" {
			return "", errors.NewValidationError("partitionKey", fmt.Sprintf("collection is partitioned on %s; a partition key value is required", pkPath))
		}
		return opts.PartitionKey.Value, nil
	}
	value, err := body.PartitionKeyValue(pkPath)
	if err != nil {
		return "", err
	}
	if opts.PartitionKey != nil && opts.PartitionKey.Value != "" && opts.PartitionKey.Value != value {
		return "", errors.NewValidationError("partitionKey", fmt.Sprintf("document %s is %q but the request targets %q", pkPath, value, opts.PartitionKey.Value))
	}
	return value, nil
}
