/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// Item attributes. Document bodies live under attrDoc so their property
// names never collide with the key or system attributes.
const (
	attrPK   = "PK"
	attrSK   = "SK"
	attrDoc  = "doc"
	attrColl = "_coll"
	attrETag = "_etag"
	attrTS   = "_ts"
	attrSeq  = "_seq"
	attrNext = "next"
)

// Reserved partition keys. Collection names cannot contain '#', so these never
// collide with document keys.
const (
	catalogPK  = "#collections"
	sequencePK = "#sequence"
)

// documentPK returns the partition key of a document in collection coll whose
// partition key value is partition.
func documentPK(coll, partition string) string {
	return coll + "#" + partition
}

func tableKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// createTableInput describes the table backing one database.
func createTableInput(name string) *sdk.CreateTableInput {
	return &sdk.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

func (t *Transport) readDatabase(ctx context.Context, db string) (storagemodels.Document, error) {
	name, err := t.TableName(db)
	if err != nil {
		return nil, err
	}
	out, err := t.client.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return nil, mapError(err, "database", db)
	}
	if out.Table == nil || out.Table.TableStatus == types.TableStatusDeleting {
		return nil, errors.NewNotFoundError("database", db)
	}
	if out.Table.TableStatus == types.TableStatusCreating {
		// Items cannot be read or written until the table is ACTIVE.
		active, err := t.waitForTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if active != nil && active.Table != nil {
			out = active
		}
	}

	doc := storagemodels.Document{
		storagemodels.IDProperty: db,
		"table":                  name,
		"status":                 string(out.Table.TableStatus),
	}
	if out.Table.CreationDateTime != nil {
		doc[storagemodels.TimestampProperty] = float64(out.Table.CreationDateTime.Unix())
	}
	return doc, nil
}

func (t *Transport) createDatabase(ctx context.Context, db string) (storagemodels.Document, error) {
	name, err := t.TableName(db)
	if err != nil {
		return nil, err
	}
	if _, err := t.client.CreateTable(ctx, createTableInput(name)); err != nil {
		mapped := mapError(err, "database", db)
		if errors.IsAlreadyExists(mapped) {
			// Another caller's table may still be CREATING.
			if _, werr := t.waitForTable(ctx, name); werr != nil {
				return nil, werr
			}
		}
		return nil, mapped
	}
	t.logger.Info("DynamoDB table created", "table", name)

	if _, err := t.waitForTable(ctx, name); err != nil {
		return nil, err
	}

	return storagemodels.Document{
		storagemodels.IDProperty:        db,
		storagemodels.TimestampProperty: float64(t.now().Unix()),
		"table":                         name,
		"status":                        string(types.TableStatusActive),
	}, nil
}

// waitForTable blocks until table name is ACTIVE, bounded by the wait
// timeout. It returns nil output when waiting is disabled.
func (t *Transport) waitForTable(ctx context.Context, name string) (*sdk.DescribeTableOutput, error) {
	if t.waitTimeout <= 0 {
		return nil, nil
	}
	waiter := sdk.NewTableExistsWaiter(t.client, func(o *sdk.TableExistsWaiterOptions) {
		if t.waitDelay > 0 {
			o.MinDelay = t.waitDelay
			o.MaxDelay = 4 * t.waitDelay
		}
	})
	out, err := waiter.WaitForOutput(ctx, &sdk.DescribeTableInput{TableName: aws.String(name)}, t.waitTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for table %s: %w", errors.ErrTransport, name, err)
	}
	return out, nil
}

func (t *Transport) deleteDatabase(ctx context.Context, db string) error {
	name, err := t.TableName(db)
	if err != nil {
		return err
	}
	if _, err := t.client.DeleteTable(ctx, &sdk.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		return mapError(err, "database", db)
	}
	t.logger.Info("DynamoDB table deleted", "table", name)

	if t.waitTimeout > 0 {
		waiter := sdk.NewTableNotExistsWaiter(t.client, func(o *sdk.TableNotExistsWaiterOptions) {
			if t.waitDelay > 0 {
				o.MinDelay = t.waitDelay
				o.MaxDelay = 4 * t.waitDelay
			}
		})
		if err := waiter.Wait(ctx, &sdk.DescribeTableInput{TableName: aws.String(name)}, t.waitTimeout); err != nil {
			return fmt.Errorf("%w: waiting for table %s deletion: %w", errors.ErrTransport, name, err)
		}
	}
	return nil
}
