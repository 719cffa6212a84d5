/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// batchWriteLimit is the maximum number of requests in one BatchWriteItem call.
const batchWriteLimit = 25

// collectionInfo is a decoded collection catalog item.
type collectionInfo struct {
	table string
	name  string
	opts  storagemodels.CollectionOptions
	doc   storagemodels.Document
}

// storedItem is a decoded document item.
type storedItem struct {
	seq uint64
	doc storagemodels.Document
}

func newETag() string {
	return strconv.Quote(uuid.NewString())
}

// encodeItem builds the item stored for body. Catalog items pass an empty
// coll so collection scans never see them.
func encodeItem(pk, sk, coll string, body storagemodels.Document, etag string, ts time.Time) (map[string]types.AttributeValue, error) {
	doc, err := marshalBody(body)
	if err != nil {
		return nil, errors.NewValidationError("document", fmt.Sprintf("cannot encode document %q: %v", sk, err))
	}
	item := map[string]types.AttributeValue{
		attrPK:   &types.AttributeValueMemberS{Value: pk},
		attrSK:   &types.AttributeValueMemberS{Value: sk},
		attrDoc:  &types.AttributeValueMemberM{Value: doc},
		attrETag: &types.AttributeValueMemberS{Value: etag},
		attrTS:   &types.AttributeValueMemberN{Value: strconv.FormatInt(ts.Unix(), 10)},
	}
	if coll != "" {
		item[attrColl] = &types.AttributeValueMemberS{Value: coll}
	}
	return item, nil
}

// marshalBody encodes body without its system properties. Numbers kept as
// json.Number are stored as N rather than S.
func marshalBody(body storagemodels.Document) (map[string]types.AttributeValue, error) {
	doc := body.WithoutSystemProperties().MapScalars(func(v any) any {
		if n, ok := v.(json.Number); ok {
			return attributevalue.Number(n)
		}
		return v
	})
	return attributevalue.MarshalMap(map[string]any(doc))
}

// decodeItem returns the document stored in item with its system properties.
func decodeItem(item map[string]types.AttributeValue) (storedItem, error) {
	av, ok := item[attrDoc].(*types.AttributeValueMemberM)
	if !ok {
		return storedItem{}, errors.Malformed("item has no %s map", attrDoc)
	}
	var raw map[string]any
	err := attributevalue.UnmarshalMapWithOptions(av.Value, &raw, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return storedItem{}, errors.Malformed("decode item: %v", err)
	}
	doc := storagemodels.Document(raw).MapScalars(func(v any) any {
		if n, ok := v.(attributevalue.Number); ok {
			return storagemodels.PreciseNumber(json.Number(n))
		}
		return v
	})
	if doc == nil {
		doc = storagemodels.Document{}
	}

	if v, ok := item[attrETag].(*types.AttributeValueMemberS); ok {
		doc[storagemodels.ETagProperty] = v.Value
	}
	if v, ok := item[attrTS].(*types.AttributeValueMemberN); ok {
		ts, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return storedItem{}, errors.Malformed("decode %s: %v", attrTS, err)
		}
		doc[storagemodels.TimestampProperty] = ts
	}

	var seq uint64
	if v, ok := item[attrSeq].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return storedItem{}, errors.Malformed("decode %s: %v", attrSeq, err)
		}
		seq = n
	}
	return storedItem{seq: seq, doc: doc}, nil
}

// buildUpdateExpression transforms a map of attribute->value into:
//   - an "update expression" (e.g., "SET #u0 = :u0, #u1 = :u1")
//   - a corresponding map of expression attribute names
//   - a corresponding map of expression attribute values
//
// Attributes are emitted in sorted order so the expression is deterministic.
func buildUpdateExpression(updates map[string]types.AttributeValue) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(updates) == 0 {
		return "", nil, nil, errors.NewValidationError("updates", "no updates provided")
	}

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	setClauses := make([]string, 0, len(fields))
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	for i, field := range fields {
		placeholderName := fmt.Sprintf("#u%d", i)
		placeholderValue := fmt.Sprintf(":u%d", i)
		setClauses = append(setClauses, placeholderName+" = "+placeholderValue)
		names[placeholderName] = field
		values[placeholderValue] = updates[field]
	}
	return "SET " + strings.Join(setClauses, ", "), names, values, nil
}

// writeCondition returns the condition guarding a write to an existing or
// absent item, optionally requiring its _etag to equal ifMatch. It adds its
// placeholders to names and values.
func writeCondition(mustExist bool, ifMatch string, names map[string]string, values map[string]types.AttributeValue) string {
	names["#pk"] = attrPK
	cond := "attribute_not_exists(#pk)"
	if mustExist {
		cond = "attribute_exists(#pk)"
	}
	if ifMatch != "" {
		names["#etag"] = attrETag
		values[":ifMatch"] = &types.AttributeValueMemberS{Value: ifMatch}
		cond += " AND #etag = :ifMatch"
	}
	return cond
}

func (t *Transport) readCollection(ctx context.Context, path storagemodels.Path) (*collectionInfo, error) {
	table, err := t.TableName(path.Database())
	if err != nil {
		return nil, err
	}
	out, err := t.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(table),
		Key:            tableKey(catalogPK, path.Collection()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError(err, "database", path.Database())
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("collection", path.Collection())
	}

	stored, err := decodeItem(out.Item)
	if err != nil {
		return nil, err
	}
	opts, err := storagemodels.ParseCollectionDocument(stored.doc)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %w", errors.ErrMalformed, path.Collection(), err)
	}
	if tp, ok := stored.doc["throughput"].(float64); ok {
		opts.Throughput = int32(tp)
	}
	return &collectionInfo{table: table, name: path.Collection(), opts: opts, doc: stored.doc}, nil
}

func (t *Transport) createCollection(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	table, err := t.TableName(path.Database())
	if err != nil {
		return nil, err
	}
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
	etag, now := newETag(), t.now()
	item, err := encodeItem(catalogPK, name, "", doc, etag, now)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	cond := writeCondition(false, "", names, nil)
	_, err = t.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		if _, ok := conditionFailure(err); ok {
			return nil, errors.NewAlreadyExistsError("collection", name)
		}
		return nil, mapError(err, "database", path.Database())
	}
	return stamp(doc, etag, now), nil
}

func (t *Transport) deleteCollection(ctx context.Context, path storagemodels.Path) error {
	info, err := t.readCollection(ctx, path)
	if err != nil {
		return err
	}
	if err := t.purgeCollection(ctx, info); err != nil {
		return err
	}

	names := map[string]string{}
	cond := writeCondition(true, "", names, nil)
	_, err = t.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:                aws.String(info.table),
		Key:                      tableKey(catalogPK, info.name),
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		if _, ok := conditionFailure(err); ok {
			return errors.NewNotFoundError("collection", info.name)
		}
		return mapError(err, "collection", info.name)
	}
	return nil
}

// purgeCollection deletes every document of a collection and its sequence
// counter.
func (t *Transport) purgeCollection(ctx context.Context, info *collectionInfo) error {
	keys := []map[string]types.AttributeValue{tableKey(sequencePK, info.name)}

	paginator := sdk.NewScanPaginator(t.client, &sdk.ScanInput{
		TableName:            aws.String(info.table),
		FilterExpression:     aws.String("#coll = :coll"),
		ProjectionExpression: aws.String("#pk, #sk"),
		ExpressionAttributeNames: map[string]string{
			"#coll": attrColl,
			"#pk":   attrPK,
			"#sk":   attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":coll": &types.AttributeValueMemberS{Value: info.name},
		},
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapError(err, "collection", info.name)
		}
		keys = append(keys, page.Items...)
	}

	for start := 0; start < len(keys); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(keys))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}
		if err := t.batchWrite(ctx, info.table, requests); err != nil {
			return mapError(err, "collection", info.name)
		}
	}
	return nil
}

// batchWrite sends requests, resubmitting unprocessed ones with linear
// backoff.
func (t *Transport) batchWrite(ctx context.Context, table string, requests []types.WriteRequest) error {
	const maxAttempts = 5
	pending := map[string][]types.WriteRequest{table: requests}
	for attempt := 1; len(pending[table]) > 0; attempt++ {
		out, err := t.client.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
		if len(pending[table]) == 0 {
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("%w: %d deletes unprocessed after %d attempts", errors.ErrThrottled, len(pending[table]), attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil
}

func (t *Transport) readDocument(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	info, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	partition, err := datastore.ResolvePartition(info.opts.PartitionKeyPath, nil, opts)
	if err != nil {
		return nil, err
	}

	id := path.DocumentID()
	out, err := t.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(info.table),
		Key:            tableKey(documentPK(info.name, partition), id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError(err, "document", id)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("document", id)
	}
	stored, err := decodeItem(out.Item)
	if err != nil {
		return nil, err
	}
	return stored.doc, nil
}

func (t *Transport) createDocument(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	info, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	id := path.DocumentID()
	if body.ID() != id {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(info.opts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}

	seq, err := t.nextSeq(ctx, info)
	if err != nil {
		return nil, err
	}
	etag, now := newETag(), t.now()
	item, err := encodeItem(documentPK(info.name, partition), id, info.name, body, etag, now)
	if err != nil {
		return nil, err
	}
	item[attrSeq] = &types.AttributeValueMemberN{Value: strconv.FormatUint(seq, 10)}

	names := map[string]string{}
	cond := writeCondition(false, "", names, nil)
	_, err = t.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:                aws.String(info.table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		if _, ok := conditionFailure(err); ok {
			return nil, errors.NewAlreadyExistsError("document", id)
		}
		return nil, mapError(err, "document", id)
	}
	return stamp(body.WithoutSystemProperties().Clone(), etag, now), nil
}

// nextSeq atomically increments the collection's insertion counter.
func (t *Transport) nextSeq(ctx context.Context, info *collectionInfo) (uint64, error) {
	out, err := t.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName:                aws.String(info.table),
		Key:                      tableKey(sequencePK, info.name),
		UpdateExpression:         aws.String("ADD #next :one"),
		ExpressionAttributeNames: map[string]string{"#next": attrNext},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, mapError(err, "collection", info.name)
	}
	v, ok := out.Attributes[attrNext].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.Malformed("sequence counter for %s returned no value", info.name)
	}
	seq, err := strconv.ParseUint(v.Value, 10, 64)
	if err != nil {
		return 0, errors.Malformed("sequence counter for %s: %v", info.name, err)
	}
	return seq, nil
}

func (t *Transport) replaceDocument(ctx context.Context, path storagemodels.Path, body storagemodels.Document, opts storagemodels.RequestOptions) (storagemodels.Document, error) {
	info, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return nil, err
	}
	id := path.DocumentID()
	if body.ID() != id {
		return nil, errors.NewValidationError(storagemodels.IDProperty, fmt.Sprintf("document id %q does not match path %q", body.ID(), path))
	}
	partition, err := datastore.ResolvePartition(info.opts.PartitionKeyPath, body, opts)
	if err != nil {
		return nil, err
	}

	doc, err := marshalBody(body)
	if err != nil {
		return nil, errors.NewValidationError("document", fmt.Sprintf("cannot encode document %q: %v", id, err))
	}
	etag, now := newETag(), t.now()
	updateExpr, names, values, err := buildUpdateExpression(map[string]types.AttributeValue{
		attrDoc:  &types.AttributeValueMemberM{Value: doc},
		attrETag: &types.AttributeValueMemberS{Value: etag},
		attrTS:   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}
	cond := writeCondition(true, opts.IfMatch, names, values)

	out, err := t.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName:                           aws.String(info.table),
		Key:                                 tableKey(documentPK(info.name, partition), id),
		UpdateExpression:                    aws.String(updateExpr),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return nil, writeFailure(err, "replace", id, opts.IfMatch)
	}
	stored, err := decodeItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return stored.doc, nil
}

func (t *Transport) deleteDocument(ctx context.Context, path storagemodels.Path, opts storagemodels.RequestOptions) error {
	info, err := t.readCollection(ctx, path.Parent())
	if err != nil {
		return err
	}
	partition, err := datastore.ResolvePartition(info.opts.PartitionKeyPath, nil, opts)
	if err != nil {
		return err
	}

	id := path.DocumentID()
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	cond := writeCondition(true, opts.IfMatch, names, values)
	if len(values) == 0 {
		values = nil
	}
	_, err = t.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:                           aws.String(info.table),
		Key:                                 tableKey(documentPK(info.name, partition), id),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return writeFailure(err, "delete", id, opts.IfMatch)
	}
	return nil
}

// writeFailure tells a missing document from a stale _etag using the item
// returned with a failed condition check.
func writeFailure(err error, op, id, ifMatch string) error {
	cfe, ok := conditionFailure(err)
	if !ok {
		return mapError(err, "document", id)
	}
	if len(cfe.Item) == 0 {
		return errors.NewNotFoundError("document", id)
	}
	current := ""
	if v, ok := cfe.Item[attrETag].(*types.AttributeValueMemberS); ok {
		current = v.Value
	}
	return errors.NewConditionFailedError(op, fmt.Sprintf("_etag %s does not match %s", ifMatch, current))
}

func stamp(doc storagemodels.Document, etag string, ts time.Time) storagemodels.Document {
	doc[storagemodels.ETagProperty] = etag
	doc[storagemodels.TimestampProperty] = float64(ts.Unix())
	return doc
}
