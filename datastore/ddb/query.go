/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// pageFunc fetches the next page of items and reports whether more follow.
// A failed call leaves the cursor where it was, so it can be retried.
type pageFunc func(ctx context.Context) (items []map[string]types.AttributeValue, more bool, err error)

// ExecuteQuery runs spec over the documents of the collection at path.
//
// Structured specs are evaluated with a Scan filter and raw specs with a
// PartiQL statement. When opts.PartitionKey names a partition of a
// partitioned collection only that partition is queried. Every page is
// fetched before the first document is yielded, since DynamoDB returns items
// in key order and results are sorted into insertion order.
func (t *Transport) ExecuteQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) iter.Seq2[storagemodels.Document, error] {
	return func(yield func(storagemodels.Document, error) bool) {
		docs, err := t.executeQuery(ctx, path, spec, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (t *Transport) executeQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) ([]storagemodels.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if path.Kind() != storagemodels.PathCollection {
		return nil, errors.NewValidationError("path", fmt.Sprintf("queries run against collections, got %s path", path.Kind()))
	}
	pred, err := spec.Predicate().Normalized()
	if err != nil {
		return nil, err
	}
	info, err := t.readCollection(ctx, path)
	if err != nil {
		return nil, err
	}

	var next pageFunc
	switch {
	case opts.PartitionKey != "" && info.opts.Partitioned():
		next, err = t.partitionPages(info, opts.PartitionKey, pred.Conditions(), opts.MaxItemCount)
	case spec.Mode() == query.ModeRaw:
		next, err = t.statementPages(info, pred.Conditions(), opts.MaxItemCount)
	default:
		next, err = t.scanPages(info, pred.Conditions(), opts.MaxItemCount)
	}
	if err != nil {
		return nil, err
	}

	stored, err := t.drain(ctx, next, opts)
	if err != nil {
		return nil, mapError(err, "collection", info.name)
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })

	docs := make([]storagemodels.Document, len(stored))
	for i, s := range stored {
		docs[i] = s.doc
	}
	return docs, nil
}

// drain fetches every page, retrying throttled pages and reporting progress
// after each one.
func (t *Transport) drain(ctx context.Context, next pageFunc, opts storagemodels.FeedOptions) ([]storedItem, error) {
	progress := storagemodels.FeedProgress{StartTime: t.now()}
	var out []storedItem

	for more := true; more; {
		var items []map[string]types.AttributeValue
		var err error
		items, more, err = pageWithRetry(ctx, next, opts)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			s, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		progress.PagesProcessed++
		progress.ItemsProcessed += int64(len(items))
		if opts.ProgressHandler != nil {
			opts.ProgressHandler(progress)
		}
	}
	return out, nil
}

// pageWithRetry executes next with configurable retry logic
func pageWithRetry(ctx context.Context, next pageFunc, opts storagemodels.FeedOptions) ([]map[string]types.AttributeValue, bool, error) {
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		items, more, err := next(ctx)
		if err == nil {
			return items, more, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, false, err
		}

		// Don't sleep after last attempt
		if attempt < opts.MaxRetries {
			backoff := time.Duration(attempt+1) * opts.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, false, fmt.Errorf("query failed after %d retries: %w", opts.MaxRetries, lastErr)
}

// filterExpression renders conditions on document properties as a
// DynamoDB condition expression over the attrDoc map.
func filterExpression(conds []query.Condition, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	names["#doc"] = attrDoc
	clauses := make([]string, 0, len(conds))
	for i, c := range conds {
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return "", errors.Malformed("encode value of %s: %v", c.Field, err)
		}
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = c.Field
		values[value] = av
		clauses = append(clauses, fmt.Sprintf("#doc.%s = %s", name, value))
	}
	return strings.Join(clauses, " AND "), nil
}

func (t *Transport) scanPages(info *collectionInfo, conds []query.Condition, limit int32) (pageFunc, error) {
	names := map[string]string{"#coll": attrColl}
	values := map[string]types.AttributeValue{
		":coll": &types.AttributeValueMemberS{Value: info.name},
	}
	filter, err := filterExpression(conds, names, values)
	if err != nil {
		return nil, err
	}
	expr := "#coll = :coll"
	if filter != "" {
		expr += " AND " + filter
	}

	input := &sdk.ScanInput{
		TableName:                 aws.String(info.table),
		FilterExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	paginator := sdk.NewScanPaginator(t.client, input)
	return func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, true, err
		}
		return page.Items, paginator.HasMorePages(), nil
	}, nil
}

func (t *Transport) partitionPages(info *collectionInfo, partition string, conds []query.Condition, limit int32) (pageFunc, error) {
	names := map[string]string{"#pk": attrPK}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: documentPK(info.name, partition)},
	}
	filter, err := filterExpression(conds, names, values)
	if err != nil {
		return nil, err
	}

	input := &sdk.QueryInput{
		TableName:                 aws.String(info.table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	paginator := sdk.NewQueryPaginator(t.client, input)
	return func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, true, err
		}
		return page.Items, paginator.HasMorePages(), nil
	}, nil
}

// partiQLStatement renders conditions as a parameterized PartiQL SELECT over
// one collection of table.
func partiQLStatement(table, coll string, conds []query.Condition) (string, []types.AttributeValue, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM "%s" WHERE "%s" = ?`, table, attrColl)
	params := []types.AttributeValue{&types.AttributeValueMemberS{Value: coll}}

	for _, c := range conds {
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return "", nil, errors.Malformed("encode value of %s: %v", c.Field, err)
		}
		fmt.Fprintf(&b, ` AND "%s"."%s" = ?`, attrDoc, c.Field)
		params = append(params, av)
	}
	return b.String(), params, nil
}

func (t *Transport) statementPages(info *collectionInfo, conds []query.Condition, limit int32) (pageFunc, error) {
	statement, params, err := partiQLStatement(info.table, info.name, conds)
	if err != nil {
		return nil, err
	}

	var nextToken *string
	return func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
		input := &sdk.ExecuteStatementInput{
			Statement:      aws.String(statement),
			Parameters:     params,
			NextToken:      nextToken,
			ConsistentRead: aws.Bool(true),
		}
		if limit > 0 {
			input.Limit = aws.Int32(limit)
		}
		out, err := t.client.ExecuteStatement(ctx, input)
		if err != nil {
			return nil, true, err
		}
		nextToken = out.NextToken
		return out.Items, nextToken != nil, nil
	}, nil
}
