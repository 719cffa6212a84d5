/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// whereClause renders conditions as SQL over the JSON body column. json_type
// guards each comparison so that true never equals 1 and "5" never equals 5.
func whereClause(conds []query.Condition) (string, []any, error) {
	var clauses []string
	var args []any
	for _, c := range conds {
		path := "$." + c.Field
		switch v := c.Value.(type) {
		case string:
			clauses = append(clauses, "(json_type(body, ?) = 'text' AND json_extract(body, ?) = ?)")
			args = append(args, path, path, v)
		case float64:
			clauses = append(clauses, "(json_type(body, ?) IN ('integer', 'real') AND json_extract(body, ?) = ?)")
			args = append(args, path, path, v)
		case bool:
			clauses = append(clauses, "json_type(body, ?) = ?")
			args = append(args, path, fmt.Sprint(v))
		default:
			return "", nil, errors.Malformed("unsupported literal %T for %s", c.Value, c.Field)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// ExecuteQuery runs spec over the documents of the collection at path in
// insertion order. Both query modes compile to the same SQL. Pages of
// opts.MaxItemCount rows are read with keyset pagination on seq, so no rows
// are held open while documents are yielded.
func (t *Transport) ExecuteQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) iter.Seq2[storagemodels.Document, error] {
	return func(yield func(storagemodels.Document, error) bool) {
		stmt, args, err := t.prepareQuery(ctx, path, spec, opts)
		if err != nil {
			yield(nil, err)
			return
		}

		limit := int64(-1)
		if opts.MaxItemCount > 0 {
			limit = int64(opts.MaxItemCount)
		}
		progress := storagemodels.FeedProgress{StartTime: t.now()}

		var after int64
		for {
			page, last, err := t.queryPage(ctx, stmt, append(args, after, limit))
			if err != nil {
				yield(nil, err)
				return
			}
			progress.PagesProcessed++
			progress.ItemsProcessed += int64(len(page))
			if opts.ProgressHandler != nil {
				opts.ProgressHandler(progress)
			}

			for _, doc := range page {
				if !yield(doc, nil) {
					return
				}
			}
			if limit < 0 || int64(len(page)) < limit {
				return
			}
			after = last
		}
	}
}

func (t *Transport) prepareQuery(ctx context.Context, path storagemodels.Path, spec query.Spec, opts storagemodels.FeedOptions) (string, []any, error) {
	if err := path.Validate(); err != nil {
		return "", nil, err
	}
	if path.Kind() != storagemodels.PathCollection {
		return "", nil, errors.NewValidationError("path", fmt.Sprintf("queries run against collections, got %s path", path.Kind()))
	}
	pred, err := spec.Predicate().Normalized()
	if err != nil {
		return "", nil, err
	}
	_, collOpts, err := t.readCollection(ctx, path)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT seq, body, etag, ts FROM documents WHERE db = ? AND coll = ?")
	args := []any{path.Database(), path.Collection()}

	if opts.PartitionKey != "" && collOpts.Partitioned() {
		b.WriteString(" AND pk = ?")
		args = append(args, opts.PartitionKey)
	}
	where, whereArgs, err := whereClause(pred.Conditions())
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		b.WriteString(" AND " + where)
		args = append(args, whereArgs...)
	}
	b.WriteString(" AND seq > ? ORDER BY seq LIMIT ?")
	return b.String(), args, nil
}

// queryPage reads one page and returns the seq of its last row.
func (t *Transport) queryPage(ctx context.Context, stmt string, args []any) ([]storagemodels.Document, int64, error) {
	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, mapError(err, "query", stmt)
	}
	defer rows.Close()

	var page []storagemodels.Document
	var last int64
	for rows.Next() {
		var body, etag string
		var ts int64
		if err := rows.Scan(&last, &body, &etag, &ts); err != nil {
			return nil, 0, mapError(err, "query", stmt)
		}
		doc, err := decode(body, etag, ts)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "query", stmt)
	}
	return page, last, nil
}
