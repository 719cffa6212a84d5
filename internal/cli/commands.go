/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

func (s *session) client(ctx context.Context) (*docstore.Client[storagemodels.Document], error) {
	t, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg.ClientConfig()
	cfg.Logger = s.logger
	return docstore.NewClient[storagemodels.Document](ctx, t, cfg)
}

func (s *session) provisionCommand() *Command {
	return &Command{
		Flags: newFlags("provision"),
		Usage: "provision",
		Short: "Create the database and collection if absent",
		Long: "Create the configured database and collection unless they exist.\n" +
			"An existing collection is left as it is.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			t, err := s.open(ctx)
			if err != nil {
				return err
			}
			p := docstore.NewProvisioner(t, s.logger)
			status, err := p.EnsureDatabase(ctx, s.cfg.Database)
			if err != nil {
				return err
			}
			o.Printf("database %s: %s\n", s.cfg.Database, status)

			status, err = p.EnsureCollection(ctx, s.cfg.Database, s.cfg.Collection, s.cfg.CollectionOptions)
			if err != nil {
				return err
			}
			o.Printf("collection %s: %s\n", s.cfg.Collection, status)
			return nil
		},
	}
}

func (s *session) insertCommand() *Command {
	return &Command{
		Flags: newFlags("insert"),
		Usage: "insert [file...]",
		Short: "Create documents unless they exist",
		Long: "Create every document read from the files, or from stdin when no file\n" +
			"or \"-\" is given. Input holds JSON objects or arrays of objects.\n" +
			"Documents that already exist are reported as Found and left unchanged.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			docs, err := readInputs(o, args)
			if err != nil {
				return err
			}
			c, err := s.client(ctx)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				status, err := c.CreateIfAbsent(ctx, doc)
				if err != nil {
					return err
				}
				o.Printf("%s\t%s\n", doc.ID(), status)
			}
			return nil
		},
	}
}

func (s *session) readCommand() *Command {
	fs := newFlags("read")
	pk := fs.StringP("partition-key", "p", "", "partition key value of the document")

	return &Command{
		Flags: fs,
		Usage: "read <id> [--partition-key v]",
		Short: "Print one document",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := singleArg(args, "id")
			if err != nil {
				return err
			}
			c, err := s.client(ctx)
			if err != nil {
				return err
			}
			item, err := c.Read(ctx, id, requestOptions(*pk, "")...)
			if err != nil {
				return err
			}
			return o.PrintJSON(item.Value)
		},
	}
}

func (s *session) queryCommand() *Command {
	fs := newFlags("query")
	where := fs.StringArrayP("where", "w", nil, "field=value equality, repeatable")
	text := fs.String("sql", "", "raw query text, e.g. \"SELECT * FROM f WHERE f.lastName = 'Andersen'\"")
	pk := fs.StringP("partition-key", "p", "", "restrict results to one partition")
	maxItems := fs.Int32("max-items", -1, "page size, -1 lets the store decide")

	return &Command{
		Flags: fs,
		Usage: "query [--where f=v]... [--sql text]",
		Short: "Print matching documents in insertion order",
		Long: "Print the documents matching every --where equality, or the raw\n" +
			"--sql query, one JSON object per line. Values true, false and numbers\n" +
			"are typed; quote a value ('5') to compare it as a string.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if *text != "" && len(*where) > 0 {
				return errors.NewValidationError("query", "--sql and --where are mutually exclusive")
			}
			spec, err := querySpec(*where, *text)
			if err != nil {
				return err
			}
			c, err := s.client(ctx)
			if err != nil {
				return err
			}

			opts := []storagemodels.FeedOption{storagemodels.WithMaxItemCount(*maxItems)}
			if *pk != "" {
				opts = append(opts, storagemodels.WithFeedPartitionKey(*pk))
			}
			for doc, err := range c.Query(ctx, spec, opts...) {
				if err != nil {
					return err
				}
				if err := o.PrintJSON(doc); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (s *session) updateCommand() *Command {
	fs := newFlags("update")
	ifMatch := fs.String("if-match", "", "only replace when the stored _etag equals this value")

	return &Command{
		Flags: fs,
		Usage: "update <file> [--if-match etag]",
		Short: "Replace an existing document",
		Long: "Replace the stored document with the one read from file, or stdin\n" +
			"for \"-\". The document id and partition key come from the body.\n" +
			"A missing document is an error; update never creates one.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name, err := singleArg(args, "file")
			if err != nil {
				return err
			}
			docs, err := readInputs(o, []string{name})
			if err != nil {
				return err
			}
			if len(docs) != 1 {
				return errors.NewValidationError("file", fmt.Sprintf("expected one document, got %d", len(docs)))
			}
			c, err := s.client(ctx)
			if err != nil {
				return err
			}
			doc := docs[0].WithoutSystemProperties()
			status, err := c.Replace(ctx, doc.ID(), doc, requestOptions("", *ifMatch)...)
			if err != nil {
				return err
			}
			o.Printf("%s\t%s\n", doc.ID(), status)
			return nil
		},
	}
}

func (s *session) deleteCommand() *Command {
	fs := newFlags("delete")
	pk := fs.StringP("partition-key", "p", "", "partition key value of the document")
	ifMatch := fs.String("if-match", "", "only delete when the stored _etag equals this value")

	return &Command{
		Flags: fs,
		Usage: "delete <id> [--partition-key v]",
		Short: "Delete one document",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := singleArg(args, "id")
			if err != nil {
				return err
			}
			c, err := s.client(ctx)
			if err != nil {
				return err
			}
			status, err := c.Delete(ctx, id, requestOptions(*pk, *ifMatch)...)
			if err != nil {
				return err
			}
			o.Printf("%s\t%s\n", id, status)
			return nil
		},
	}
}

func (s *session) teardownCommand() *Command {
	return &Command{
		Flags: newFlags("teardown"),
		Usage: "teardown",
		Short: "Delete the database with all its data",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			t, err := s.open(ctx)
			if err != nil {
				return err
			}
			if err := docstore.NewProvisioner(t, s.logger).DeleteDatabase(ctx, s.cfg.Database); err != nil {
				return err
			}
			o.Printf("database %s: %s\n", s.cfg.Database, storagemodels.Deleted)
			return nil
		},
	}
}

func singleArg(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", errors.NewValidationError(name, fmt.Sprintf("expected exactly one <%s> argument, got %d", name, len(args)))
	}
	return args[0], nil
}

func requestOptions(pk, ifMatch string) []storagemodels.RequestOption {
	var opts []storagemodels.RequestOption
	if pk != "" {
		opts = append(opts, storagemodels.WithPartitionKey(pk))
	}
	if ifMatch != "" {
		opts = append(opts, storagemodels.IfMatch(ifMatch))
	}
	return opts
}

// querySpec builds a raw query from text, or a structured one from field=value
// pairs.
func querySpec(where []string, text string) (query.Spec, error) {
	if text != "" {
		return query.ParseText(text)
	}
	var pred query.Predicate
	for _, w := range where {
		field, raw, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return query.Spec{}, errors.NewValidationError("where", fmt.Sprintf("expected field=value, got %q", w))
		}
		pred = pred.And(field, parseLiteral(raw))
	}
	return query.Structured(pred), nil
}

func parseLiteral(raw string) any {
	if len(raw) >= 2 {
		if q := raw[0]; (q == '\'' || q == '"') && raw[len(raw)-1] == q {
			return raw[1 : len(raw)-1]
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// readInputs decodes the documents in the named files. No names or "-"
// reads stdin.
func readInputs(o *IO, names []string) ([]storagemodels.Document, error) {
	if len(names) == 0 {
		names = []string{"-"}
	}
	var docs []storagemodels.Document
	for _, name := range names {
		var data []byte
		var err error
		if name == "-" {
			if o.in == nil {
				return nil, errors.NewValidationError("stdin", "no input")
			}
			data, err = io.ReadAll(o.in)
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		parsed, err := decodeDocuments(data)
		if err != nil {
			return nil, errors.NewValidationError("document", fmt.Sprintf("%s: %v", name, err))
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// decodeDocuments accepts a stream of JSON objects and arrays of objects.
func decodeDocuments(data []byte) ([]storagemodels.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var docs []storagemodels.Document
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, err
		}
		items := []json.RawMessage{raw}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
			items = nil
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, err
			}
		}
		for _, item := range items {
			doc, err := storagemodels.DecodeDocument(item)
			if err != nil {
				return nil, err
			}
			if doc == nil {
				return nil, fmt.Errorf("null is not a document")
			}
			docs = append(docs, doc)
		}
	}
}
