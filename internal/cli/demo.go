/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/sample"
	"github.com/suparena/docstore/storagemodels"
)

func (s *session) demoCommand() *Command {
	fs := newFlags("demo")
	keep := fs.Bool("keep", false, "skip the final delete and teardown")

	return &Command{
		Flags: fs,
		Usage: "demo [--keep]",
		Short: "Run the family sample end to end",
		Long: "Provision the database and collection, store the Andersen and\n" +
			"Wakefield families, query them structured and raw, move the Andersen\n" +
			"child to grade 6, query again, delete the Andersen family and delete\n" +
			"the database. The first failure aborts the run without cleanup.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return s.runDemo(ctx, o, *keep)
		},
	}
}

func (s *session) runDemo(ctx context.Context, o *IO, keep bool) error {
	t, err := s.open(ctx)
	if err != nil {
		return err
	}
	cfg := s.cfg.ClientConfig()
	cfg.Logger = s.logger

	p := docstore.NewProvisioner(t, s.logger)
	status, err := p.EnsureDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	o.Printf("%s database %s\n", status, cfg.Database)

	status, err = p.EnsureCollection(ctx, cfg.Database, cfg.Collection, cfg.CollectionOptions)
	if err != nil {
		return err
	}
	o.Printf("%s collection %s\n", status, cfg.Collection)

	families, err := docstore.NewClient[sample.Family](ctx, t, cfg)
	if err != nil {
		return err
	}
	for _, f := range sample.Families() {
		status, err := families.CreateIfAbsent(ctx, f)
		if err != nil {
			return err
		}
		o.Printf("%s family %s\n", status, f.ID)
	}

	if err := demoQueries(ctx, o, families); err != nil {
		return err
	}

	andersen := sample.Andersen()
	andersen.Children[0].Grade = 6
	status, err = families.Replace(ctx, andersen.ID, andersen)
	if err != nil {
		return err
	}
	o.Printf("%s family %s\n", status, andersen.ID)

	if err := demoQueries(ctx, o, families); err != nil {
		return err
	}

	if keep {
		return nil
	}

	status, err = families.Delete(ctx, andersen.ID, storagemodels.WithPartitionKey(andersen.LastName))
	if err != nil {
		return err
	}
	o.Printf("%s family %s\n", status, andersen.ID)

	if err := p.DeleteDatabase(ctx, cfg.Database); err != nil {
		return err
	}
	o.Printf("%s database %s\n", storagemodels.Deleted, cfg.Database)
	return nil
}

// demoQueries looks up the Andersen family once with a structured query and
// once with the equivalent raw text. The two must return the same families
// in the same order.
func demoQueries(ctx context.Context, o *IO, families *docstore.Client[sample.Family]) error {
	structured := query.Structured(query.Equal("lastName", "Andersen"))
	raw := "SELECT * FROM Family WHERE Family.lastName = 'Andersen'"

	o.Printf("Running structured query: %s\n", structured)
	want, err := printFamilies(o, families.Query(ctx, structured))
	if err != nil {
		return err
	}
	o.Printf("Running raw query: %s\n", raw)
	got, err := printFamilies(o, families.QueryText(ctx, raw))
	if err != nil {
		return err
	}
	if !slices.Equal(want, got) {
		return fmt.Errorf("raw query returned %v, structured query returned %v", got, want)
	}
	return nil
}

// printFamilies prints every family in seq and returns their ids.
func printFamilies(o *IO, seq iter.Seq2[sample.Family, error]) ([]string, error) {
	var ids []string
	for f, err := range seq {
		if err != nil {
			return ids, err
		}
		o.Printf("\tRead %s\n", f)
		ids = append(ids, f.ID)
	}
	return ids, nil
}
