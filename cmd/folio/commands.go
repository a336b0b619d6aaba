// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/middleware"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/store"
)

// kindArg is the positional catalog kind shared by several commands.
type kindArg struct {
	Kind string `positional-arg-name:"kind" required:"yes" description:"works, news, publications, documents or photos"`
}

type migrateCommand struct {
	SeedDemo bool `long:"seed-demo" description:"Insert the demo records after migrating"`
}

func (c *migrateCommand) Execute([]string) error {
	ctx := rootCtx
	a, err := newApp(ctx, appOptions{migrate: true})
	if err != nil {
		return err
	}
	defer a.close()

	v, err := store.MigrationStatus(a.db)
	if err != nil {
		return err
	}
	fmt.Printf("schema version: %d\n", v)

	if c.SeedDemo {
		return seedDemo(ctx, a)
	}
	return nil
}

func seedDemo(ctx context.Context, a *app) error {
	if err := store.SeedDemo(ctx, a.store); err != nil {
		return fmt.Errorf("seeding demo content: %w", err)
	}
	return a.backend.InvalidateAll(ctx)
}

type listCommand struct {
	Admin    bool   `long:"admin" description:"List as an administrator, drafts included"`
	Pages    int    `long:"pages" default:"1" description:"Number of pages to load"`
	Search   string `long:"q" description:"Case-insensitive search over title, year and category"`
	Category string `long:"category" description:"Only records of this category"`
	JSON     bool   `long:"json" description:"Print normalized records as JSON"`

	Args kindArg `positional-args:"yes"`
}

func (c *listCommand) Execute([]string) error {
	ctx := rootCtx
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	kind, ok := model.ParseKind(c.Args.Kind)
	if !ok {
		return fmt.Errorf("unknown catalog kind %q", c.Args.Kind)
	}
	role := model.RoleAnonymous
	if c.Admin {
		role = model.RoleAdmin
	}

	ps := catalog.NewPageStore(a.backend, a.normalizer, catalog.PageStoreOptions{
		Kind:     kind,
		Role:     role,
		PageSize: a.cfg.PageSize,
		Fallback: a.snapshots,
		Logger:   a.logger,
	})
	defer ps.Close()
	ps.SetFilter(c.Search, c.Category)

	var snap catalog.Snapshot
	for i := 0; i < max(c.Pages, 1); i++ {
		snap = ps.LoadNextPage(ctx)
		if snap.Err != "" || !snap.HasMore {
			break
		}
	}
	if snap.Err != "" {
		return errors.New(snap.Err)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Visible)
	}
	printRecords(os.Stdout, snap)
	return nil
}

func printRecords(out io.Writer, snap catalog.Snapshot) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSORT\tSTATUS\tCATEGORY\tDATE\tTITLE")
	for _, r := range snap.Visible {
		status := r.StatusLabel
		if status == "" {
			status = "published"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", r.ID, r.Sort, status, r.Category, r.DisplayDate, r.Title)
	}
	_ = tw.Flush()

	footer := fmt.Sprintf("%d of %d loaded", len(snap.Visible), len(snap.Records))
	if snap.HasMore {
		footer += ", more available"
	}
	if snap.Fallback {
		footer += " (offline fallback)"
	}
	fmt.Fprintln(out, footer)
}

type duplicatesCommand struct {
	Purge bool `long:"purge" description:"Delete every duplicate except the newest of each group"`

	Args kindArg `positional-args:"yes"`
}

func (c *duplicatesCommand) Execute([]string) error {
	ctx := rootCtx
	a, err := newApp(ctx, appOptions{withBucket: c.Purge})
	if err != nil {
		return err
	}
	defer a.close()

	coord, err := a.coordinator(c.Args.Kind)
	if err != nil {
		return err
	}

	if !c.Purge {
		groups, err := coord.Duplicates(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("no duplicates found")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("keep %s %q\n", g.Keep.ID, g.Keep.Title)
			for _, d := range g.Discard {
				fmt.Printf("  duplicate %s (created %s)\n", d.ID, d.CreatedAt.Format("2006-01-02 15:04"))
			}
		}
		return nil
	}

	res, err := coord.PurgeDuplicates(ctx)
	fmt.Printf("deleted %d duplicates\n", len(res.Deleted))
	for id, msg := range res.Failed {
		fmt.Printf("  failed %s: %s\n", id, msg)
	}
	if res.Cleanup != nil {
		fmt.Printf("  %d media objects could not be removed\n", len(res.Cleanup.Keys))
	}
	return err
}

type snapshotCommand struct{}

func (c *snapshotCommand) Execute([]string) error {
	ctx := rootCtx
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.snapshots.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d records to %s\n", n, a.snapshots.Path())
	return nil
}

type hashTokenCommand struct {
	Args struct {
		Token string `positional-arg-name:"token" description:"Token to hash; read from stdin when omitted"`
	} `positional-args:"yes"`
}

func (c *hashTokenCommand) Execute([]string) error {
	token := c.Args.Token
	if token == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return errors.New("token must not be empty")
	}

	hash, err := middleware.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Printf("FOLIO_ADMIN_TOKEN_HASH=%s\n", hash)
	return nil
}
