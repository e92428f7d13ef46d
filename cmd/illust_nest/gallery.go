package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/validate"
	media "illust_nest/internal/services/media_service"
	tagsvc "illust_nest/internal/services/tag_service"
	"illust_nest/internal/transport/http/dto"
)

func (c *cli) tags(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)

	switch sub {
	case "list":
		fs := newFlags("tags list")
		keyword := fs.String("q", "", "keyword")
		counts := fs.Bool("counts", false, "show how many works use each tag")
		if err := parse(fs, rest); err != nil {
			return err
		}

		tags, err := c.app.Tags.List(ctx, *keyword, *counts)
		if err != nil {
			return err
		}
		for _, t := range tags {
			line := fmt.Sprintf("#%-4d %s", t.ID, t.Name)
			if t.WorkCount != nil {
				line += fmt.Sprintf("  (%d)", *t.WorkCount)
			}
			if t.IsSystem {
				line += "  [system]"
			}
			fmt.Fprintln(c.out, line)
		}
		return nil

	case "add":
		if len(rest) != 1 {
			return errUsage
		}
		tag, err := c.app.Tags.Create(ctx, rest[0])
		if err != nil {
			return err
		}
		c.ok("created tag #%d %s", tag.ID, tag.Name)
		return nil

	case "batch":
		if len(rest) == 0 {
			return errUsage
		}
		res, err := c.app.Tags.BatchCreate(ctx, strings.Join(rest, ","))
		if err != nil {
			return err
		}
		c.ok("created %d tag(s)", len(res.Tags))
		if len(res.Skipped) > 0 {
			c.warn("skipped existing: %s", strings.Join(res.Skipped, ", "))
		}
		return nil

	case "rename":
		if len(rest) != 2 {
			return errUsage
		}
		tag, err := c.findTag(ctx, rest[0])
		if err != nil {
			return err
		}
		form, err := c.app.Tags.EditTag(tag)
		if err != nil {
			return err
		}
		form.Edit(func(d *tagsvc.TagDraft) { d.Name = rest[1] })
		if !form.Dirty() {
			c.warn("tag #%d already has that name", tag.ID)
			return nil
		}
		renamed, err := form.Save(ctx)
		if err != nil {
			return err
		}
		c.ok("tag #%d is now %s", renamed.ID, renamed.Name)
		return nil

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		tag, err := c.findTag(ctx, rest[0])
		if err != nil {
			return err
		}
		if err := c.app.Tags.Delete(ctx, tag); err != nil {
			return err
		}
		c.ok("tag %s deleted", tag.Name)
		return nil
	}

	return errUsage
}

func (c *cli) findTag(ctx context.Context, arg string) (models.Tag, error) {
	id, err := parseID(arg)
	if err != nil {
		return models.Tag{}, err
	}

	tags, err := c.app.Tags.List(ctx, "", false)
	if err != nil {
		return models.Tag{}, err
	}
	for _, t := range tags {
		if t.ID == id {
			return t, nil
		}
	}

	return models.Tag{}, validate.Fail("no tag with id %d", id)
}

func (c *cli) collections(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)

	switch sub {
	case "", "tree":
		tree, err := c.app.Gallery.Refresh(ctx)
		if err != nil {
			return err
		}
		tree.Walk(func(col models.Collection, depth int) {
			fmt.Fprintf(c.out, "%s#%d %s (%d)\n", strings.Repeat("  ", depth), col.ID, col.Name, col.WorkCount)
		})
		return nil

	case "create":
		fs := newFlags("collections create")
		desc := fs.String("desc", "", "description")
		parent := fs.String("parent", "", "parent collection id")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		parentID, err := optionalID(*parent)
		if err != nil {
			return err
		}

		col, err := c.app.Gallery.Create(ctx, dto.CreateCollectionRequest{Name: fs.Arg(0), Description: *desc, ParentID: parentID})
		if err != nil {
			return err
		}
		c.ok("created collection #%d %s", col.ID, col.Name)
		return nil

	case "move":
		fs := newFlags("collections move")
		parent := fs.String("parent", "", "new parent id, empty for the top level")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			return err
		}
		parentID, err := optionalID(*parent)
		if err != nil {
			return err
		}

		if _, err := c.app.Gallery.Move(ctx, id, parentID); err != nil {
			return err
		}
		c.ok("collection #%d moved", id)
		return nil

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		if err := c.app.Gallery.Delete(ctx, id); err != nil {
			return err
		}
		c.ok("collection #%d deleted, its works were kept", id)
		return nil

	case "add-works", "remove-works":
		if len(rest) < 2 {
			return errUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		works, err := parseIDs(rest[1:])
		if err != nil {
			return err
		}

		if sub == "add-works" {
			err = c.app.Gallery.AddWorks(ctx, id, works)
		} else {
			err = c.app.Gallery.RemoveWorks(ctx, id, works)
		}
		if err != nil {
			return err
		}
		c.ok("collection #%d updated", id)
		return nil
	}

	return errUsage
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := newFlags("export")
	work := fs.String("work", "", "export a single work")
	toS3 := fs.Bool("s3", false, "upload to the configured S3 bucket")
	if err := parse(fs, args); err != nil {
		return err
	}
	workID, err := optionalID(*work)
	if err != nil {
		return err
	}

	sink, err := c.app.ExportSink(ctx, *toS3)
	if err != nil {
		return err
	}

	var loc string
	if workID != nil {
		loc, err = c.app.Export.ExportWork(ctx, *workID, sink)
	} else {
		loc, err = c.app.Export.ExportAll(ctx, sink)
	}
	if err != nil {
		return err
	}

	c.ok("archive written to %s", loc)
	return nil
}

// fetch loads one image through the authenticated loader and writes it to a file.
func (c *cli) fetch(ctx context.Context, args []string) error {
	fs := newFlags("fetch")
	variant := fs.String("variant", string(models.VariantOriginal), "thumbnail, original or transcoded")
	public := fs.Bool("public", false, "use the public image endpoint")
	out := fs.String("o", "", "output file")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *out == "" {
		return errUsage
	}
	v, err := models.ParseVariant(*variant)
	if err != nil {
		return err
	}

	img := c.app.Media.Mount(media.Source{Path: fs.Arg(0), Variant: v, Public: *public})
	defer img.Unmount()

	if err := img.Wait(ctx); err != nil {
		return err
	}
	if img.State() != media.StateLoaded {
		if err := img.Err(); err != nil {
			return err
		}
		return errors.New("image did not load")
	}

	blob, err := c.app.Media.Registry().Get(img.Handle())
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, blob.Data, 0644); err != nil {
		return err
	}

	c.ok("wrote %d bytes (%s) to %s", len(blob.Data), blob.ContentType, *out)
	return nil
}

// serve runs the preview server and keeps the token fresh until interrupted.
func (c *cli) serve(ctx context.Context, _ []string) error {
	go c.app.Tokens.Run(ctx, c.app.RefreshInterval())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.app.Preview.Start()
	}()

	c.ok("preview server listening on %s", c.app.Preview.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return c.app.Preview.Stop()
}
