package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"illust_nest/internal/domain/models"
	editor "illust_nest/internal/services/editor_service"
	listing "illust_nest/internal/services/listing_service"
	upload "illust_nest/internal/services/upload_service"
)

func (c *cli) works(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)

	switch sub {
	case "list":
		return c.worksList(ctx, rest)
	case "show":
		return c.worksShow(ctx, rest)
	case "upload":
		return c.worksUpload(ctx, rest)
	case "add-images":
		return c.worksAddImages(ctx, rest)
	case "edit":
		return c.worksEdit(ctx, rest)
	case "reorder":
		return c.worksReorder(ctx, rest)
	case "delete":
		return c.worksDelete(ctx, rest)
	case "publish":
		return c.worksPublish(ctx, rest)
	case "delete-image":
		return c.worksDeleteImage(ctx, rest)
	case "exif":
		return c.worksEXIF(ctx, rest)
	case "ai-meta":
		return c.worksAIMeta(ctx, rest)
	}

	return errUsage
}

func (c *cli) worksList(ctx context.Context, args []string) error {
	fs := newFlags("works list")
	keyword := fs.String("q", "", "keyword")
	tagIDs := fs.String("tags", "", "comma separated tag ids")
	ratingMin := fs.Int("min", 0, "minimum rating")
	ratingMax := fs.Int("max", 5, "maximum rating")
	visibility := fs.String("visibility", string(listing.VisibilityAll), "all, public or private")
	sortBy := fs.String("sort", listing.SortCreatedAt, "created_at, updated_at, rating or title")
	order := fs.String("order", listing.OrderDesc, "asc or desc")
	pages := fs.Int("pages", 1, "pages to load")
	all := fs.Bool("all", false, "load every page")
	public := fs.Bool("public", false, "list the public gallery")
	collection := fs.String("collection", "", "list the works of a collection")
	if err := parse(fs, args); err != nil {
		return err
	}

	tags, err := parseIDs([]string{*tagIDs})
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []uint{}
	}

	var list *listing.WorkList
	switch {
	case *collection != "":
		id, err := parseID(*collection)
		if err != nil {
			return err
		}
		list = c.app.CollectionWorks(id)
	case *public:
		list = c.app.PublicWorks()
	default:
		list = c.app.Works()
	}

	list.SetFilter(listing.Filter{
		Keyword:    strings.TrimSpace(*keyword),
		TagIDs:     tags,
		RatingMin:  *ratingMin,
		RatingMax:  *ratingMax,
		Visibility: listing.Visibility(*visibility),
		SortBy:     *sortBy,
		SortOrder:  *order,
	})
	if err := list.Apply(ctx); err != nil {
		return err
	}

	for loaded := 1; list.HasMore() && (*all || loaded < *pages); loaded++ {
		if _, err := list.LoadMore(ctx); err != nil {
			return err
		}
	}

	for _, w := range list.Items() {
		printWork(c, w)
	}

	summary := fmt.Sprintf("%d of %d works", len(list.Items()), list.Total())
	if list.HasMore() {
		summary += ", more with -pages or -all"
	}
	fmt.Fprintln(c.out, summary)
	return nil
}

func printWork(c *cli, w models.Work) {
	visibility := "private"
	if w.IsPublic {
		visibility = "public"
	}

	tags := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		tags = append(tags, t.Name)
	}

	fmt.Fprintf(c.out, "#%-5d %s  %-7s  %-40s  %s\n", w.ID, stars(w.Rating), visibility, w.Title, strings.Join(tags, ", "))
}

func (c *cli) worksShow(ctx context.Context, args []string) error {
	fs := newFlags("works show")
	public := fs.Bool("public", false, "read from the public gallery")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	var work *models.Work
	if *public {
		work, err = c.app.Client.GetPublicWork(ctx, id)
	} else {
		work, err = c.app.Client.GetWork(ctx, id)
	}
	if err != nil {
		return err
	}

	printWork(c, *work)
	if work.Description != "" {
		fmt.Fprintln(c.out, work.Description)
	}
	for i, img := range work.Images {
		fmt.Fprintf(c.out, "  %2d. image #%d  %dx%d  %s\n", i+1, img.ID, img.Width, img.Height, img.PathFor(models.VariantOriginal))
	}
	return nil
}

type workFlags struct {
	fs          *flag.FlagSet
	title       *string
	description *string
	rating      *int
	public      *bool
	tags        *string
	yes         *bool
}

func newWorkFlags(name string) workFlags {
	fs := newFlags(name)
	return workFlags{
		fs:          fs,
		title:       fs.String("title", "", "title"),
		description: fs.String("desc", "", "description"),
		rating:      fs.Int("rating", 0, "rating 0-5"),
		public:      fs.Bool("public", false, "make the work public"),
		tags:        fs.String("tags", "", "comma separated tag ids"),
		yes:         fs.Bool("yes", false, "upload duplicates without asking"),
	}
}

func (c *cli) worksUpload(ctx context.Context, args []string) error {
	wf := newWorkFlags("works upload")
	if err := parse(wf.fs, args); err != nil {
		return err
	}
	if wf.fs.NArg() == 0 {
		return errUsage
	}

	tags, err := parseIDs([]string{*wf.tags})
	if err != nil {
		return err
	}

	u := c.app.NewUpload(terminalConfirmer{c: c, assumeYes: *wf.yes})
	defer u.Discard()

	u.SetForm(upload.WorkForm{
		Title:       *wf.title,
		Description: *wf.description,
		Rating:      *wf.rating,
		IsPublic:    *wf.public,
		TagIDs:      tags,
	})

	return c.saveUpload(ctx, u, wf.fs.Args())
}

func (c *cli) worksAddImages(ctx context.Context, args []string) error {
	fs := newFlags("works add-images")
	yes := fs.Bool("yes", false, "upload duplicates without asking")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errUsage
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	work, err := c.app.Client.GetWork(ctx, id)
	if err != nil {
		return err
	}

	u := c.app.NewUpload(terminalConfirmer{c: c, assumeYes: *yes})
	defer u.Discard()

	if err := u.EditWork(*work); err != nil {
		return err
	}

	return c.saveUpload(ctx, u, fs.Args()[1:])
}

func (c *cli) saveUpload(ctx context.Context, u *upload.UploadService, paths []string) error {
	files := make([]upload.FileSource, 0, len(paths))
	for _, p := range paths {
		files = append(files, upload.PathSource(p))
	}

	if err := u.AddFiles(ctx, files...); err != nil {
		return err
	}

	for _, item := range u.Items() {
		note := ""
		if item.RequiresTranscode {
			note = "  (transcoded by the server)"
		}
		fmt.Fprintf(c.out, "  %s  %s  %dx%d  %s%s\n", shortHash(item.Hash), item.Name, item.Width, item.Height, item.MimeType, note)
	}

	work, err := u.Save(ctx)
	if errors.Is(err, upload.ErrCancelled) {
		c.warn("upload cancelled, nothing was sent")
		return nil
	}
	if err != nil {
		return err
	}

	c.ok("saved work #%d %q with %d image(s)", work.ID, work.Title, len(work.Images))
	return nil
}

func (c *cli) worksEdit(ctx context.Context, args []string) error {
	wf := newWorkFlags("works edit")
	collections := wf.fs.String("collections", "", "comma separated collection ids, replaces membership")
	if err := parse(wf.fs, args); err != nil {
		return err
	}
	if wf.fs.NArg() != 1 {
		return errUsage
	}
	id, err := parseID(wf.fs.Arg(0))
	if err != nil {
		return err
	}

	set := map[string]bool{}
	wf.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	tags, err := parseIDs([]string{*wf.tags})
	if err != nil {
		return err
	}
	cols, err := parseIDs([]string{*collections})
	if err != nil {
		return err
	}

	form, err := c.app.Editor.EditWork(ctx, id)
	if err != nil {
		return err
	}

	form.Edit(func(d *editor.WorkDraft) {
		if set["title"] {
			d.Title = strings.TrimSpace(*wf.title)
		}
		if set["desc"] {
			d.Description = *wf.description
		}
		if set["rating"] {
			d.Rating = *wf.rating
		}
		if set["public"] {
			d.IsPublic = *wf.public
		}
		if set["tags"] {
			d.TagIDs = append([]uint{}, tags...)
		}
		if set["collections"] {
			d.CollectionIDs = append([]uint{}, cols...)
		}
	})

	if !form.Dirty() {
		c.warn("nothing to change")
		return nil
	}

	stored, err := form.Save(ctx)
	if err != nil {
		return err
	}

	c.ok("saved work #%d %q", stored.ID, stored.Title)
	return nil
}

func (c *cli) worksReorder(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	order, err := parseIDs(args[1:])
	if err != nil {
		return err
	}

	work, err := c.app.Client.GetWork(ctx, id)
	if err != nil {
		return err
	}

	if err := c.app.Editor.ReorderImages(ctx, *work, order); err != nil {
		return err
	}

	c.ok("image order saved")
	return nil
}

func (c *cli) worksDelete(ctx context.Context, args []string) error {
	fs := newFlags("works delete")
	yes := fs.Bool("yes", false, "do not ask")
	if err := parse(fs, args); err != nil {
		return err
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errUsage
	}

	if !*yes {
		answer, err := c.prompt(fmt.Sprintf("Delete %d work(s) and their images? [y/N] ", len(ids)))
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			c.warn("nothing deleted")
			return nil
		}
	}

	if len(ids) == 1 {
		if err := c.app.Editor.DeleteWork(ctx, ids[0]); err != nil {
			return err
		}
		c.ok("work #%d deleted", ids[0])
		return nil
	}

	deleted, err := c.app.Editor.BatchDelete(ctx, ids)
	if err != nil {
		return err
	}

	c.ok("%d work(s) deleted", deleted)
	return nil
}

func (c *cli) worksPublish(ctx context.Context, args []string) error {
	fs := newFlags("works publish")
	private := fs.Bool("private", false, "make the works private instead")
	if err := parse(fs, args); err != nil {
		return err
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}

	if err := c.app.Editor.BatchSetPublic(ctx, ids, !*private); err != nil {
		return err
	}

	state := "public"
	if *private {
		state = "private"
	}
	c.ok("%d work(s) now %s", len(ids), state)
	return nil
}

func (c *cli) worksDeleteImage(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	if err := c.app.Editor.DeleteImage(ctx, ids[0], ids[1]); err != nil {
		return err
	}

	c.ok("image #%d removed from work #%d", ids[1], ids[0])
	return nil
}

func (c *cli) worksEXIF(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	info, err := c.app.Editor.ImageEXIF(ctx, ids[0], ids[1])
	if err != nil {
		return err
	}

	return json.NewEncoder(c.out).Encode(info)
}

// worksAIMeta replaces the generation metadata of an image with the JSON in
// a file. An empty file clears it.
func (c *cli) worksAIMeta(ctx context.Context, args []string) error {
	fs := newFlags("works ai-meta")
	file := fs.String("f", "", "JSON file with the metadata")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 || *file == "" {
		return errUsage
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	var meta *models.AIMetadata
	if len(strings.TrimSpace(string(data))) > 0 {
		meta = &models.AIMetadata{}
		if err := json.Unmarshal(data, meta); err != nil {
			return fmt.Errorf("read %s: %w", *file, err)
		}
	}

	if err := c.app.Editor.SetImageAIMetadata(ctx, ids[0], ids[1], meta); err != nil {
		return err
	}

	c.ok("metadata saved")
	return nil
}
