package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"illust_nest/internal/lib/validate"
	"illust_nest/internal/transport/http/dto"
)

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *password == "" {
		p, err := c.prompt("Password: ")
		if err != nil {
			return err
		}
		*password = p
	}

	user, err := c.app.Auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}

	c.ok("logged in as %s", user.Username)
	return nil
}

func (c *cli) logout(ctx context.Context, _ []string) error {
	if err := c.app.Auth.Logout(ctx); err != nil {
		return err
	}

	c.ok("logged out")
	return nil
}

func (c *cli) whoami(ctx context.Context, _ []string) error {
	user, err := c.app.Auth.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s (id %d)\n", user.Username, user.ID)
	if exp := c.app.Session.ExpiresAt(); !exp.IsZero() {
		fmt.Fprintf(c.out, "token expires %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (c *cli) password(ctx context.Context, args []string) error {
	fs := newFlags("password")
	next := fs.String("new", "", "new password")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *next == "" {
		p, err := c.prompt("New password: ")
		if err != nil {
			return err
		}
		*next = p
	}

	if err := c.app.Auth.ChangePassword(ctx, *next); err != nil {
		return err
	}

	c.ok("password changed")
	return nil
}

func (c *cli) status(ctx context.Context, _ []string) error {
	st, err := c.app.System.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "site:           %s\n", st.SiteTitle)
	fmt.Fprintf(c.out, "initialized:    %t\n", st.Initialized)
	fmt.Fprintf(c.out, "public gallery: %t\n", st.PublicGalleryEnabled)
	return nil
}

func (c *cli) initSystem(ctx context.Context, args []string) error {
	fs := newFlags("init")
	username := fs.String("u", "", "admin username")
	password := fs.String("p", "", "admin password")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *password == "" {
		p, err := c.prompt("Admin password: ")
		if err != nil {
			return err
		}
		*password = p
	}

	if err := c.app.System.Init(ctx, *username, *password); err != nil {
		return err
	}

	c.ok("gallery initialized, log in with `illust_nest login -u %s`", strings.TrimSpace(*username))
	return nil
}

func (c *cli) settings(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)

	switch sub {
	case "", "show":
		st, err := c.app.System.Settings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "site title:          %s\n", st.SiteTitle)
		fmt.Fprintf(c.out, "public gallery:      %t\n", st.PublicGalleryEnabled)
		fmt.Fprintf(c.out, "imagemagick:         %t\n", st.ImageMagickEnabled)
		fmt.Fprintf(c.out, "imagemagick version: %s\n", st.ImageMagickVersion)
		return nil

	case "set":
		fs := newFlags("settings set")
		title := fs.String("title", "", "site title")
		public := fs.String("public", "", "enable the public gallery (true|false)")
		magick := fs.String("imagemagick", "", "enable ImageMagick transcoding (true|false)")
		version := fs.String("imagemagick-version", "", "v6 or v7")
		if err := parse(fs, rest); err != nil {
			return err
		}

		var patch dto.SettingsPatch
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if set["title"] {
			patch.SiteTitle = title
		}
		if set["imagemagick-version"] {
			patch.ImageMagickVersion = version
		}
		var err error
		if patch.PublicGalleryEnabled, err = optionalBool(*public); err != nil {
			return err
		}
		if patch.ImageMagickEnabled, err = optionalBool(*magick); err != nil {
			return err
		}

		if err := c.app.System.UpdateSettings(ctx, patch); err != nil {
			return err
		}
		c.ok("settings saved")
		return nil

	case "test":
		fs := newFlags("settings test")
		version := fs.String("version", "", "v6 or v7, empty for the configured one")
		if err := parse(fs, rest); err != nil {
			return err
		}

		res, err := c.app.System.TestImageMagick(ctx, *version)
		if err != nil {
			return err
		}
		if res.Available {
			c.ok("%s available: %s", res.Command, res.Message)
		} else {
			c.warn("%s unavailable: %s", res.Command, res.Message)
		}
		return nil
	}

	return errUsage
}

func (c *cli) stats(ctx context.Context, _ []string) error {
	st, err := c.app.System.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "works:       %d\n", st.WorkCount)
	fmt.Fprintf(c.out, "images:      %d\n", st.ImageCount)
	fmt.Fprintf(c.out, "tags:        %d\n", st.TagCount)
	fmt.Fprintf(c.out, "collections: %d\n", st.CollectionCount)

	if len(st.DuplicateImageGroups) == 0 {
		return nil
	}

	c.warn("%d duplicate image group(s):", len(st.DuplicateImageGroups))
	for _, g := range st.DuplicateImageGroups {
		works := make([]string, 0, len(g.Works))
		for _, w := range g.Works {
			works = append(works, fmt.Sprintf("#%d×%d", w.WorkID, w.DuplicateCount))
		}
		fmt.Fprintf(c.out, "  %s…  %d images in %s\n", shortHash(g.ImageHash), g.TotalImages, strings.Join(works, ", "))
	}
	return nil
}

func optionalBool(s string) (*bool, error) {
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "true", "yes", "on", "1":
		v := true
		return &v, nil
	case "false", "no", "off", "0":
		v := false
		return &v, nil
	}
	return nil, validate.Fail("expected true or false, got %q", s)
}
