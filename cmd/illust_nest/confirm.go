package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	upload "illust_nest/internal/services/upload_service"

	"github.com/fatih/color"
)

// terminalConfirmer asks on the terminal whether to upload images the server
// already holds. assumeYes answers for the user.
type terminalConfirmer struct {
	c         *cli
	assumeYes bool
}

func (t terminalConfirmer) ConfirmDuplicates(ctx context.Context, report upload.DuplicateReport) (bool, error) {
	writeReport(t.c.out, report)

	if t.assumeYes {
		return true, nil
	}

	answer, err := t.c.prompt("Upload anyway? [y/N] ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func writeReport(w io.Writer, report upload.DuplicateReport) {
	yellow := color.New(color.FgYellow)

	yellow.Fprintf(w, "%d image(s) already exist in the gallery:\n", len(report.Hashes))
	for _, m := range report.Matches {
		fmt.Fprintf(w, "  %s…  work #%d, image #%d\n", shortHash(m.ImageHash), m.WorkID, m.ImageID)
	}

	ids := make([]string, 0, len(report.WorkIDs))
	for _, id := range report.WorkIDs {
		ids = append(ids, fmt.Sprintf("#%d", id))
	}
	fmt.Fprintf(w, "Works: %s\n", strings.Join(ids, ", "))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
