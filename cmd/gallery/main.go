package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"s3-gallery/internal/app"
	"s3-gallery/internal/config"
	"s3-gallery/internal/domain"
)

type appKey struct{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "gallery",
		Usage:     "List and upload images in the configured bucket",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bucket",
				Usage: "Bucket to use instead of storage.bucket",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Before: openGallery,
		After:  closeGallery,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Print key and signed URL of every image",
				Action: runList,
			},
			{
				Name:      "upload",
				Usage:     "Upload a local file and print its key",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "content-type",
						Usage: "Content type to store; detected from the file when empty",
					},
				},
				Action: runUpload,
			},
			{
				Name:  "history",
				Usage: "Print recent upload attempts from the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
				},
				Action: runHistory,
			},
		},
	}
}

func openGallery(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if bucket := c.String("bucket"); bucket != "" {
		cfg.Storage.Bucket = bucket
	}

	logger := app.NewLogger(c.String("log-level"))
	logger.SetOutput(c.App.ErrWriter)

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeGallery(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func galleryFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func runList(c *cli.Context) error {
	a := galleryFrom(c)
	if err := a.State.OnMount(c.Context); err != nil {
		return err
	}
	for _, img := range a.State.Images() {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", img.Key, img.URL)
	}
	return nil
}

func runUpload(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("upload expects exactly one file path")
	}
	a := galleryFrom(c)

	file, err := domain.OpenLocalFile(c.Args().First())
	if err != nil {
		return err
	}
	file.ContentType = c.String("content-type")
	a.State.OnFileChosen(file)

	type result struct {
		key domain.ObjectKey
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := a.State.OnUploadRequested(c.Context)
		done <- result{key: key, err: err}
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case res := <-done:
			printProgress(c.App.ErrWriter, a)
			fmt.Fprintln(c.App.ErrWriter)
			if res.err != nil {
				return res.err
			}
			fmt.Fprintln(c.App.Writer, res.key)
			return nil
		case <-ticker.C:
			printProgress(c.App.ErrWriter, a)
		}
	}
}

func printProgress(w io.Writer, a *app.App) {
	stream := a.State.Progress()
	if stream == nil {
		return
	}
	ev := stream.Latest()
	fmt.Fprintf(w, "\r%-9s %6.2f%% (%d/%d bytes)", ev.Kind, ev.Percent, ev.Done, ev.Total)
}

func runHistory(c *cli.Context) error {
	a := galleryFrom(c)
	if a.Journal == nil {
		return errors.New("upload journal is disabled (database.path is empty)")
	}
	uploads, err := a.Journal.List(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, u := range uploads {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", u.CreatedAt.Format(time.RFC3339), u.Status, u.Key, u.FileName)
		if u.ErrorMessage != "" {
			line += "\t" + u.ErrorMessage
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}
