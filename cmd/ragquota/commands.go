package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/lifecycle"
	"github.com/poiesic/ragquota/reconcile"
	"github.com/poiesic/ragquota/server"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	handler, err := svc.Handler()
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	scheduler, err := svc.Scheduler(
		lifecycle.WithRunOnStart(c.Bool("sweep-on-start")),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, c.String("addr"), handler, slog.Default())
	})
	g.Go(func() error {
		err := scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func cleanupCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	result, err := svc.Manager().Sweep(c.Context)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return printJSON(c.App.Writer, result)
}

func reconcileCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	config := &reconcile.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	reconciler, err := svc.Reconciler(config, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	report, err := reconciler.Run(c.Context, c.Bool("apply"))
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return printJSON(c.App.Writer, report)
}

func usageCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	usage, err := svc.Usage(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}
	return printJSON(c.App.Writer, usage)
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}
	documentID := c.String("document-id")
	if documentID != "" && len(paths) > 1 {
		return errors.New("--document-id can only be used with a single file")
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	failed := 0
	for _, path := range paths {
		text, err := readInput(path, c.App.Reader)
		if err != nil {
			return err
		}

		meta := core.DocumentMetadata{
			DocumentID: documentID,
			Name:       filepath.Base(path),
			Type:       c.String("type"),
		}
		if path == "-" {
			meta.Name = "stdin"
		}

		result := svc.Ingest(c.Context, []string{text}, meta)
		if !result.Success {
			failed++
		}
		if err := printJSON(c.App.Writer, result); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", failed, len(paths))
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if err := core.ValidateQuery(text, c.Int("limit")); err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	if c.Bool("context") {
		assembled, err := svc.BuildContext(c.Context, text)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		_, err = fmt.Fprintln(c.App.Writer, assembled)
		return err
	}

	matches, err := svc.Searcher().Query(c.Context, text, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printJSON(c.App.Writer, matches)
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one document ID is required")
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	result := svc.Manager().DeleteDocument(c.Context, c.Args().First())
	if err := printJSON(c.App.Writer, result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("delete failed: %s", result.Error)
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
