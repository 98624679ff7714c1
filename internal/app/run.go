package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/ctxlog"
	"github.com/vk/hpsweep/internal/fsutil"
	"github.com/vk/hpsweep/internal/resultsink"
	"github.com/vk/hpsweep/internal/runner"
	"github.com/vk/hpsweep/internal/sweep"
	"golang.org/x/sync/errgroup"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	var err error
	switch a.config.Command {
	case CommandGenerate:
		err = a.generate(ctx)
	case CommandRun:
		err = a.run(ctx)
	default:
		err = fmt.Errorf("unknown command %q", a.config.Command)
	}

	a.logger.Debug("App.Run method finished.")
	return err
}

func (a *App) generate(ctx context.Context) error {
	enc, err := config.LoadEncoding(a.config.EncodingPath)
	if err != nil {
		return fmt.Errorf("failed to load encoding table: %w", err)
	}

	grid := sweep.DefaultGrid(enc)
	if a.config.GridPath != "" {
		if grid, err = sweep.LoadGrid(ctx, a.config.GridPath, enc); err != nil {
			return err
		}
	}

	gen := &sweep.Generator{Root: a.config.Root, Grid: grid}
	for _, id := range a.config.Args {
		n, err := gen.Generate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to generate configurations for %s: %w", id, err)
		}
		a.logger.Info("Configurations generated.", "dataset", id, "files", n)
	}
	return nil
}

func (a *App) run(ctx context.Context) error {
	paths, err := a.configPaths()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		a.logger.Warn("No configuration files found, nothing to run.")
		return nil
	}

	sink, err := a.openSink(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.logger.Error("Failed to close result sink.", "error", cerr)
		}
	}()

	r := runner.New(a.registry, runner.Options{
		Root:    a.config.Root,
		OneHot:  a.config.OneHot,
		Verbose: a.config.Verbose,
		Output:  a.outW,
	})

	a.logger.Info("Starting runs.", "configs", len(paths), "workers", a.config.Workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.Run(gctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := sink.Record(gctx, resultsink.NewRecord(out, time.Now())); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("All runs finished.", "configs", len(paths))
	return nil
}

// configPaths expands directory arguments to the .json files below them.
// Each file is run once, in argument order.
func (a *App) configPaths() ([]string, error) {
	var paths []string
	seen := make(map[string]struct{})
	for _, arg := range a.config.Args {
		found, err := fsutil.FindFilesByExtension(arg, ".json")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, arg)
		}
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (a *App) openSink(ctx context.Context) (resultsink.Sink, error) {
	if a.sink != nil {
		return a.sink, nil
	}
	if a.config.MongoURI == "" {
		return resultsink.Nop{}, nil
	}
	return resultsink.Connect(ctx, a.config.MongoURI, a.config.MongoDatabase, a.config.MongoCollection)
}
