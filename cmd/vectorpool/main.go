// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/vectorpool"
	"github.com/poiesic/vectorpool/config"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/search"
)

func main() {
	app := &cli.App{
		Name:  "vectorpool",
		Usage: "Bulk embedding runs and similarity search over knowledge pools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to YAML configuration file",
				Required: true,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "seed",
				Usage:     "Load documents from a YAML file into the document store",
				ArgsUsage: "<file>",
				Action:    seedCommand,
			},
			{
				Name:      "run",
				Usage:     "Start a bulk embedding run for a pool and wait for it to settle",
				ArgsUsage: "<pool>",
				Action:    runCommand,
			},
			{
				Name:      "retry",
				Usage:     "Resubmit a failed batch",
				ArgsUsage: "<batch-id>",
				Action:    retryCommand,
			},
			{
				Name:      "status",
				Usage:     "Show the runs and batches of a pool",
				ArgsUsage: "<pool>",
				Action:    statusCommand,
			},
			{
				Name:      "search",
				Usage:     "Search a pool for chunks similar to a query",
				ArgsUsage: "<pool> <query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for results",
						Value: 0.60,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openPlugin(c *cli.Context) (*vectorpool.Plugin, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return vectorpool.New(cfg)
}

// seedDocument is the YAML shape of one seeded document.
type seedDocument struct {
	Collection string         `yaml:"collection"`
	Id         string         `yaml:"id"`
	Fields     map[string]any `yaml:"fields"`
}

func seedCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: seed <file>")
	}

	data, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	var seeds []seedDocument
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parsing %s: %w", c.Args().Get(0), err)
	}

	plugin, err := openPlugin(c)
	if err != nil {
		return err
	}
	defer plugin.Close()

	docs := make([]*core.Document, len(seeds))
	for i, seed := range seeds {
		docs[i] = &core.Document{
			Collection: seed.Collection,
			Id:         seed.Id,
			Fields:     seed.Fields,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := core.ValidateDocument(docs[i]); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}

	if err := plugin.DocumentRepository().PutDocuments(context.Background(), docs...); err != nil {
		return err
	}
	fmt.Printf("seeded %d documents\n", len(docs))
	return nil
}

func runCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: run <pool>")
	}
	pool := c.Args().Get(0)

	plugin, err := openPlugin(c)
	if err != nil {
		return err
	}
	defer plugin.Close()

	result, err := plugin.StartBulkRun(context.Background(), pool)
	if err != nil {
		return err
	}
	if result.Conflict {
		return fmt.Errorf("cannot start run: %s", result.Message)
	}

	plugin.Wait()

	run, err := plugin.RunRepository().GetRun(context.Background(), result.RunId)
	if err != nil {
		return err
	}
	fmt.Printf("run %d: %s (%d succeeded, %d failed of %d inputs in %d batches)\n",
		run.Id, run.Status, run.Succeeded, run.Failed, run.Inputs, run.TotalBatches)
	if run.Error != "" {
		fmt.Printf("error: %s\n", run.Error)
	}
	for _, fc := range run.FailedChunks {
		fmt.Printf("failed chunk: %s/%s[%d]\n", fc.Collection, fc.DocumentId, fc.ChunkIndex)
	}
	return nil
}

func retryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: retry <batch-id>")
	}
	var batchId uint64
	if _, err := fmt.Sscanf(c.Args().Get(0), "%d", &batchId); err != nil {
		return fmt.Errorf("invalid batch id %q", c.Args().Get(0))
	}

	plugin, err := openPlugin(c)
	if err != nil {
		return err
	}
	defer plugin.Close()

	result, err := plugin.RetryBatch(context.Background(), core.ID(batchId))
	if err != nil {
		return err
	}
	switch {
	case result.NotFound:
		return fmt.Errorf("%s", result.Message)
	case result.Conflict:
		return fmt.Errorf("cannot retry: %s", result.Message)
	}

	plugin.Wait()
	fmt.Printf("batch %d resubmitted as batch %d (run %d)\n",
		result.BatchId, result.NewBatchId, result.RunId)
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: status <pool>")
	}
	pool := c.Args().Get(0)

	plugin, err := openPlugin(c)
	if err != nil {
		return err
	}
	defer plugin.Close()

	ctx := context.Background()
	runs, err := plugin.RunRepository().ListRuns(ctx, pool)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("pool %q has no runs\n", pool)
		return nil
	}

	for _, run := range runs {
		fmt.Printf("run %d: %s (%d succeeded, %d failed of %d inputs)\n",
			run.Id, run.Status, run.Succeeded, run.Failed, run.Inputs)
		batches, err := plugin.BatchRepository().GetBatchesByRun(ctx, run.Id)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			line := fmt.Sprintf("  batch %d [%d]: %s %s (%d inputs)",
				batch.Id, batch.Index, batch.ProviderBatchId, batch.Status, batch.Inputs)
			if batch.Status == core.BatchStatusRetried {
				line += fmt.Sprintf(" -> retried as %d", batch.RetriedBy)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: search <pool> <query>")
	}
	pool := c.Args().Get(0)
	query := c.Args().Get(1)

	plugin, err := openPlugin(c)
	if err != nil {
		return err
	}
	defer plugin.Close()

	searcher, err := plugin.NewSearcher(
		search.WithMaxHits(c.Int("max-hits")),
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))),
	)
	if err != nil {
		return err
	}

	results, err := searcher.Search(context.Background(), pool, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%d. [%.3f] %s/%s[%d]\n", i+1, result.Score,
			result.Embedding.Collection, result.Embedding.DocumentId, result.Embedding.ChunkIndex)
		fmt.Printf("   %s\n", firstLine(result.Embedding.Chunk))
	}
	return nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 120 {
		text = text[:120] + "..."
	}
	return text
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
