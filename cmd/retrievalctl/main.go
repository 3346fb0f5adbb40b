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
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/hybrid-retriever/internal/bootstrap"
	"github.com/kirillkom/hybrid-retriever/internal/config"
	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-retriever/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "retrievalctl",
		Usage: "Index, query and evaluate the hybrid retriever",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Embed the corpus and load it into the vector store",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "mirror-postgres",
						Usage: "Also copy chunks into Postgres",
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Run the retrieval evaluation set",
				Action: evaluateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "eval-key",
						Usage: "Storage key of the evaluation set (defaults to EVAL_KEY)",
					},
					&cli.StringFlag{
						Name:  "xlsx",
						Usage: "Storage key for an XLSX report",
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Retrieve passages for a query",
				ArgsUsage: "QUERY",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "topk",
						Usage: "Candidates fetched per query expansion (0 uses RAG_TOP_K)",
					},
					&cli.IntFlag{
						Name:  "rerank-topk",
						Usage: "Maximum passages returned (0 uses RAG_RERANK_TOP_K)",
					},
					&cli.BoolFlag{
						Name:  "nats",
						Usage: "Send the request to a retrieval worker over NATS",
					},
				},
			},
		},
	}
}

func setup(c *cli.Context, opts bootstrap.Options) (*bootstrap.App, error) {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "retrievalctl", c.String("log-level"))
	slog.SetDefault(logger)
	return bootstrap.New(c.Context, cfg, logger, opts)
}

func indexCommand(c *cli.Context) error {
	app, err := setup(c, bootstrap.Options{MirrorToPostgres: c.Bool("mirror-postgres")})
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.IndexUC.Index(c.Context, app.Corpus.Chunks())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "indexed %d chunks in %d batches (%d failed, %d mirrored)\n",
		stats.Chunks, stats.Batches, stats.FailedBatches, stats.Mirrored)
	return nil
}

func evaluateCommand(c *cli.Context) error {
	app, err := setup(c, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()
	app.WarmReranker(c.Context)

	key := c.String("eval-key")
	if key == "" {
		key = app.Config.EvalKey
	}
	cases, err := app.LoadEvaluationCases(c.Context, key)
	if err != nil {
		return err
	}

	report := app.EvaluateUC.Evaluate(c.Context, cases)
	printEvaluation(c.App.Writer, report)

	if xlsxKey := c.String("xlsx"); xlsxKey != "" {
		if err := app.Reports.WriteEvaluation(c.Context, xlsxKey, report); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "report written to %s\n", xlsxKey)
	}
	return nil
}

func retrieveCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("query argument is required")
	}
	req := domain.RetrieveRequest{Query: query, TopK: c.Int("topk"), RerankTopK: c.Int("rerank-topk")}

	var result domain.RetrievalResult
	if c.Bool("nats") {
		cfg := config.Load()
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer queue.Close()
		if result, err = queue.Request(c.Context, req); err != nil {
			return err
		}
	} else {
		app, err := setup(c, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer app.Close()
		result = app.Retriever.Retrieve(c.Context, req.Query, req.TopK, req.RerankTopK)
	}

	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printEvaluation(w io.Writer, report domain.EvaluationReport) {
	for _, result := range report.Cases {
		status := "FAIL"
		if result.Passed {
			status = "PASS"
		}
		expected := "none"
		if result.ExpectedPage != nil {
			expected = fmt.Sprint(*result.ExpectedPage)
		}
		fmt.Fprintf(w, "[%s] %s\n  %s (expected=%s, retrieved=%v)\n",
			result.ID, result.Question, status, expected, result.RetrievedPages)
	}
	fmt.Fprintf(w, "retrieval accuracy: %d/%d\n", report.Passed, report.Total)
}
