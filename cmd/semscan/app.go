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

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	semsearch "github.com/Supernova-PulsarAIGeorgia/semantic-search"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/text"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	logpkg "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
	openaiEmb "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/transport/openai"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/version"
)

const defaultModel = "paraphrase-multilingual-MiniLM-L12-v2"

type app struct {
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	a := &app{in: in, out: out, logger: zap.NewNop()}

	embeddingFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "semantic",
			Usage: "Compare sentence embeddings instead of edit distance",
		},
		&cli.StringFlag{
			Name:    "embedding-url",
			Usage:   "OpenAI-compatible embeddings endpoint",
			EnvVars: []string{"EMBEDDING_BASE_URL"},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-key",
			Usage:   "API key for the embeddings endpoint",
			EnvVars: []string{"EMBEDDING_API_KEY", "OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"EMBEDDING_MODEL"},
			Value:   defaultModel,
		},
	}

	return &cli.App{
		Name:    "semscan",
		Usage:   "Fuzzy text matching and ranking",
		Version: version.String(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: a.setupLogger,
		After: func(*cli.Context) error {
			_ = a.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Find fuzzy occurrences of a query in a document",
				ArgsUsage: "[document]",
				Action:    a.scan,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Text to look for",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the document from a file (- for stdin) instead of the argument",
					},
					&cli.Float64Flag{
						Name:    "threshold",
						Aliases: []string{"t"},
						Usage:   "Report windows scoring strictly above this similarity",
						Value:   0.5,
					},
				},
			},
			{
				Name:      "similarity",
				Usage:     "Score two texts",
				ArgsUsage: "<a> <b>",
				Action:    a.similarity,
				Flags:     embeddingFlags,
			},
			{
				Name:   "rank",
				Usage:  "Rank the lines of a file by how well they match a query",
				Action: a.rank,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Text to look for",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "File with one text per line (- for stdin)",
						Value:   "-",
					},
					&cli.IntFlag{
						Name:    "topk",
						Aliases: []string{"k"},
						Usage:   "Number of results, -1 for all",
						Value:   semsearch.Unbounded,
					},
					&cli.Float64Flag{
						Name:    "threshold",
						Aliases: []string{"t"},
						Usage:   "Drop texts scoring at or below this similarity",
						Value:   0.5,
					},
				}, embeddingFlags...),
			},
		},
	}
}

func (a *app) setupLogger(c *cli.Context) error {
	l, err := logpkg.NewLogger("cli", c.String("log-level"))
	if err != nil {
		return err
	}
	a.logger = l
	return nil
}

func (a *app) scan(c *cli.Context) error {
	doc := c.Args().First()
	if path := c.String("file"); path != "" {
		data, err := a.readAll(path)
		if err != nil {
			return err
		}
		doc = strings.TrimRight(string(data), "\n")
	}
	if doc == "" {
		return errors.New("a document argument or --file is required")
	}

	spans := semsearch.FindInDoc(doc, c.String("query"), c.Float64("threshold"))
	a.logger.Debug("Scan finished", zap.Int("doc_bytes", len(doc)), zap.Int("matches", len(spans)))
	return a.writeJSON(spans)
}

func (a *app) similarity(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected 2 arguments, got %d", c.NArg())
	}
	first, second := c.Args().Get(0), c.Args().Get(1)

	if !c.Bool("semantic") {
		_, err := fmt.Fprintf(a.out, "%.6f\n", semsearch.Similarity(first, second))
		return err
	}

	cmp := text.New(a.embedder(c))
	sim, err := cmp.Similarity(c.Context, domain.TextItem(first), domain.TextItem(second))
	if err != nil {
		return fmt.Errorf("semantic similarity: %w", err)
	}
	_, err = fmt.Fprintf(a.out, "%.6f\n", sim)
	return err
}

func (a *app) rank(c *cli.Context) error {
	data, err := a.readAll(c.String("file"))
	if err != nil {
		return err
	}
	lines := nonEmptyLines(string(data))

	opts := []semsearch.Option{semsearch.WithLogger(a.logger)}
	search := []semsearch.SearchOption{
		semsearch.TopK(c.Int("topk")),
		semsearch.Threshold(c.Float64("threshold")),
	}
	if c.Bool("semantic") {
		opts = append(opts, semsearch.WithEmbedder(publicEmbedder{inner: a.embedder(c)}))
		search = append(search, semsearch.Semantic())
	}

	engine := semsearch.New(opts...)
	if _, err := engine.AddTexts(c.Context, lines...); err != nil {
		return err
	}
	results, err := engine.SearchText(c.Context, c.String("query"), search...)
	if err != nil {
		return err
	}
	a.logger.Debug("Rank finished", zap.Int("texts", len(lines)), zap.Int("results", len(results)))
	return a.writeJSON(results)
}

func (a *app) embedder(c *cli.Context) domain.Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:   c.String("embedding-key"),
		BaseURL:  c.String("embedding-url"),
		Model:    c.String("embedding-model"),
		Provider: "openai",
		Logger:   a.logger,
	})
}

func (a *app) readAll(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonEmptyLines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// publicEmbedder exposes an internal embedder through the library interface.
type publicEmbedder struct {
	inner domain.Embedder
}

func (p publicEmbedder) Embed(ctx context.Context, s string) (semsearch.EmbeddingResult, error) {
	r, err := p.inner.Embed(ctx, s)
	if err != nil {
		return semsearch.EmbeddingResult{}, err
	}
	return semsearch.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
