package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/djeday123/chatcorpus/corpus"
	"github.com/djeday123/chatcorpus/dataset"
	"github.com/djeday123/chatcorpus/logutil"
	"github.com/djeday123/chatcorpus/pkg/cache"
	"github.com/djeday123/chatcorpus/pkg/config"
	"github.com/djeday123/chatcorpus/tokenizer"
	"github.com/djeday123/chatcorpus/vocab"
)

// Stage names reported to the progress callback.
const (
	StageVocab  = "vocabulary"
	StageIngest = "ingest"
)

// ProgressFunc receives the number of items done out of total for a stage.
type ProgressFunc func(stage string, done, total int)

// Stats counts what happened to the corpus rows.
type Stats struct {
	Rows     int
	Vocab    vocab.BuildStats
	Ingested int // examples appended
	Dropped  int // pairs with an empty side
	Failed   int // pairs the tokenizer rejected
	Cached   bool
}

// Corpus is a prepared vocabulary and example store.
type Corpus struct {
	Vocab *vocab.Vocabulary
	Store *dataset.Store
	Stats Stats
}

// Pipeline orchestrates loading, vocabulary building and ingestion
type Pipeline struct {
	cfg      *config.Config
	tok      tokenizer.Tokenizer
	progress ProgressFunc
}

// New creates a new Pipeline instance
func New(cfg *config.Config, tok tokenizer.Tokenizer) *Pipeline {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Pipeline{cfg: cfg, tok: tok}
}

// SetProgress installs a progress callback.
func (p *Pipeline) SetProgress(fn ProgressFunc) { p.progress = fn }

func (p *Pipeline) report(stage string, done, total int) {
	if p.progress != nil {
		p.progress(stage, done, total)
	}
}

func (p *Pipeline) settings() cache.Settings {
	return cache.Settings{
		VocabSize: p.cfg.Vocab.Size,
		MaxLen:    p.cfg.Examples.MaxLen,
		LoadFirst: p.cfg.Examples.LoadFirst,

		BothDirections: p.cfg.Examples.BothDirections,
	}
}

// Load reads the configured corpus files.
func (p *Pipeline) Load(ctx context.Context) ([]corpus.Row, error) {
	if len(p.cfg.Paths.Corpus) == 0 {
		return nil, fmt.Errorf("%w: no corpus files", config.ErrInvalid)
	}
	rows, err := corpus.LoadFiles(ctx, p.cfg.Examples.LoadFirst, p.cfg.Paths.Corpus...)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	slog.Info("loaded corpus", "files", len(p.cfg.Paths.Corpus), "rows", len(rows))
	return rows, nil
}

// Prepare builds the vocabulary over every row and ingests each row as
// (reply -> line), and also (line -> reply) when both directions are enabled.
// Pairs the tokenizer rejects are skipped and counted.
func (p *Pipeline) Prepare(ctx context.Context, rows []corpus.Row) (*Corpus, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	total := 2 * len(rows)
	v, vstats := vocab.Build(corpus.Lines(rows), p.tok, p.cfg.Vocab.Size,
		vocab.WithProgress(1000, func(n int) { p.report(StageVocab, n, total) }))
	p.report(StageVocab, vstats.Lines, total)

	c := &Corpus{
		Vocab: v,
		Store: &dataset.Store{},
		Stats: Stats{Rows: len(rows), Vocab: vstats},
	}
	enc := dataset.NewEncoder(v, p.tok, p.cfg.Examples.MaxLen)

	passes := 1
	if p.cfg.Examples.BothDirections {
		passes = 2
	}
	for pass := range passes {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			input, target := row.Reply, row.Line
			if pass == 1 {
				input, target = row.Line, row.Reply
			}
			if err := c.ingest(enc, input, target); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			if done := pass*len(rows) + i + 1; done%1000 == 0 {
				p.report(StageIngest, done, passes*len(rows))
			}
		}
	}
	p.report(StageIngest, passes*len(rows), passes*len(rows))

	if c.Stats.Failed > 0 {
		slog.Warn("skipped samples the tokenizer rejected", logutil.Stage(StageIngest), "failed", c.Stats.Failed)
	}
	slog.Info("corpus prepared", "vocab", v.Len(), "examples", c.Store.Len(), "dropped", c.Stats.Dropped)
	return c, nil
}

func (c *Corpus) ingest(enc *dataset.Encoder, input, target string) error {
	added, err := c.Store.Ingest(enc, input, target)
	var terr *tokenizer.TokenizationError
	switch {
	case errors.As(err, &terr):
		c.Stats.Failed++
		logutil.Trace("skipping sample", logutil.Stage(StageIngest), "offset", terr.Offset, "error", terr.Err)
		return nil
	case err != nil:
		return err
	case added:
		c.Stats.Ingested++
	default:
		c.Stats.Dropped++
	}
	return nil
}

// Run returns the cached corpus when the cache matches the configuration,
// otherwise loads, prepares and caches it.
func (p *Pipeline) Run(ctx context.Context) (*Corpus, error) {
	if path := p.cfg.Paths.Cache; path != "" {
		settings, v, store, err := cache.Load(path)
		switch {
		case err == nil && settings == p.settings():
			slog.Info("using cached corpus", "path", path, "examples", store.Len())
			return &Corpus{Vocab: v, Store: store, Stats: Stats{Ingested: store.Len(), Cached: true}}, nil
		case err == nil:
			slog.Info("cache settings changed, rebuilding", "path", path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Warn("ignoring unreadable cache", "path", path, "error", err)
		}
	}

	rows, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	c, err := p.Prepare(ctx, rows)
	if err != nil {
		return nil, err
	}

	if path := p.cfg.Paths.Cache; path != "" {
		if err := cache.Save(path, p.settings(), c.Vocab, c.Store); err != nil {
			return nil, fmt.Errorf("save cache: %w", err)
		}
		slog.Debug("saved cache", "path", path)
	}
	return c, nil
}
