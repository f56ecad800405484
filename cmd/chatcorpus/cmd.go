package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/djeday123/chatcorpus/dataset"
	"github.com/djeday123/chatcorpus/logutil"
	"github.com/djeday123/chatcorpus/pkg/config"
	"github.com/djeday123/chatcorpus/pkg/pipeline"
	"github.com/djeday123/chatcorpus/progress"
	"github.com/djeday123/chatcorpus/train"
	"github.com/djeday123/chatcorpus/vocab"
)

// loadConfig layers flags that were set explicitly over the file and
// environment configuration, then installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("corpus") {
		cfg.Paths.Corpus, _ = flags.GetStringSlice("corpus")
	}
	if flags.Changed("cache") {
		cfg.Paths.Cache, _ = flags.GetString("cache")
	}
	if flags.Changed("vocab-size") {
		cfg.Vocab.Size, _ = flags.GetInt("vocab-size")
	}
	if flags.Changed("max-len") {
		cfg.Examples.MaxLen, _ = flags.GetInt("max-len")
	}
	if flags.Changed("load-first") {
		cfg.Examples.LoadFirst, _ = flags.GetInt("load-first")
	}
	if flags.Changed("one-direction") {
		one, _ := flags.GetBool("one-direction")
		cfg.Examples.BothDirections = !one
	}
	if flags.Changed("batch-size") {
		cfg.Batch.Size, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("seed") {
		cfg.Batch.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("no-shuffle") {
		noShuffle, _ := flags.GetBool("no-shuffle")
		cfg.Batch.Shuffle = !noShuffle
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Logging.Debug = true
	}

	trace, _ := flags.GetBool("trace")
	slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), logutil.Level(cfg.Logging.Debug, trace)))

	return cfg, cfg.Validate()
}

// progressBars draws one bar per pipeline stage.
func progressBars(w io.Writer) pipeline.ProgressFunc {
	bars := map[string]*progress.Bar{}
	return func(stage string, done, total int) {
		bar, ok := bars[stage]
		if !ok {
			bar = progress.NewBar(w, stage, int64(total))
			bars[stage] = bar
		}
		bar.Set(int64(done))
	}
}

func prepare(cmd *cobra.Command, cfg *config.Config) (*pipeline.Corpus, error) {
	p := pipeline.New(cfg, nil)
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		p.SetProgress(progressBars(cmd.ErrOrStderr()))
	}
	return p.Run(cmd.Context())
}

func BuildHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if force, _ := cmd.Flags().GetBool("force"); force && cfg.Paths.Cache != "" {
		if err := os.Remove(cfg.Paths.Cache); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	c, err := prepare(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.Stats.Cached {
		fmt.Fprintln(out, "cache is up to date")
	} else {
		fmt.Fprintf(out, "rows:        %d\n", c.Stats.Rows)
		fmt.Fprintf(out, "distinct:    %d\n", c.Stats.Vocab.Distinct)
		fmt.Fprintf(out, "dropped:     %d\n", c.Stats.Dropped)
		fmt.Fprintf(out, "failed:      %d\n", c.Stats.Failed+c.Stats.Vocab.Skipped)
	}
	fmt.Fprintf(out, "vocabulary:  %d\n", c.Vocab.Len())
	fmt.Fprintf(out, "examples:    %d\n", c.Store.Len())
	return nil
}

func VocabHandler(cmd *cobra.Command, args []string) error {
	top, _ := cmd.Flags().GetInt("top")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := prepare(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range c.Vocab.Top(top) {
		fmt.Fprintf(out, "%d\t%s\n", c.Vocab.Lookup(w), w)
	}
	return nil
}

func BatchesHandler(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	epochs, _ := cmd.Flags().GetInt("epochs")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := prepare(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var pads padding
	step := func(ctx context.Context, b *dataset.Batch) (float64, error) {
		pads.add(b)
		if limit > 0 && b.Offset/cfg.Batch.Size >= limit {
			return 0, nil
		}

		fmt.Fprintf(out, "batch at %d: %d examples\n", b.Offset, b.Size)
		for _, role := range roles {
			t := b.Tensor(role)
			col, err := t.Column(0)
			if err != nil {
				return 0, err
			}
			fmt.Fprintf(out, "  %-14s %v  %s\n", role, t.Shape(), c.Vocab.Decode(dataset.Unpad(col, role.Padding())))
		}
		return 0, nil
	}

	tr := train.NewTrainer(c.Store, step, train.TrainConfig{
		BatchSize: cfg.Batch.Size,
		Epochs:    epochs,
		Shuffle:   cfg.Batch.Shuffle,
		Seed:      cfg.Batch.Seed,
	})
	history, err := tr.Train(cmd.Context())
	if err != nil {
		return err
	}
	for _, h := range history {
		fmt.Fprintf(out, "epoch %d: %d batches, %d examples\n", h.Epoch, h.Steps, h.Examples)
	}
	fmt.Fprintf(out, "padding: %.1f%% of %d ids\n", 100*pads.share(), pads.total)
	return nil
}

var roles = []dataset.Role{dataset.EncoderInput, dataset.DecoderInput, dataset.DecoderTarget}

// padding tallies pad ids across every tensor of the batches it sees.
type padding struct {
	pads, total int
}

func (p *padding) add(b *dataset.Batch) {
	for _, role := range roles {
		for _, id := range b.Tensor(role).ToInt64Slice() {
			if id == vocab.PadID {
				p.pads++
			}
			p.total++
		}
	}
}

func (p *padding) share() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.pads) / float64(p.total)
}

func EnvHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	vars := cfg.AsMap()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := cmd.OutOrStdout()
	for _, k := range keys {
		v := vars[k]
		fmt.Fprintf(out, "%s=%v\n    %s\n", v.Name, formatEnvValue(v.Value), v.Description)
	}
	return nil
}

func formatEnvValue(v any) string {
	if s, ok := v.([]string); ok {
		return strings.Join(s, ",")
	}
	return fmt.Sprint(v)
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatcorpus",
		Short: "Prepare dialogue corpora for sequence-to-sequence training",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs")
	rootCmd.PersistentFlags().Bool("trace", false, "Show per-sample trace logs")

	cobra.EnableCommandSorting = false

	corpusFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringSlice("corpus", nil, "Corpus CSV files of (line, reply) rows")
		cmd.Flags().String("cache", "", "Location of the vocabulary and examples cache")
		cmd.Flags().Int("vocab-size", 0, "Maximum vocabulary size including reserved tokens (<= 0 for unlimited)")
		cmd.Flags().Int("max-len", 0, "Maximum words kept per sentence")
		cmd.Flags().Int("load-first", 0, "Only load the first N corpus rows")
		cmd.Flags().Bool("one-direction", false, "Only ingest rows as reply -> line")
		cmd.Flags().BoolP("quiet", "q", false, "Hide progress bars")
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vocabulary and examples cache",
		Args:  cobra.NoArgs,
		RunE:  BuildHandler,
	}
	corpusFlags(buildCmd)
	buildCmd.Flags().Bool("force", false, "Rebuild even when the cache is up to date")

	vocabCmd := &cobra.Command{
		Use:   "vocab",
		Short: "List the most frequent vocabulary words",
		Args:  cobra.NoArgs,
		RunE:  VocabHandler,
	}
	corpusFlags(vocabCmd)
	vocabCmd.Flags().IntP("top", "n", 20, "Number of words to list (-1 for all)")

	batchesCmd := &cobra.Command{
		Use:   "batches",
		Short: "Draw batches and show their shapes and first example",
		Args:  cobra.NoArgs,
		RunE:  BatchesHandler,
	}
	corpusFlags(batchesCmd)
	batchesCmd.Flags().Int("batch-size", 0, "Examples per batch")
	batchesCmd.Flags().Uint64("seed", 0, "Shuffle seed (0 for time-seeded)")
	batchesCmd.Flags().Bool("no-shuffle", false, "Keep corpus order")
	batchesCmd.Flags().Int("limit", 3, "Batches to print per epoch (0 for all)")
	batchesCmd.Flags().Int("epochs", 1, "Passes over the store")

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment variables and their effective values",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print an example configuration file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.Example())
		},
	}

	rootCmd.AddCommand(
		buildCmd,
		vocabCmd,
		batchesCmd,
		envCmd,
		configCmd,
	)

	return rootCmd
}
