// Package main is faqsearch, a command-line client for the FAQ matcher.
// It answers questions against a local FAQ file without running the server,
// lists the file's categories, and publishes FAQ files to the R2 bucket the
// server reads from.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/melonneet/ezhishi-chatbot/internal/buildinfo"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/genai"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/segment"
)

const defaultFAQPath = "data/faqs.json"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	faqPath  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "faqsearch",
		Short:        "Query the eZhishi FAQ knowledge base from the command line",
		Version:      buildinfo.String(),
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.faqPath, "faqs", envOr("FAQ_PATH", defaultFAQPath), "FAQ file (JSON or YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	cmd.AddCommand(newQueryCmd(opts), newCategoriesCmd(opts), newPublishCmd(opts))
	return cmd
}

func (o *rootOptions) logger(w io.Writer) *logger.Logger {
	return logger.NewWithWriter(o.logLevel, w)
}

// loadIndex reads and indexes the FAQ file. With semantic set, entries are
// embedded with the local hashing embedder.
func (o *rootOptions) loadIndex(ctx context.Context, log *logger.Logger, semantic bool) (*faq.Index, faq.Embedder, error) {
	res, err := faq.LoadFile(o.faqPath)
	if err != nil {
		return nil, nil, err
	}
	for _, skipped := range res.Skipped {
		log.WithError(skipped).Warn("Skipped invalid FAQ entry")
	}

	seg := segment.NewDictionary(log)
	opts := faq.Options{Source: o.faqPath, Segmenter: seg, Logger: log}
	var embedder faq.Embedder
	if semantic {
		embedder = genai.NewLocalEmbedder(0, seg)
		opts.Embedder = embedder
	}

	idx, err := faq.Build(ctx, res.Entries, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("build index: %w", err)
	}
	return idx, embedder, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
