package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/pipeline"
)

type queryOptions struct {
	sessionID  string
	jsonOutput bool
	semantic   bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [text...]",
		Short: "Answer a question against the FAQ file",
		Long: `Answer a question against the FAQ file.

With no arguments, questions are read from standard input one per line and
share one conversation, so follow-ups like "and my login ID?" resolve
against the previous turn.`,
		Example: `  faqsearch query How do I reset my password?
  faqsearch query --json --faqs faqs.yaml 忘记密码怎么办
  printf 'How do I reset my password?\nand my login ID?\n' | faqsearch query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), root, opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "conversation id (default: a new random id)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVar(&opts.semantic, "semantic", true, "enable semantic matching with the local embedder")
	return cmd
}

func runQuery(ctx context.Context, root *rootOptions, opts *queryOptions, args []string, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := root.logger(errOut)

	idx, embedder, err := root.loadIndex(ctx, log, opts.semantic)
	if err != nil {
		return err
	}

	store := convo.NewMemoryStore(convo.MemoryConfig{})
	sessions := convo.NewManager(store, convo.DefaultWindow, log)
	defer func() { _ = sessions.Close() }()

	p := pipeline.New(pipeline.Config{
		Holder:   faq.NewStaticHolder(idx),
		Sessions: sessions,
		Embedder: embedder,
		Logger:   log,
	})

	sessionID := opts.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ask := func(query string) error {
		resp, err := p.Resolve(ctx, pipeline.Request{Query: query, SessionID: sessionID})
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printResponse(out, resp)
		return nil
	}

	if len(args) > 0 {
		return ask(strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ask(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printResponse(w io.Writer, resp *pipeline.Response) {
	best := resp.Best()
	if best == nil {
		_, _ = fmt.Fprintln(w, "(empty query)")
		return
	}

	header := fmt.Sprintf("[%s %.2f]", best.Type, best.Score)
	if best.FAQ != nil {
		header += " " + best.FAQ.Category
	}
	_, _ = fmt.Fprintln(w, header)
	if best.FAQ != nil {
		_, _ = fmt.Fprintf(w, "Q: %s\n", best.FAQ.Question())
	}
	_, _ = fmt.Fprintf(w, "A: %s\n", best.Answer)

	if len(resp.Results) > 1 {
		_, _ = fmt.Fprintln(w, "Other matches:")
		for _, r := range resp.Results[1:] {
			if r.FAQ != nil {
				_, _ = fmt.Fprintf(w, "  - %s (%.2f)\n", r.FAQ.Question(), r.Similarity)
			}
		}
	}
	if len(resp.RelatedQuestions) > 0 {
		_, _ = fmt.Fprintln(w, "Related:")
		for _, q := range resp.RelatedQuestions {
			_, _ = fmt.Fprintf(w, "  - %s\n", q.Question)
		}
	}
	if len(resp.Suggestions) > 0 {
		_, _ = fmt.Fprintln(w, "You could also ask:")
		for _, s := range resp.Suggestions {
			_, _ = fmt.Fprintf(w, "  - %s\n", s.Question)
		}
	}
	_, _ = fmt.Fprintln(w)
}
