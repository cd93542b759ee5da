package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/melonneet/ezhishi-chatbot/internal/config"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/r2client"
)

type publishOptions struct {
	key     string
	timeout time.Duration
}

func newPublishCmd(root *rootOptions) *cobra.Command {
	opts := &publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate the FAQ file and upload it to the R2 bucket",
		Long: `Validate the FAQ file and upload it to the R2 bucket.

Credentials come from R2_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and
R2_BUCKET_NAME. A key ending in .zst is uploaded zstd compressed. Servers with
FAQ_REMOTE_KEY set to the same key pick up the new file on their next poll.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd.Context(), root, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.key, "key", "", "object key (default: FAQ_REMOTE_KEY, then the file name)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "upload timeout")
	return cmd
}

func runPublish(ctx context.Context, root *rootOptions, opts *publishOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := faq.LoadFile(root.faqPath)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		for _, skipped := range res.Skipped {
			_, _ = fmt.Fprintln(errOut, skipped)
		}
		return fmt.Errorf("%s: %d invalid entries, fix them before publishing", root.faqPath, len(res.Skipped))
	}
	if len(res.Entries) == 0 {
		return errors.New(root.faqPath + ": no entries")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasR2() {
		return errors.New("R2 credentials are not configured")
	}

	key := opts.key
	if key == "" {
		key = cfg.FAQRemoteKey
	}
	if key == "" {
		key = filepath.Base(root.faqPath)
	}

	data, err := os.ReadFile(root.faqPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", root.faqPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2.Endpoint,
		AccessKeyID: cfg.R2.AccessKeyID,
		SecretKey:   cfg.R2.SecretKey,
		BucketName:  cfg.R2.BucketName,
	})
	if err != nil {
		return err
	}
	etag, err := client.Publish(ctx, key, data, contentType(key))
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	_, _ = fmt.Fprintf(out, "published %d entries to %s (etag %s)\n", len(res.Entries), key, etag)
	return nil
}

func contentType(key string) string {
	if faq.FormatFor(key) == faq.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
