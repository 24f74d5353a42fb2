// Command ingestctl runs the import and maintenance jobs from an operator shell against the
// configured document store.
package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/imports"
	"github.com/mmdatafocus/winery_ingest/service"
	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/mmdatafocus/winery_ingest/workflow"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Operator string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Run winery import and maintenance jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Operator, "operator", os.Getenv("USER"), "name recorded in job logs")

	cmd.AddCommand(
		newImportCommand(opts, "import-sales", "Import a sales spreadsheet", func(s *config.Settings) string { return s.SalesUploadPrefix }),
		newImportCommand(opts, "import-balance", "Import a customer balance spreadsheet", func(s *config.Settings) string { return s.BalanceUploadPrefix }),
		newJobCommand(opts, "sync-bottle-types", "Make bottle types match the bottleInfo values of all invoices", (*workflow.Jobs).SyncBottleTypes),
		newJobCommand(opts, "collapse-bottle-types", "Remove duplicate bottle types", (*workflow.Jobs).CollapseBottleTypes),
		newJobCommand(opts, "reindex-invoices", "Derive bottleInfo and wineInfo from invoice notes again", (*workflow.Jobs).ReindexInvoices),
		newJobCommand(opts, "index-invoices", "Push all invoices to the search index", (*workflow.Jobs).MirrorInvoices),
		newNormalizeCommand(opts),
	)
	return cmd
}

// withService opens the service for one command and closes it afterwards.
func withService(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, svc *service.Service) (string, error)) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	logger := config.GetLogger()
	ctx := cmd.Context()
	if opts.Operator != "" {
		ctx = utils.SetUsernameInContext(ctx, opts.Operator)
	}

	svc, err := service.Open(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	msg, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func newImportCommand(opts *rootOptions, use, short string, prefix func(*config.Settings) string) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.Service) (string, error) {
				ev, err := localFileEvent(args[0], prefix(svc.Settings), mimeType)
				if err != nil {
					return "", err
				}
				res, err := svc.Router.Dispatch(ctx, ev)
				if err != nil {
					return "", err
				}
				if res.Skipped {
					return "", errors.New(res.Message)
				}
				return res.Message, nil
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "content type, detected from the extension when empty")
	return cmd
}

func localFileEvent(file, prefix, mimeType string) (imports.FileEvent, error) {
	info, err := os.Stat(file)
	if err != nil {
		return imports.FileEvent{}, err
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return imports.FileEvent{}, err
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(file))
	}
	if mimeType == "" {
		mimeType = sheet.MimeTypeByName(file)
	}
	return imports.FileEvent{
		Bucket:     "local",
		Name:       path.Join(prefix, filepath.Base(file)),
		Generation: info.ModTime().UnixNano(),
		MimeType:   mimeType,
		Content:    content,
	}, nil
}

func newJobCommand(opts *rootOptions, use, short string, run func(*workflow.Jobs, context.Context) (*workflow.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.Service) (string, error) {
				res, err := run(svc.Jobs, ctx)
				if err != nil {
					return "", err
				}
				return res.Message, nil
			})
		},
	}
}

func newNormalizeCommand(opts *rootOptions) *cobra.Command {
	var req workflow.NormalizeRequest
	cmd := &cobra.Command{
		Use:   "normalize-bottle-info",
		Short: "Rename bottleInfo values on every matching invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.Service) (string, error) {
				res, err := svc.Jobs.NormalizeBottleInfo(ctx, req)
				if err != nil {
					return "", err
				}
				return res.Message, nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&req.OldNames, "old", nil, "value to replace (repeatable)")
	cmd.Flags().StringVar(&req.NewName, "new", "", "canonical value")
	return cmd
}
