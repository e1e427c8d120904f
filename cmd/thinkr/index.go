package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/indexer"
	"thinkr-chatbot/internal/pdf"
)

var (
	flagIndexForce  bool
	flagIndexPDFDir string
	flagWatchDelay  time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index-pdfs",
	Short: "Index the course PDFs",
	Long: `Extract, chunk and embed every PDF under PDF_DIR.
Unchanged PDFs are skipped, changed ones re-indexed and deleted ones pruned.
--force discards the whole index first.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-index whenever a PDF under PDF_DIR changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexForce, "force", false, "Rebuild the index from scratch")
	indexCmd.Flags().StringVar(&flagIndexPDFDir, "pdf-dir", "", "PDF directory (default PDF_DIR)")
	watchCmd.Flags().StringVar(&flagIndexPDFDir, "pdf-dir", "", "PDF directory (default PDF_DIR)")
	watchCmd.Flags().DurationVar(&flagWatchDelay, "debounce", indexer.DefaultDebounce, "Quiet period before re-indexing")
	rootCmd.AddCommand(indexCmd, watchCmd)
}

// pdfIndexer is the part of the chatbot the index commands use.
type pdfIndexer interface {
	Index(ctx context.Context, req chatbot.IndexRequest) (*indexer.Result, error)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := indexWithProgress(cmd.Context(), a.Chatbot, cmd.ErrOrStderr(), chatbot.IndexRequest{
		PDFDir: flagIndexPDFDir,
		Force:  flagIndexForce,
	})
	if err != nil {
		return err
	}
	printIndexResult(cmd.OutOrStdout(), res)
	return nil
}

// indexWithProgress runs one index pass and draws a progress bar on w once the file count is known.
func indexWithProgress(ctx context.Context, ix pdfIndexer, w io.Writer, req chatbot.IndexRequest) (*indexer.Result, error) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	req.Progress = func(p indexer.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = newProgressBar(w, p.Total)
		}
		_ = bar.Set(p.Done)
	}

	res, err := ix.Index(ctx, req)

	mu.Lock()
	if bar != nil {
		_ = bar.Finish()
	}
	mu.Unlock()
	return res, err
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	dir := flagIndexPDFDir
	if dir == "" {
		dir = a.Config.PDFDir
	}

	reindex := func(ctx context.Context) error {
		res, err := a.Chatbot.Index(ctx, chatbot.IndexRequest{PDFDir: dir})
		if err != nil {
			return err
		}
		printIndexResult(out, res)
		return nil
	}

	if err := reindex(ctx); err != nil {
		return err
	}

	w, err := indexer.NewWatcher(dir, flagWatchDelay, reindex)
	if err != nil {
		return err
	}
	printOK(out, fmt.Sprintf("watching %s (Ctrl-C to stop)", dir))

	if err := w.Run(ctx); err != nil {
		if errors.Is(err, pdf.ErrDirNotFound) {
			return fmt.Errorf("%w: create it or set PDF_DIR", err)
		}
		return err
	}
	return nil
}
