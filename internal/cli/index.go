package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phakpoomachalanan/WebIR/internal/crawl"
	"github.com/phakpoomachalanan/WebIR/internal/engine"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		indexDir string
		docsDir  string
		baseURL  string
		create   bool
		failFast bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Crawl a document tree into the index",
		Long: `Walks the documents directory, extracts text from HTML and plain
files, and adds each file to the index keyed by its path. By default
existing documents with the same path are updated in place; --create
starts over from an empty index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if docsDir == "" {
				return fmt.Errorf("--docs is required")
			}
			if indexDir == "" {
				indexDir = a.cfg.Index.Dir
			}
			analyzers, err := a.analyzers()
			if err != nil {
				return err
			}

			mode := engine.ModeAppend
			if create {
				mode = engine.ModeCreate
			}
			w, err := engine.OpenWriter(indexDir, a.cfg.Index, analyzers, mode)
			if err != nil {
				return err
			}

			log := logger.WithComponent("cli.index")
			ex := &crawl.Extractor{Root: docsDir, BaseURL: baseURL}
			start := time.Now()
			added, updated, failed := 0, 0, 0
			for entry := range crawl.Walk(cmd.Context(), docsDir) {
				if entry.Err != nil {
					log.Warn("skipping unreadable path", "path", entry.Path, "error", entry.Err)
					failed++
					continue
				}
				fd, err := ex.ExtractFile(entry.Path, entry.ModTime)
				if err != nil {
					log.Warn("skipping unparsable file", "path", entry.Path, "error", err)
					failed++
					continue
				}
				doc := ex.Document(fd)
				if create {
					err = w.AddDocument(doc)
				} else {
					err = w.UpdateDocument("path", fd.Path, doc)
				}
				if err != nil {
					// Analysis failures are scoped to one document; the run
					// goes on without it unless --fail-fast is set.
					if pkgerrors.IsAnalysis(err) && !failFast {
						log.Warn("skipping unanalyzable document", "path", fd.Path, "error", err)
						fmt.Fprintf(cmd.OutOrStdout(), "skipping %s: %v\n", fd.Path, err)
						failed++
						continue
					}
					w.Close()
					return err
				}
				if create {
					added++
					fmt.Fprintf(cmd.OutOrStdout(), "adding %s\n", fd.Path)
				} else {
					updated++
					fmt.Fprintf(cmd.OutOrStdout(), "updating %s\n", fd.Path)
				}
			}

			if err := w.Commit(); err != nil {
				w.Close()
				return err
			}
			live := w.LiveDocs()
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d added, %d updated, %d skipped; %d documents total in %s\n",
				added, updated, failed, live, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index directory (default from config)")
	cmd.Flags().StringVar(&docsDir, "docs", "", "root of the document tree to index")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL prefix recorded for each document")
	cmd.Flags().BoolVar(&create, "create", false, "build a fresh index instead of updating in place")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort on the first document that fails analysis instead of skipping it")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var indexDir string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Compact the index into a single segment",
		Long: `Rewrites all segments as one, dropping deleted documents for good.
Requires the write lock, so no indexer may be running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexDir == "" {
				indexDir = a.cfg.Index.Dir
			}
			analyzers, err := a.analyzers()
			if err != nil {
				return err
			}
			w, err := engine.OpenWriter(indexDir, a.cfg.Index, analyzers, engine.ModeAppend)
			if err != nil {
				return err
			}
			start := time.Now()
			if err := w.ForceMerge(); err != nil {
				w.Close()
				return err
			}
			live := w.LiveDocs()
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged to %d documents in %s\n",
				live, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index directory (default from config)")
	return cmd
}
