package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/engine"
	"github.com/phakpoomachalanan/WebIR/internal/highlight"
	"github.com/phakpoomachalanan/WebIR/internal/search"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

type searchOptions struct {
	indexDir    string
	field       string
	query       string
	queriesFile string
	raw         bool
	paging      bool
	repeat      int
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the index",
		Long: `Executes queries against the index. A single query can be given with
--query, a batch with --queries, or queries are read interactively from
stdin. Interactive results page ten at a time; --repeat re-runs one
query as a throughput check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.indexDir, "index", "", "index directory (default from config)")
	cmd.Flags().StringVar(&opts.field, "field", "", "default field for unqualified terms")
	cmd.Flags().StringVar(&opts.query, "query", "", "query to execute once")
	cmd.Flags().StringVar(&opts.queriesFile, "queries", "", "file with one query per line")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print raw doc ids and scores")
	cmd.Flags().BoolVar(&opts.paging, "paging", true, "page interactive results")
	cmd.Flags().IntVar(&opts.repeat, "repeat", 0, "re-run the query this many times and report timing")
	return cmd
}

func runSearch(cmd *cobra.Command, a *app, opts *searchOptions) error {
	if opts.indexDir == "" {
		opts.indexDir = a.cfg.Index.Dir
	}
	if opts.field == "" {
		opts.field = a.cfg.Search.DefaultField
	}
	analyzers, err := a.analyzers()
	if err != nil {
		return err
	}

	reader, err := engine.OpenReader(opts.indexDir)
	if err != nil {
		return err
	}
	defer reader.Close()
	searcher := search.NewSearcher(reader)

	s := &searchSession{
		app:       a,
		opts:      opts,
		searcher:  searcher,
		analyzers: analyzers,
		hl:        highlight.New(),
		out:       cmd.OutOrStdout(),
	}

	switch {
	case opts.repeat > 0:
		if opts.query == "" {
			return fmt.Errorf("--repeat requires --query")
		}
		return s.benchmark(cmd.Context())
	case opts.query != "":
		return s.runOnce(cmd.Context(), opts.query)
	case opts.queriesFile != "":
		return s.runBatch(cmd.Context())
	default:
		return s.runInteractive(cmd.Context(), cmd.InOrStdin())
	}
}

type searchSession struct {
	app       *app
	opts      *searchOptions
	searcher  *search.Searcher
	analyzers *analysis.Selector
	hl        *highlight.Highlighter
	out       io.Writer
}

func (s *searchSession) parse(q string) (search.Query, error) {
	return search.Parse(q, s.opts.field, s.analyzers)
}

// runOnce executes one query and prints the first page of hits.
func (s *searchSession) runOnce(ctx context.Context, q string) error {
	query, err := s.parse(q)
	if err != nil {
		return err
	}
	top, err := s.searcher.Search(ctx, query, s.app.cfg.Search.PageSize)
	if err != nil && !errors.Is(err, pkgerrors.ErrPartialResults) {
		return err
	}
	fmt.Fprintf(s.out, "%d total matching documents\n", top.TotalHits)
	s.printHits(query, top.Hits, 0)
	if err != nil {
		fmt.Fprintln(s.out, "(results are partial: the search was interrupted)")
	}
	return nil
}

// runBatch executes the queries file line by line, skipping blanks.
func (s *searchSession) runBatch(ctx context.Context) error {
	f, err := os.Open(s.opts.queriesFile)
	if err != nil {
		return fmt.Errorf("opening queries file: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		fmt.Fprintf(s.out, "Query: %s\n", q)
		if err := s.runOnce(ctx, q); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		fmt.Fprintln(s.out)
	}
	return scanner.Err()
}

// benchmark re-runs one query, reporting total wall time over all runs.
func (s *searchSession) benchmark(ctx context.Context) error {
	query, err := s.parse(s.opts.query)
	if err != nil {
		return err
	}
	const benchHits = 100
	start := time.Now()
	for i := 0; i < s.opts.repeat; i++ {
		if _, err := s.searcher.Search(ctx, query, benchHits); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	fmt.Fprintf(s.out, "time: %s for %d runs (%.2f queries/sec)\n",
		elapsed.Round(time.Millisecond), s.opts.repeat,
		float64(s.opts.repeat)/elapsed.Seconds())
	return nil
}

// runInteractive reads queries from in until EOF or a blank line, paging each
// result set under user control.
func (s *searchSession) runInteractive(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "Query: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			return nil
		}
		query, err := s.parse(q)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		if err := s.pageResults(ctx, query, scanner); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// pageResults drives the interactive paging loop for one query.
func (s *searchSession) pageResults(ctx context.Context, query search.Query, scanner *bufio.Scanner) error {
	cfg := s.app.cfg.Search
	pager, err := search.NewPager(ctx, s.searcher, query, cfg.PageSize, cfg.PageMultiplier)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d total matching documents\n", pager.TotalHits())
	if pager.TotalHits() == 0 {
		return nil
	}

	start := 0
	for {
		if pager.NeedsCollect(start) {
			fmt.Fprint(s.out, "Only partial results collected. Collect all? (y/n) ")
			if !scanner.Scan() || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(scanner.Text())), "y") {
				start = clampStart(start, pager)
			} else if err := pager.CollectAll(ctx); err != nil {
				return err
			}
		}
		s.printHits(query, pager.Page(start), start)
		if !s.opts.paging {
			return nil
		}

		fmt.Fprint(s.out, "Press (n)ext page, (p)revious page, a page number, or (q)uit: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		choice := strings.TrimSpace(strings.ToLower(scanner.Text()))
		switch {
		case choice == "q" || choice == "":
			return nil
		case choice == "n":
			if start+pager.PageSize() < pager.TotalHits() {
				start += pager.PageSize()
			}
		case choice == "p":
			start -= pager.PageSize()
			if start < 0 {
				start = 0
			}
		default:
			page, err := strconv.Atoi(choice)
			if err != nil || page < 1 {
				fmt.Fprintln(s.out, "unrecognized choice")
				continue
			}
			jump := (page - 1) * pager.PageSize()
			if jump >= pager.TotalHits() {
				fmt.Fprintln(s.out, "no such page")
				continue
			}
			start = jump
		}
	}
}

// printHits renders one page of hits: numbered, with the stored fields and a
// snippet, or raw ids with --raw.
func (s *searchSession) printHits(query search.Query, hits []search.ScoreDoc, start int) {
	stored := s.searcher.Reader().StoredFields()
	for i, sd := range hits {
		if s.opts.raw {
			fmt.Fprintf(s.out, "doc=%d score=%.4f\n", sd.Doc, sd.Score)
			continue
		}
		fields, err := stored.Fetch(sd.Doc)
		if err != nil {
			fmt.Fprintf(s.out, "%d. (unreadable document %d: %v)\n", start+i+1, sd.Doc, err)
			continue
		}
		title := fields["title"]
		if title == "" {
			title = fields["path"]
		}
		location := fields["url"]
		if location == "" {
			location = fields["path"]
		}
		fmt.Fprintf(s.out, "%d. %s\n", start+i+1, location)
		fmt.Fprintf(s.out, "   Title: %s\n", title)
		if text := fields[s.opts.field]; text != "" {
			if snippet := s.hl.BestSnippet(query, s.opts.field, text, s.analyzers.ForField(s.opts.field)); snippet != "" {
				fmt.Fprintf(s.out, "   Snippet: %s\n", snippet)
			}
		}
		if pref := fields["prefecture"]; pref != "" {
			fmt.Fprintf(s.out, "   Prefecture: %s\n", pref)
		}
	}
}

func clampStart(start int, pager *search.Pager) int {
	if start >= pager.Collected() {
		start = pager.Collected() - pager.PageSize()
		if start < 0 {
			start = 0
		}
	}
	return start
}
