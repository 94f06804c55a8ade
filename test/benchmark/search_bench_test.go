package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/engine"
	"github.com/phakpoomachalanan/WebIR/internal/search"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
)

func benchSelector() *analysis.Selector {
	sel := analysis.NewSelector(analysis.Simple{})
	return &sel
}

func buildBenchIndex(b *testing.B, docs int) *engine.Reader {
	b.Helper()
	dir := b.TempDir()
	cfg := config.IndexConfig{Dir: dir, BufferMaxSize: 1 << 30, KeyField: "path"}
	w, err := engine.OpenWriter(dir, cfg, benchSelector(), engine.ModeCreate)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < docs; i++ {
		if err := w.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		b.Fatal(err)
	}
	r, err := engine.OpenReader(dir)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { r.Close() })
	return r
}

// BenchmarkSearchSingleTerm measures single-term query latency over 10 000
// documents.
func BenchmarkSearchSingleTerm(b *testing.B) {
	s := search.NewSearcher(buildBenchIndex(b, 10000))
	query, err := search.Parse("benchmark", "contents", benchSelector())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(context.Background(), query, 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSearchBoolean measures a three-clause boolean query.
func BenchmarkSearchBoolean(b *testing.B) {
	s := search.NewSearcher(buildBenchIndex(b, 10000))
	query, err := search.Parse("+benchmark +indexing -missing", "contents", benchSelector())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(context.Background(), query, 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSearchParallel measures concurrent query throughput on one
// snapshot.
func BenchmarkSearchParallel(b *testing.B) {
	s := search.NewSearcher(buildBenchIndex(b, 10000))
	query, err := search.Parse("benchmark", "contents", benchSelector())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.Search(context.Background(), query, 10); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkParse measures query parsing alone.
func BenchmarkParse(b *testing.B) {
	sel := benchSelector()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := search.Parse(fmt.Sprintf("+title:snow contents:festival -old%d", i%10), "contents", sel); err != nil {
			b.Fatal(err)
		}
	}
}
