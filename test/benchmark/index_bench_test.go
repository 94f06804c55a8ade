// Package benchmark contains Go benchmarks for the analysis chain, the
// in-memory buffer, and the search pipeline, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/phakpoomachalanan/WebIR/internal/engine"
	"github.com/phakpoomachalanan/WebIR/internal/index"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
)

func benchDoc(i int) index.Document {
	var doc index.Document
	doc.Add(index.NewKeywordField("path", fmt.Sprintf("doc-%d.html", i), true))
	doc.Add(index.NewTextField("title", "benchmark title", true))
	doc.Add(index.NewTextField("contents",
		"this is a benchmark document with several terms for testing the indexing performance of the buffer", true))
	return doc
}

// BenchmarkMemtableAdd measures per-document insert throughput into the
// in-memory buffer.
func BenchmarkMemtableAdd(b *testing.B) {
	m := index.NewMemtable()
	terms := []index.TermOccurrence{
		{Field: "contents", Term: "benchmark", Position: 0},
		{Field: "contents", Term: "document", Position: 1},
		{Field: "contents", Term: "terms", Position: 2},
		{Field: "contents", Term: "indexing", Position: 3},
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Add(map[string]string{"path": "doc.html"}, terms, len(terms))
	}
}

// BenchmarkWriterAdd measures full add throughput through analysis into the
// buffer.
func BenchmarkWriterAdd(b *testing.B) {
	dir := b.TempDir()
	w, err := engine.OpenWriter(dir, config.IndexConfig{
		Dir:           dir,
		BufferMaxSize: 1 << 30, // never flush during the benchmark
		KeyField:      "path",
	}, benchSelector(), engine.ModeCreate)
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCommit measures the cost of flushing and committing a thousand
// buffered documents.
func BenchmarkCommit(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dir := b.TempDir()
		w, err := engine.OpenWriter(dir, config.IndexConfig{
			Dir:           dir,
			BufferMaxSize: 1 << 30,
			KeyField:      "path",
		}, benchSelector(), engine.ModeCreate)
		if err != nil {
			b.Fatal(err)
		}
		for d := 0; d < 1000; d++ {
			if err := w.AddDocument(benchDoc(d)); err != nil {
				b.Fatal(err)
			}
		}
		b.StartTimer()
		if err := w.Commit(); err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
		w.Close()
	}
}
