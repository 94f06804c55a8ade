package benchmark

import (
	"strings"
	"testing"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
)

var benchText = strings.Repeat("the quick brown fox jumps over the lazy dog near the snowy mountain ", 20)

// BenchmarkSimpleAnalyze measures raw tokenization throughput.
func BenchmarkSimpleAnalyze(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		if _, err := (analysis.Simple{}).Analyze("contents", benchText); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEnglishAnalyze adds stop-word removal and stemming on top.
func BenchmarkEnglishAnalyze(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		if _, err := (analysis.English{}).Analyze("contents", benchText); err != nil {
			b.Fatal(err)
		}
	}
}
