// Package analyzer holds the contracts shared by the file analyzers and the
// progress plumbing that reaches them through a context.
package analyzer

import "context"

// FileAnalyzer analyzes a batch of files into a result of type T.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns whatever it could complete. A
	// non-nil error alongside a result describes the files that failed.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
