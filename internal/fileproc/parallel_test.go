package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyprune/pkg/parser"
)

func writeFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, n)
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("mod%d.py", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("import os\nx = %d\n", i)), 0o644))
		files[i] = path
	}
	return files
}

func TestMapFilesPreservesOrder(t *testing.T) {
	files := writeFiles(t, 20)

	results, errs := MapFiles(context.Background(), files, 4, func(ctx context.Context, psr *parser.Parser, path string) (string, error) {
		res, err := psr.ParseFile(ctx, path)
		if err != nil {
			return "", err
		}
		return res.Path, nil
	}, nil)

	require.Nil(t, errs)
	assert.Equal(t, files, results)
}

func TestMapFilesCollectsErrors(t *testing.T) {
	files := writeFiles(t, 5)
	boom := errors.New("boom")

	results, errs := MapFiles(context.Background(), files, 2, func(_ context.Context, _ *parser.Parser, path string) (string, error) {
		if path == files[2] {
			return "", boom
		}
		return path, nil
	}, nil)

	require.NotNil(t, errs)
	assert.Len(t, results, 4)
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, files[2], errs.Errors[0].Path)
	assert.ErrorIs(t, errs, boom)
	assert.Contains(t, errs.Error(), "boom")
}

func TestMapFilesCallsDoneForEveryFile(t *testing.T) {
	files := writeFiles(t, 8)
	var done, failed atomic.Int32

	_, _ = MapFiles(context.Background(), files, 3, func(_ context.Context, _ *parser.Parser, path string) (int, error) {
		if filepath.Base(path) == "mod0.py" {
			return 0, errors.New("fail")
		}
		return 1, nil
	}, func(_ string, err error) {
		done.Add(1)
		if err != nil {
			failed.Add(1)
		}
	})

	assert.Equal(t, int32(8), done.Load())
	assert.Equal(t, int32(1), failed.Load())
}

func TestMapFilesDoneSeesCancellation(t *testing.T) {
	files := writeFiles(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var cancelled atomic.Int32
	_, _ = MapFiles(ctx, files, 1, func(_ context.Context, _ *parser.Parser, path string) (string, error) {
		return path, nil
	}, func(_ string, err error) {
		if errors.Is(err, context.Canceled) {
			cancelled.Add(1)
		}
	})

	assert.Equal(t, int32(3), cancelled.Load())
}

func TestMapFilesCancelled(t *testing.T) {
	files := writeFiles(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, errs := MapFiles(ctx, files, 1, func(_ context.Context, _ *parser.Parser, path string) (string, error) {
		return path, nil
	}, nil)

	assert.Empty(t, results)
	require.NotNil(t, errs)
	assert.ErrorIs(t, errs, context.Canceled)
}

func TestMapFilesEmpty(t *testing.T) {
	results, errs := MapFiles(context.Background(), nil, 0, func(context.Context, *parser.Parser, string) (int, error) {
		return 0, nil
	}, nil)
	assert.Nil(t, results)
	assert.Nil(t, errs)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
	assert.Equal(t, runtime.NumCPU()*DefaultWorkerMultiplier, Workers(0))
	assert.Equal(t, runtime.NumCPU()*DefaultWorkerMultiplier, Workers(-1))
}

func TestProcessingErrorsEmpty(t *testing.T) {
	errs := &ProcessingErrors{}
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no errors", errs.Error())
}
