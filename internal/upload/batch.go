package upload

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// BatchWorkers is the number of files uploaded at the same time in batch
// mode.
const BatchWorkers = 2

type job struct {
	fileName string
	run      func(ctx context.Context) Report
}

// UploadDirectory uploads every data file directly under dir, each paired
// with its "<name>.json" sidecar. All tasks are queued before results are
// collected; reports come back in completion order, one per file. A failed
// file never stops its siblings. The error is only set when dir cannot be
// listed.
func (s *Service) UploadDirectory(ctx context.Context, dir string) ([]Report, error) {
	names, err := DiscoverFiles(dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch upload starting",
		zap.String("directory", dir),
		zap.Int("files", len(names)),
		zap.Int("workers", s.workers))

	jobs := make(chan job, len(names))
	for _, name := range names {
		spec, err := SpecFromSidecar(dir, name)
		if err != nil {
			specErr := asError(KindValidation, err)
			jobs <- job{fileName: name, run: func(context.Context) Report {
				return FailedReport(name, StateValidating, specErr)
			}}
			continue
		}
		jobs <- job{fileName: name, run: func(ctx context.Context) Report {
			return s.runTask(ctx, spec)
		}}
	}
	close(jobs)

	results := make(chan Report, len(names))
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- j.run(ctx)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	reports := make([]Report, 0, len(names))
	for report := range results {
		s.record(ctx, report)
		reports = append(reports, report)
	}

	s.logger.Info("batch upload finished",
		zap.String("directory", dir),
		zap.Int("reports", len(reports)),
		zap.Int("failed", countFailed(reports)))
	return reports, nil
}

// DiscoverFiles lists the data files directly under dir: regular entries
// whose name does not end in SidecarSuffix.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), SidecarSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func countFailed(reports []Report) int {
	n := 0
	for _, r := range reports {
		if !r.OK() {
			n++
		}
	}
	return n
}
