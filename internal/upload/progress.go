package upload

import (
	"sync"

	"go.uber.org/zap"
)

// Progress counts bytes sent for one file. Part uploads call Add
// concurrently; the mutex serializes them.
type Progress struct {
	mu       sync.Mutex
	file     string
	size     int64
	sent     int64
	nextStep int64
	logger   *zap.Logger
}

// progressStep is the percentage between two progress log lines.
const progressStep = 10

// NewProgress tracks a file of size bytes.
func NewProgress(file string, size int64, logger *zap.Logger) *Progress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Progress{file: file, size: size, nextStep: progressStep, logger: logger}
}

func (p *Progress) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent += n
	if p.size <= 0 {
		return
	}
	pct := p.sent * 100 / p.size
	if pct < p.nextStep {
		return
	}
	p.logger.Debug("upload progress",
		zap.String("file", p.file),
		zap.Int64("sent_bytes", p.sent),
		zap.Int64("total_bytes", p.size),
		zap.Int64("percent", pct))
	p.nextStep = (pct/progressStep + 1) * progressStep
}

// Sent returns the bytes counted so far.
func (p *Progress) Sent() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Percent returns Sent as a share of the file size.
func (p *Progress) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size <= 0 {
		return 100
	}
	return float64(p.sent) / float64(p.size) * 100
}
