package storage

import (
	"sync"
	"time"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/model"
	"objectsguesser/internal/repository"
)

const (
	// RequestBufferLimit caps how many records are held between flushes; extra records are dropped.
	RequestBufferLimit = 1000
	// DefaultFlushInterval is used when the configured interval is not positive.
	DefaultFlushInterval = 5 * time.Second
)

// BufferService buffers request records in memory and periodically writes them to the request log.
type BufferService struct {
	records  []model.RequestRecord
	dropped  int
	interval time.Duration
	mu       sync.Mutex
	logger   *logger.Logger
	repo     repository.RequestRepository
	done     chan struct{}
	stopOnce sync.Once
}

// NewBufferService creates a new BufferService writing to repo.
func NewBufferService(config *config.Config, logger *logger.Logger, repo repository.RequestRepository) *BufferService {
	interval := config.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &BufferService{
		records:  make([]model.RequestRecord, 0),
		interval: interval,
		logger:   logger,
		repo:     repo,
		done:     make(chan struct{}),
	}
}

// Run starts a ticker loop that periodically flushes records. It returns after Stop.
func (s *BufferService) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.done:
			s.Flush()
			return
		}
	}
}

// Stop ends Run after a final flush.
func (s *BufferService) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Add appends a record to the in-memory buffer.
func (s *BufferService) Add(rec model.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= RequestBufferLimit {
		s.dropped++
		return
	}
	s.records = append(s.records, rec)
}

// Pending returns the number of buffered records.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Flush writes buffered records in one batch and resets the buffer. On failure the
// records are discarded and the error is logged.
func (s *BufferService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped > 0 {
		s.logger.Warning("Request buffer full, dropped %d records", s.dropped)
		s.dropped = 0
	}

	if len(s.records) == 0 {
		return
	}

	if err := s.repo.InsertBatch(s.records); err != nil {
		s.logger.Error("Error saving %d request records: %v", len(s.records), err)
	} else {
		s.logger.Info("Flushed %d request records", len(s.records))
	}

	s.records = s.records[:0]
}
