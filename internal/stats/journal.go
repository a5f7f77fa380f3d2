package stats

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	JournalBufferSize   = 1024
	MaxRecordsPerSec    = 50
	MaxRecordsPerRoom   = 5 // per second
	BatchFlushSize      = 64
	BatchFlushInterval  = 100 * time.Millisecond
	RoomLimiterCleanup  = 5 * time.Minute
	maxJournalLineBytes = 1 << 20
)

var (
	ErrJournalStopped     = errors.New("journal is not running")
	ErrJournalRateLimited = errors.New("journal rate limit exceeded")
)

// Journal appends match records to a newline-delimited JSON file from a
// background writer. Appends never block: the buffer is bounded and the
// oldest pending record is dropped when it overflows.
type Journal struct {
	mu     sync.Mutex
	buffer [JournalBufferSize]MatchRecord
	head   uint64 // last sequence assigned
	tail   uint64 // last sequence taken by the writer

	globalLimiter *rate.Limiter
	roomLimiters  sync.Map // room code → *roomLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

type roomLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nanos
}

func NewJournal() *Journal {
	return &Journal{
		globalLimiter: rate.NewLimiter(MaxRecordsPerSec, MaxRecordsPerSec),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for appending and starts the writer. An empty path
// keeps records in memory only.
func (j *Journal) Start(filePath string) error {
	if j.running.Load() {
		return nil
	}

	j.filePath = filePath
	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open match journal: %w", err)
		}
		j.file = file
	}

	j.running.Store(true)
	j.writerWg.Add(2)
	go j.writerLoop()
	go j.cleanupLoop()
	return nil
}

// Resume continues numbering after seq, the last sequence already on disk.
// Call it before Start.
func (j *Journal) Resume(seq uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if seq > j.head {
		j.head = seq
		j.tail = seq
	}
}

// Stop flushes what is pending and closes the file.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.fileMu.Lock()
		if j.file != nil {
			if err := j.file.Close(); err != nil {
				log.Printf("⚠️ Match journal close failed: %v", err)
			}
			j.file = nil
		}
		j.fileMu.Unlock()
	})
}

// Append queues rec and returns the sequence number it was given.
func (j *Journal) Append(rec MatchRecord) (uint64, error) {
	if !j.running.Load() {
		return 0, ErrJournalStopped
	}
	if !j.globalLimiter.Allow() || !j.roomLimiter(rec.RoomCode).Allow() {
		j.droppedCount.Add(1)
		return 0, ErrJournalRateLimited
	}

	j.mu.Lock()
	j.head++
	rec.Sequence = j.head
	if j.head-j.tail > JournalBufferSize {
		// Overwrite the oldest pending record.
		j.tail++
		j.droppedCount.Add(1)
	}
	j.buffer[rec.Sequence%JournalBufferSize] = rec
	j.mu.Unlock()

	j.totalCount.Add(1)
	return rec.Sequence, nil
}

func (j *Journal) roomLimiter(code string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := j.roomLimiters.Load(code); ok {
		e := v.(*roomLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}
	e := &roomLimiterEntry{limiter: rate.NewLimiter(MaxRecordsPerRoom, MaxRecordsPerRoom)}
	e.lastUsed.Store(now)
	actual, _ := j.roomLimiters.LoadOrStore(code, e)
	return actual.(*roomLimiterEntry).limiter
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]MatchRecord, 0, BatchFlushSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

func (j *Journal) cleanupLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(RoomLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.cleanupRoomLimiters()
		}
	}
}

func (j *Journal) cleanupRoomLimiters() {
	cutoff := time.Now().Add(-RoomLimiterCleanup).UnixNano()
	j.roomLimiters.Range(func(key, value any) bool {
		if value.(*roomLimiterEntry).lastUsed.Load() < cutoff {
			j.roomLimiters.Delete(key)
		}
		return true
	})
}

func (j *Journal) collectBatch(batch []MatchRecord) []MatchRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.tail < j.head && len(batch) < BatchFlushSize {
		j.tail++
		batch = append(batch, j.buffer[j.tail%JournalBufferSize])
	}
	return batch
}

func (j *Journal) flushBatch(batch []MatchRecord) {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	if j.file == nil {
		return
	}
	w := bufio.NewWriter(j.file)
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			log.Printf("⚠️ Match journal: encode record %d: %v", rec.Sequence, err)
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		log.Printf("⚠️ Match journal write failed: %v", err)
		return
	}
	j.writtenCount.Add(uint64(len(batch)))
}

// JournalStats is a snapshot of the journal counters.
type JournalStats struct {
	Total   uint64 `json:"total"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

func (j *Journal) Stats() JournalStats {
	j.mu.Lock()
	pending := j.head - j.tail
	j.mu.Unlock()
	return JournalStats{
		Total:   j.totalCount.Load(),
		Written: j.writtenCount.Load(),
		Dropped: j.droppedCount.Load(),
		Pending: pending,
		Running: j.running.Load(),
	}
}

// ReadJournal decodes every record in a journal file. A missing file is
// an empty journal. Undecodable lines are skipped.
func ReadJournal(path string) ([]MatchRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open match journal: %w", err)
	}
	defer f.Close()

	var out []MatchRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxJournalLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec MatchRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			log.Printf("⚠️ Match journal %s:%d skipped: %v", path, line, err)
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read match journal: %w", err)
	}
	return out, nil
}
