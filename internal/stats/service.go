// Package stats persists finished matches and keeps per-player aggregates.
//
// Every match is appended to a JSONL journal and folded into in-memory
// totals keyed by player name. On start the journal is replayed so totals
// survive restarts. Persistence is best effort: a record that cannot be
// written is dropped and reported, never retried.
package stats

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/metrics"
	"snake-arena/internal/room"
)

// MatchRecord is one journal line.
type MatchRecord struct {
	Sequence  uint64          `json:"seq"`
	RoomCode  string          `json:"roomCode"`
	RoomName  string          `json:"roomName"`
	Mode      string          `json:"mode"`
	Round     int             `json:"round"`
	Reason    string          `json:"reason"`
	Winner    string          `json:"winner,omitempty"`
	Duration  float64         `json:"duration"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   time.Time       `json:"endedAt"`
	Standings []game.Standing `json:"standings"`
}

func newMatchRecord(s room.MatchSummary) MatchRecord {
	rec := MatchRecord{
		RoomCode:  s.RoomCode,
		RoomName:  s.RoomName,
		Mode:      string(s.Mode),
		Round:     s.Round,
		Reason:    string(s.Reason),
		Duration:  s.Duration,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Standings: s.Standings,
	}
	if s.Winner != nil {
		rec.Winner = s.Winner.Name
	}
	return rec
}

// PlayerStats are lifetime totals for one player name.
type PlayerStats struct {
	Name       string    `json:"name"`
	Games      int       `json:"games"`
	Wins       int       `json:"wins"`
	Kills      int       `json:"kills"`
	BestScore  int       `json:"bestScore"`
	TotalScore int       `json:"totalScore"`
	LastPlayed time.Time `json:"lastPlayed"`
}

// RankedPlayer is a leaderboard row.
type RankedPlayer struct {
	Rank int `json:"rank"`
	PlayerStats
}

// Config controls the service.
type Config struct {
	JournalPath  string
	RecentLimit  int
	ReplayOnLoad bool
}

func DefaultConfig() Config {
	return Config{
		JournalPath:  "matches.jsonl",
		RecentLimit:  50,
		ReplayOnLoad: true,
	}
}

// Service implements room.GameOverFunc through OnGameOver.
type Service struct {
	cfg     Config
	journal *Journal
	ranking *Ranking

	mu      sync.RWMutex
	players map[string]*PlayerStats
	recent  []MatchRecord // oldest first, at most RecentLimit
}

func NewService(cfg Config) *Service {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultConfig().RecentLimit
	}
	return &Service{
		cfg:     cfg,
		journal: NewJournal(),
		ranking: NewRanking(),
		players: make(map[string]*PlayerStats),
	}
}

// Start replays the journal, then starts appending to it.
func (s *Service) Start() error {
	if s.cfg.JournalPath != "" && s.cfg.ReplayOnLoad {
		records, err := ReadJournal(s.cfg.JournalPath)
		if err != nil {
			return err
		}
		var last uint64
		for _, rec := range records {
			s.fold(rec)
			if rec.Sequence > last {
				last = rec.Sequence
			}
		}
		s.journal.Resume(last)
		if len(records) > 0 {
			log.Printf("📚 Replayed %d matches from %s (%d players)", len(records), s.cfg.JournalPath, s.ranking.Len())
		}
	}
	return s.journal.Start(s.cfg.JournalPath)
}

// Stop flushes the journal.
func (s *Service) Stop() {
	s.journal.Stop()
}

// OnGameOver records a finished round. The aggregates are always updated;
// the returned error only reports a journal drop.
func (s *Service) OnGameOver(ctx context.Context, info room.Info, summary room.MatchSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := newMatchRecord(summary)
	if rec.RoomName == "" {
		rec.RoomName = info.Name
	}
	seq, err := s.journal.Append(rec)
	if err != nil {
		metrics.RecordJournal("dropped")
		s.fold(rec)
		return fmt.Errorf("journal room %s round %d: %w", rec.RoomCode, rec.Round, err)
	}
	rec.Sequence = seq
	metrics.RecordJournal("queued")
	s.fold(rec)
	return nil
}

func (s *Service) fold(rec MatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range rec.Standings {
		key := playerKey(st.Name)
		if key == "" {
			continue
		}
		p, ok := s.players[key]
		if !ok {
			p = &PlayerStats{}
			s.players[key] = p
		}
		p.Name = st.Name
		p.Games++
		p.Kills += st.Kills
		p.TotalScore += st.Score
		if st.Score > p.BestScore {
			p.BestScore = st.Score
		}
		if rec.Winner != "" && rec.Winner == st.Name && st.Rank == 1 {
			p.Wins++
		}
		if rec.EndedAt.After(p.LastPlayed) {
			p.LastPlayed = rec.EndedAt
		}
		s.ranking.Set(key, float64(p.BestScore))
	}

	s.recent = append(s.recent, rec)
	if over := len(s.recent) - s.cfg.RecentLimit; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}

func playerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Top returns the n best players by best score.
func (s *Service) Top(n int) []RankedPlayer {
	entries := s.ranking.Range(1, n)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RankedPlayer, 0, len(entries))
	for i, e := range entries {
		if p, ok := s.players[e.Key]; ok {
			out = append(out, RankedPlayer{Rank: i + 1, PlayerStats: *p})
		}
	}
	return out
}

// Player returns the totals and rank for name.
func (s *Service) Player(name string) (RankedPlayer, bool) {
	key := playerKey(name)
	s.mu.RLock()
	p, ok := s.players[key]
	var stats PlayerStats
	if ok {
		stats = *p
	}
	s.mu.RUnlock()
	if !ok {
		return RankedPlayer{}, false
	}
	return RankedPlayer{Rank: s.ranking.Rank(key), PlayerStats: stats}, true
}

// Recent returns up to n matches, newest first.
func (s *Service) Recent(n int) []MatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]MatchRecord, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	return out
}

func (s *Service) JournalStats() JournalStats {
	return s.journal.Stats()
}
