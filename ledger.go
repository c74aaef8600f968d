package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	ledgerBuffer     = 256
	ledgerBatchSize  = 16
	ledgerFlushEvery = 5 * time.Second
	recentRoundsMax  = 100
)

// Ledger persists finished rounds with batched background writes. Record
// never blocks the game loop.
type Ledger struct {
	db      *DB
	results chan RoundResult
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewLedger creates and starts the background writer
func NewLedger(db *DB) *Ledger {
	l := &Ledger{
		db:      db,
		results: make(chan RoundResult, ledgerBuffer),
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Record enqueues a round for async persistence (non-blocking)
func (l *Ledger) Record(r RoundResult) {
	select {
	case l.results <- r:
	default:
		log.Printf("ledger: queue full, dropping round %s", r.ID)
	}
}

// Close flushes pending rounds and stops the writer.
func (l *Ledger) Close() {
	close(l.stop)
	l.wg.Wait()
}

func (l *Ledger) writer() {
	defer l.wg.Done()

	batch := make([]RoundResult, 0, ledgerBatchSize)
	ticker := time.NewTicker(ledgerFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case r := <-l.results:
			batch = append(batch, r)
			if len(batch) >= ledgerBatchSize {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-l.stop:
			for {
				select {
				case r := <-l.results:
					batch = append(batch, r)
				default:
					if len(batch) > 0 {
						l.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (l *Ledger) flush(batch []RoundResult) {
	if l.db == nil || len(batch) == 0 {
		return
	}
	if err := l.db.InsertRounds(batch); err != nil {
		log.Printf("ledger: %v", err)
	}
}

// Recent returns the latest persisted rounds.
func (l *Ledger) Recent(limit int) ([]RoundResult, error) {
	if l.db == nil {
		return nil, nil
	}
	return l.db.RecentRounds(limit)
}

// RoundsHandler serves recent rounds as JSON, ?limit=N selects how many.
func (l *Ledger) RoundsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = min(n, recentRoundsMax)
	}
	rounds, err := l.Recent(limit)
	if err != nil {
		log.Printf("ledger: recent rounds: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rounds == nil {
		rounds = []RoundResult{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rounds)
}
