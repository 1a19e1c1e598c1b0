package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// DefaultMaxRecords bounds the list when no limit is configured.
	DefaultMaxRecords = 100

	timestampLayout = "2006-01-02 15:04:05"
)

// Record describes one finished review.
type Record struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path"`
	ClientRole    string `json:"client_role"`
	ContractType  string `json:"contract_type"`
	UserConcerns  string `json:"user_concerns"`
	ModelType     string `json:"model_type"`
	ModelName     string `json:"model_name"`
	Status        string `json:"status"`
	ReportPath    string `json:"report_path,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ReviewSummary string `json:"review_summary,omitempty"`
}

// Stats summarises the stored records.
type Stats struct {
	Total        int            `json:"total"`
	Success      int            `json:"success"`
	Error        int            `json:"error"`
	ModelStats   map[string]int `json:"model_stats"`
	LatestRecord string         `json:"latest_record,omitempty"`
}

// Manager keeps a bounded, newest-first list of records in a JSON file.
type Manager struct {
	mu      sync.Mutex
	path    string
	max     int
	records []Record
	log     *slog.Logger
	now     func() time.Time
}

// Open loads the list at path. A missing file starts an empty list; an
// unreadable or corrupt one is logged and also starts empty.
func Open(path string, maxRecords int, log *slog.Logger) *Manager {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	m := &Manager{path: path, max: maxRecords, log: log, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("history file not found, starting empty", "path", path)
	case err != nil:
		log.Error("read history failed", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &m.records); err != nil {
			log.Error("history file corrupt, starting empty", "path", path, "error", err)
			m.records = nil
		}
	}
	if len(m.records) > m.max {
		m.records = m.records[:m.max]
	}
	return m
}

// Add stores rec at the head of the list, assigning ID and Timestamp when empty.
func (m *Manager) Add(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = m.now().Format(timestampLayout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append([]Record{rec}, m.records...)
	if len(m.records) > m.max {
		m.records = m.records[:m.max]
	}
	if err := m.saveLocked(); err != nil {
		return rec, err
	}
	m.log.Info("history record added", "id", rec.ID, "file", rec.FileName, "status", rec.Status)
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (m *Manager) List(limit int) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, m.records[:n])
	return out
}

// Get returns the record with id.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Search matches keyword case-insensitively against file name, contract
// type and user concerns.
func (m *Manager) Search(keyword string) []Record {
	kw := strings.ToLower(keyword)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if strings.Contains(strings.ToLower(r.FileName), kw) ||
			strings.Contains(strings.ToLower(r.ContractType), kw) ||
			strings.Contains(strings.ToLower(r.UserConcerns), kw) {
			out = append(out, r)
		}
	}
	return out
}

// Delete removes the record with id and reports whether it existed.
func (m *Manager) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, m.saveLocked()
		}
	}
	return false, nil
}

// Clear removes every record.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return m.saveLocked()
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Total: len(m.records), ModelStats: make(map[string]int)}
	for _, r := range m.records {
		switch r.Status {
		case StatusSuccess:
			s.Success++
		case StatusError:
			s.Error++
		}
		s.ModelStats[r.ModelName]++
	}
	if len(m.records) > 0 {
		s.LatestRecord = m.records[0].Timestamp
	}
	return s
}

// saveLocked writes the list to a temp file and renames it over the target.
func (m *Manager) saveLocked() error {
	records := m.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Summary returns the first n characters of a report for ReviewSummary.
func Summary(report string, n int) string {
	r := []rune(strings.TrimSpace(report))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
