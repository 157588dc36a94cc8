package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

const statsFile = "stats.json"

// record is the on-disk row shared by the registry and opt-out files.
type record struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// recordCodec converts between file contents and records.
type recordCodec interface {
	decode(data []byte) ([]record, error)
	encode(recs []record) ([]byte, error)
}

// fileStore keeps registrants, opt-outs and stats in three files under dir.
// Every call holds mu for its whole read-modify-write, which serializes
// callers within one process only.
type fileStore struct {
	mu           sync.Mutex
	codec        recordCodec
	registryPath string
	optOutsPath  string
	statsPath    string
}

// NewJSONStore stores emails.json, opt-outs.json and stats.json under dir.
func NewJSONStore(dir string) (Store, error) {
	s, err := newFileStore(dir, "emails.json", "opt-outs.json", jsonCodec{})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewCSVStore stores waitlist.csv, opt-outs.csv and stats.json under dir.
func NewCSVStore(dir string) (Store, error) {
	s, err := newFileStore(dir, "waitlist.csv", "opt-outs.csv", csvCodec{})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newFileStore(dir, registryName, optOutsName string, codec recordCodec) (*fileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &fileStore{
		codec:        codec,
		registryPath: filepath.Join(dir, registryName),
		optOutsPath:  filepath.Join(dir, optOutsName),
		statsPath:    filepath.Join(dir, statsFile),
	}, nil
}

func (s *fileStore) ListRegistrants(ctx context.Context) ([]domain.Registrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.registryPath)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Registrant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.Registrant{Name: rec.Name, Email: rec.Email, JoinedAt: rec.Date})
	}
	return out, nil
}

func (s *fileStore) FindRegistrant(ctx context.Context, email string) (*domain.Registrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.registryPath)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.Email == email {
			return &domain.Registrant{Name: rec.Name, Email: rec.Email, JoinedAt: rec.Date}, nil
		}
	}
	return nil, nil
}

func (s *fileStore) CountRegistrants(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.registryPath)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *fileStore) InsertRegistrant(ctx context.Context, r domain.Registrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.registryPath)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.Email == r.Email {
			return ErrDuplicateEmail
		}
	}
	recs = append(recs, record{Name: r.Name, Email: r.Email, Date: r.JoinedAt.UTC()})
	return s.writeRecords(s.registryPath, recs)
}

func (s *fileStore) DeleteRegistrant(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.registryPath)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, rec := range recs {
		if rec.Email != email {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	return s.writeRecords(s.registryPath, kept)
}

func (s *fileStore) ListOptOuts(ctx context.Context) ([]domain.OptOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.optOutsPath)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OptOut, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.OptOut{Name: rec.Name, Email: rec.Email, LeftAt: rec.Date})
	}
	return out, nil
}

func (s *fileStore) AppendOptOut(ctx context.Context, o domain.OptOut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.optOutsPath)
	if err != nil {
		return err
	}
	recs = append(recs, record{Name: o.Name, Email: o.Email, Date: o.LeftAt.UTC()})
	return s.writeRecords(s.optOutsPath, recs)
}

func (s *fileStore) RemoveOptOuts(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords(s.optOutsPath)
	if err != nil {
		return 0, err
	}
	kept := recs[:0]
	for _, rec := range recs {
		if rec.Email != email {
			kept = append(kept, rec)
		}
	}
	removed := len(recs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.writeRecords(s.optOutsPath, kept)
}

func (s *fileStore) LoadStats(ctx context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readStats()
}

func (s *fileStore) SaveStats(ctx context.Context, st domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeStats(st)
}

// IncrementSurveyTaps starts from zero when the stats file is missing or corrupt.
func (s *fileStore) IncrementSurveyTaps(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readStats()
	if err != nil && !errors.Is(err, ErrCorruptStats) {
		return 0, err
	}
	if err != nil {
		st = domain.Stats{}
		if n, cerr := s.countLocked(); cerr == nil {
			st.Signups = n
		}
	}
	st.SurveyTaps++
	if err := s.writeStats(st); err != nil {
		return 0, err
	}
	return st.SurveyTaps, nil
}

func (s *fileStore) Close() error {
	return nil
}

func (s *fileStore) countLocked() (int, error) {
	recs, err := s.readRecords(s.registryPath)
	return len(recs), err
}

func (s *fileStore) readRecords(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	recs, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

func (s *fileStore) writeRecords(path string, recs []record) error {
	data, err := s.codec.encode(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func (s *fileStore) readStats() (domain.Stats, error) {
	var st domain.Stats
	data, err := os.ReadFile(s.statsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read %s: %w", statsFile, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.Stats{}, fmt.Errorf("%w: %v", ErrCorruptStats, err)
	}
	if st.Signups < 0 || st.SurveyTaps < 0 {
		return domain.Stats{}, fmt.Errorf("%w: negative counter", ErrCorruptStats)
	}
	return st, nil
}

func (s *fileStore) writeStats(st domain.Stats) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.statsPath, data)
}

// writeFileAtomic replaces path via a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
