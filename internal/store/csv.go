// Package store persists pools as CSV files and the draw history in SQLite.
package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xtding233/fairwheel/internal/pool"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var ErrNoEntries = errors.New("file contains no valid names")

// LoadError reports a pool file that could not be read or holds no entries.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a failed write. The previous file is left in place.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string { return fmt.Sprintf("save %s: %v", e.Path, e.Err) }
func (e *SaveError) Unwrap() error { return e.Err }

// CounterError is a malformed counter cell. The row is kept with counter 0.
type CounterError struct {
	Line  int
	Value string
	Err   error
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("line %d: counter %q: %v", e.Line, e.Value, e.Err)
}
func (e *CounterError) Unwrap() error { return e.Err }

// CSVStore reads and writes a pool file: a header row, then one entry per
// row with the name in column 1 and an optional counter in column 2.
// Semicolon and comma separators are both accepted on load; saves always
// use semicolons with a UTF-8 BOM so spreadsheet programs open it cleanly.
type CSVStore struct {
	Path string
	Log  zerolog.Logger

	mu     sync.Mutex
	digest [sha256.Size]byte // content last read or written by us
}

func NewCSVStore(path string, log zerolog.Logger) *CSVStore {
	return &CSVStore{Path: path, Log: log.With().Str("component", "csvstore").Logger()}
}

// Load reads the file. Rows with a blank name are skipped; a malformed
// counter is logged and read as 0.
func (s *CSVStore) Load() ([]pool.Entry, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	entries, issues, err := ParseCSV(bytes.NewReader(b))
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	for _, issue := range issues {
		s.Log.Warn().Err(issue).Str("path", s.Path).Msg("malformed counter, using 0")
	}
	s.remember(b)
	s.Log.Info().Int("entries", len(entries)).Str("path", s.Path).Msg("pool loaded")
	return entries, nil
}

// LoadPool reads the file into a pool.
func (s *CSVStore) LoadPool() (*pool.Pool, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	p, err := pool.New(entries)
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	return p, nil
}

// Save writes p to a temporary file next to Path and renames it over the
// existing file, so a failed write never corrupts the last good one.
func (s *CSVStore) Save(p *pool.Pool) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, p.Entries()); err != nil {
		return &SaveError{Path: s.Path, Err: err}
	}
	if err := writeAtomic(s.Path, buf.Bytes()); err != nil {
		return &SaveError{Path: s.Path, Err: err}
	}
	s.remember(buf.Bytes())
	s.Log.Debug().Str("path", s.Path).Int("entries", p.Len()).Msg("pool saved")
	return nil
}

// ChangedOnDisk reports whether the file differs from what this store last
// read or wrote. Watchers use it to ignore our own saves.
func (s *CSVStore) ChangedOnDisk() (bool, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum != s.digest, nil
}

func (s *CSVStore) remember(b []byte) {
	sum := sha256.Sum256(b)
	s.mu.Lock()
	s.digest = sum
	s.mu.Unlock()
}

// ParseCSV decodes a pool file. It returns the entries, any malformed
// counters (as *CounterError), and an error when the input is unreadable
// or yields no entries.
func ParseCSV(r io.Reader) ([]pool.Entry, []error, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	header, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && header != "") {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoEntries
		}
		return nil, nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(header)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		entries []pool.Entry
		issues  []error
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSpace(rec[0])
		if pool.IsBlankName(name) {
			continue
		}
		counter := 0
		if len(rec) > 1 {
			line, _ := cr.FieldPos(1)
			c, err := ParseCounter(rec[1])
			if err != nil {
				// header is line 1 of the file, the reader starts after it
				issues = append(issues, &CounterError{Line: line + 1, Value: rec[1], Err: err})
			}
			counter = c
		}
		entries = append(entries, pool.Entry{Name: name, Counter: counter})
	}
	if len(entries) == 0 {
		return nil, issues, ErrNoEntries
	}
	return entries, issues, nil
}

// ParseCounter reads a counter cell. Empty means 0. Spreadsheet exports
// sometimes write integral floats ("3.0"), which are accepted.
func ParseCounter(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, errors.New("not an integer")
	}
	return int(f), nil
}

// WriteCSV encodes entries in the save format.
func WriteCSV(w io.Writer, entries []pool.Entry) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = true
	if err := cw.Write([]string{"Name", "Counter"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Name, strconv.Itoa(e.Counter)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func detectDelimiter(header string) rune {
	if strings.Count(header, ";") >= strings.Count(header, ",") {
		return ';'
	}
	return ','
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
