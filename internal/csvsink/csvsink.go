// Package csvsink persists observation rows to a CSV file.
package csvsink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mode selects how Write treats an existing file.
type Mode string

const (
	Overwrite       Mode = "overwrite"
	Append          Mode = "append"
	AppendIfChanged Mode = "append-if-changed"
)

// Modes lists the accepted mode names; "append-with-header-if-missing" is
// accepted by ParseMode as an alias of Append.
var Modes = []Mode{Overwrite, Append, AppendIfChanged}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Overwrite, Append, AppendIfChanged:
		return m, nil
	case "append-with-header-if-missing":
		return Append, nil
	default:
		names := make([]string, len(Modes))
		for i, m := range Modes {
			names[i] = string(m)
		}
		return "", fmt.Errorf("unknown output mode %q, use: %s", s, strings.Join(names, ", "))
	}
}

// Sink writes to Path. The file is always replaced by rename, so readers
// never see a truncated or half-written file.
type Sink struct {
	Path string
	Mode Mode
}

// Write persists row under header. It reports false without touching the file
// when Mode is AppendIfChanged and the last row carries the same values.
func (s Sink) Write(header, row []string) (bool, error) {
	if len(header) != len(row) {
		return false, fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
	}
	if len(header) == 0 {
		return false, errors.New("empty header")
	}

	var prefix []byte
	if s.Mode != Overwrite {
		existing, err := os.ReadFile(s.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("read %s: %w", s.Path, err)
		}
		oldHeader, last, err := headerAndLast(existing)
		switch {
		case err != nil:
			return false, fmt.Errorf("read %s: %w", s.Path, err)
		case oldHeader == nil:
			// empty or new file
		case !slices.Equal(oldHeader, header):
			log.Warn().Str("path", s.Path).Strs("old", oldHeader).Strs("new", header).Msg("header changed, rewriting file")
		default:
			if s.Mode == AppendIfChanged && last != nil && slices.Equal(last[1:], row[1:]) {
				log.Info().Str("path", s.Path).Msg("values unchanged, row skipped")
				return false, nil
			}
			prefix = existing
			if len(prefix) > 0 && prefix[len(prefix)-1] != '\n' {
				prefix = append(prefix, '\n')
			}
		}
	}

	var buf bytes.Buffer
	buf.Write(prefix)
	w := csv.NewWriter(&buf)
	if prefix == nil {
		if err := w.Write(header); err != nil {
			return false, err
		}
	}
	if err := w.Write(row); err != nil {
		return false, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, err
	}

	if err := replace(s.Path, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// headerAndLast returns the first and last records of data; both are nil for
// empty input, and last is nil when there is no data row.
func headerAndLast(data []byte) (header, last []string, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	for {
		rec, rerr := r.Read()
		if errors.Is(rerr, io.EOF) {
			return header, last, nil
		}
		if rerr != nil {
			return nil, nil, rerr
		}
		if header == nil {
			header = rec
			continue
		}
		last = rec
	}
}

func replace(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
