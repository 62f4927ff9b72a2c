package symbol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"quotelog/internal/provider"
)

// ReadLabels reads one token per line, validating each for asset.
// Blank lines and lines starting with '#' are ignored; duplicates keep the first
// occurrence. Malformed lines fail the read unless skipInvalid is set, in which
// case they are logged and dropped.
func ReadLabels(r io.Reader, asset provider.Asset, skipInvalid bool) ([]string, error) {
	var (
		out  []string
		seen = map[string]struct{}{}
		n    int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, err := validate(line, asset)
		if err != nil {
			if skipInvalid {
				log.Warn().Str("asset", string(asset)).Int("line", n).Str("token", line).Msg("skipping malformed input line")
				continue
			}
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if _, dup := seen[label]; dup {
			log.Debug().Str("label", label).Msg("dropping duplicate label")
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return out, nil
}

// LoadLabels reads labels from path. An empty path yields no labels; a missing
// file is an error.
func LoadLabels(path string, asset provider.Asset, skipInvalid bool) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s list %s: %w", asset, path, err)
		}
		return nil, err
	}
	defer f.Close()
	labels, err := ReadLabels(f, asset, skipInvalid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}

func validate(token string, asset provider.Asset) (string, error) {
	if asset == provider.Forex {
		l, _, _, err := ParsePair(token)
		return l, err
	}
	return NormalizeTicker(token)
}
