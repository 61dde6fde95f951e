// Package common provides shared utilities across the application.
package common

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxTickerLength is the longest symbol accepted from a ticker list
const MaxTickerLength = 5

// NormalizeTicker trims and uppercases a symbol.
// Returns false for empty symbols and symbols longer than MaxTickerLength.
func NormalizeTicker(raw string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" || len(ticker) > MaxTickerLength {
		return "", false
	}
	return ticker, true
}

// tickerFile is the YAML ticker list layout
type tickerFile struct {
	Tickers []string `yaml:"tickers"`
}

// LoadTickers reads a ticker list.
// Supports formats:
//   - *.txt (or any other extension): one ticker per line
//   - *.yaml, *.yml: a "tickers" sequence
//
// Invalid entries are dropped and duplicates keep their first position.
func LoadTickers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tickers file %s: %w", path, err)
	}

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var file tickerFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse tickers file %s: %w", path, err)
		}
		raw = file.Tickers
	default:
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			raw = append(raw, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan tickers file %s: %w", path, err)
		}
	}

	return DedupeTickers(raw), nil
}

// DedupeTickers normalizes a list, dropping invalid and repeated symbols
func DedupeTickers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tickers := make([]string, 0, len(raw))
	for _, r := range raw {
		ticker, ok := NormalizeTicker(r)
		if !ok {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	return tickers
}
