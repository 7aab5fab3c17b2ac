// Package sniffer provides automatic detection of line-item table layouts.
// It identifies delimiters, header rows and column roles, and generates
// fingerprints that identify a supplier's document template.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

// maxHeaderSearchRows bounds the header search to the top of the document.
const maxHeaderSearchRows = 30

// FileConfig holds the detected configuration for a CSV/TSV file
type FileConfig struct {
	Delimiter   rune       // The field delimiter (';', ',', '\t', '|')
	SkipLines   int        // Number of preamble lines before headers
	Headers     []string   // Detected header names
	Columns     ColumnSuggestions
	Fingerprint string     // SHA256 hash of normalized headers
	SampleRows  [][]string // First few data rows for preview
}

// DetectOptions allows callers to override header row or delimiter detection.
type DetectOptions struct {
	// HeaderRowIndex is a 0-based index for the header row. Set to -1 to auto-detect.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find line-item headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// DetectConfig analyzes a CSV/TSV file and returns its configuration
func DetectConfig(data []byte) (*FileConfig, error) {
	return DetectConfigWithOptions(data, nil)
}

// DetectConfigWithOptions analyzes a CSV/TSV file with optional overrides.
func DetectConfigWithOptions(data []byte, opts *DetectOptions) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")

	var (
		delimiter rune
		skipLines int
		err       error
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		if opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		} else {
			line := cleanLine(lines[skipLines], skipLines == 0)
			delimiter, _ = detectDelimiter(line)
			if delimiter == 0 {
				return nil, ErrInvalidDelimiter
			}
		}
	} else {
		delimiter, skipLines, err = findHeaderLine(lines)
		if err != nil {
			return nil, err
		}
		if opts != nil && opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		}
	}

	headers, err := splitLine(cleanLine(lines[skipLines], skipLines == 0), delimiter)
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Columns:     *SuggestColumns(headers),
		Fingerprint: generateFingerprint(headers),
		SampleRows:  getSampleRows(data, delimiter, skipLines+1, 5),
	}, nil
}

// FindHeaderRow returns the index of the first row that looks like a line-item
// header, or -1. Used for already-tabular sources such as spreadsheets and PDFs.
func FindHeaderRow(rows [][]string) int {
	for i, row := range rows {
		if i >= maxHeaderSearchRows {
			break
		}
		if SuggestColumns(row).IsLineItemHeader() {
			return i
		}
	}
	return -1
}

// findHeaderLine locates the header line of delimited text and its delimiter.
// Lines whose cells describe a line-item table win; otherwise the line with the
// most delimiters is used.
func findHeaderLine(lines []string) (rune, int, error) {
	fallbackIndex := -1
	fallbackDelimiter := rune(0)
	fallbackCount := 0

	for i, line := range lines {
		if i >= maxHeaderSearchRows {
			break
		}

		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		cells, err := splitLine(line, delimiter)
		if err == nil && SuggestColumns(cells).IsLineItemHeader() {
			return delimiter, i, nil
		}

		if count > fallbackCount {
			fallbackCount = count
			fallbackDelimiter = delimiter
			fallbackIndex = i
		}
	}

	if fallbackIndex >= 0 && fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIndex, nil
	}

	return 0, 0, ErrNoHeadersFound
}

func splitLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	return reader.Read()
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// generateFingerprint creates a unique hash from header names
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// SkipLines returns data with the first n physical lines removed.
func SkipLines(data []byte, n int) []byte {
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}
	return data
}

// getSampleRows returns the first N data rows after the header
func getSampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(SkipLines(data, startLine)))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
	}

	return rows
}
