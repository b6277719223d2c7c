// Package blosum reads substitution log-odds matrices in the NCBI text
// format. BLOSUM62 is embedded as the default matrix.
package blosum

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

//go:embed blosum62.txt
var blosum62 string

// Matrix holds pairwise substitution scores.
type Matrix struct {
	alphabet string
	scores   map[[2]byte]int
}

// Score returns the score of substituting a with b.
func (m *Matrix) Score(a, b byte) (int, bool) {
	s, ok := m.scores[[2]byte{a, b}]
	return s, ok
}

// Alphabet returns the matrix symbols in column order.
func (m *Matrix) Alphabet() string {
	return m.alphabet
}

// Read parses a matrix. Lines starting with '#' are comments; the first
// remaining line lists the column symbols and every following line holds a
// row symbol and one score per column.
func Read(r io.Reader) (*Matrix, error) {
	scanner := bufio.NewScanner(r)
	m := &Matrix{scores: make(map[[2]byte]int)}

	lineNum := 0
	var columns []string
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if columns == nil {
			for _, f := range fields {
				if len(f) != 1 {
					return nil, fmt.Errorf("line %d: invalid column symbol '%s'", lineNum, f)
				}
			}
			columns = fields
			m.alphabet = strings.Join(fields, "")
			continue
		}

		if len(fields) != len(columns)+1 || len(fields[0]) != 1 {
			return nil, fmt.Errorf("line %d: expected a row symbol and %d scores, got %d fields", lineNum, len(columns), len(fields))
		}
		row := fields[0][0]
		for i, f := range fields[1:] {
			score, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid score '%s': %w", lineNum, f, err)
			}
			m.scores[[2]byte{row, columns[i][0]}] = score
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading matrix: %w", err)
	}
	if columns == nil {
		return nil, fmt.Errorf("matrix has no header line")
	}
	return m, nil
}

var (
	defaultOnce   sync.Once
	defaultMatrix *Matrix
)

// Default returns the embedded BLOSUM62 matrix.
func Default() *Matrix {
	defaultOnce.Do(func() {
		m, err := Read(strings.NewReader(blosum62))
		if err != nil {
			panic(fmt.Sprintf("blosum: embedded BLOSUM62 is invalid: %v", err))
		}
		defaultMatrix = m
	})
	return defaultMatrix
}

// Load reads the matrix at path, or returns the default matrix when path is
// empty.
func Load(path string) (*Matrix, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix %s: %w", path, err)
	}
	return m, nil
}
