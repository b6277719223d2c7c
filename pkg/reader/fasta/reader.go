// Package fasta provides a streaming reader for FASTA protein databases
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Reader provides streaming access to FASTA files
type Reader struct {
	scanner     *bufio.Scanner
	decoyPrefix string
	lineNum     int
	pending     string // header line of the next entry
	current     *core.Protein
	err         error
}

// NewReader creates a new FASTA reader. Proteins whose name starts with
// decoyPrefix are marked as decoys.
func NewReader(r io.Reader, decoyPrefix string) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{
		scanner:     scanner,
		decoyPrefix: decoyPrefix,
	}
}

// Next advances to the next protein. Returns false when no more proteins or error.
func (r *Reader) Next() bool {
	r.current = nil

	protein, err := r.readProtein()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = protein
	return true
}

// Protein returns the current protein
func (r *Reader) Protein() *core.Protein {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readProtein() (*core.Protein, error) {
	header := r.pending
	r.pending = ""

	// Find the first header
	for header == "" && r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			return nil, fmt.Errorf("line %d: sequence data before the first header", r.lineNum)
		}
		header = line
	}
	if header == "" {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	protein := r.parseHeader(header)
	var seq strings.Builder
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			r.pending = line
			break
		}
		seq.WriteString(strings.ToUpper(strings.TrimRight(line, "*")))
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	protein.Sequence = seq.String()
	return protein, nil
}

// parseHeader splits ">name description" into its fields
func (r *Reader) parseHeader(header string) *core.Protein {
	header = strings.TrimPrefix(header, ">")
	name, description, _ := strings.Cut(header, " ")
	return &core.Protein{
		Name:        name,
		Description: strings.TrimSpace(description),
		Decoy:       r.decoyPrefix != "" && strings.HasPrefix(name, r.decoyPrefix),
	}
}

// ReadAll reads every protein of the FASTA file at path.
func ReadAll(path, decoyPrefix string) ([]core.Protein, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA file: %w", err)
	}
	defer f.Close()

	var proteins []core.Protein
	reader := NewReader(f, decoyPrefix)
	for reader.Next() {
		proteins = append(proteins, *reader.Protein())
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return proteins, nil
}
