// Package msp provides a streaming reader for MSP-style query spectra
// carrying precursor information, peaks and extracted sequence tags.
//
// An entry looks like:
//
//	Name: scan=42/2
//	Comment: Parent=429.21 Source=run01 Index=42 RT=1234.5 Tags=PTI@226.1@148.1@1@2.5
//	Num peaks: 2
//	100.1	200
//	226.1	1500	"b2"
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	source      string
	lineNum     int
	index       int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MSP reader. source names the run for entries
// that carry no Source field.
func NewReader(r io.Reader, source string) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
		source:  source,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum reads a single spectrum entry from the MSP file
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{
		ID:           core.SpectrumID{Source: r.source, Index: r.index},
		SourceFile:   r.source,
		SourceFormat: "msp",
		Peaks:        []core.Peak{},
	}

	var numPeaks int
	inPeaks := false
	peaksRead := 0
	named := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			if inPeaks {
				break
			}
			continue
		}

		if !inPeaks {
			// Parse header fields
			if strings.HasPrefix(line, "Name: ") {
				name := strings.TrimPrefix(line, "Name: ")
				if err := r.parseName(spec, name); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
				named = true
			} else if strings.HasPrefix(line, "MW: ") {
				mw, err := strconv.ParseFloat(strings.TrimPrefix(line, "MW: "), 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid MW: %w", r.lineNum, err)
				}
				spec.NeutralMass = mw
			} else if strings.HasPrefix(line, "Comment: ") {
				comment := strings.TrimPrefix(line, "Comment: ")
				if err := r.parseComment(spec, comment); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			} else if strings.HasPrefix(line, "Num peaks: ") {
				numPeaksStr := strings.TrimPrefix(line, "Num peaks: ")
				n, err := strconv.Atoi(numPeaksStr)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					break
				}
			}
		} else {
			// Parse peak line
			peak, err := r.parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			peaksRead++

			// Check if we've read all peaks
			if peaksRead >= numPeaks {
				break
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if !named {
		return nil, io.EOF
	}
	if inPeaks && peaksRead < numPeaks {
		return nil, fmt.Errorf("spectrum %s: expected %d peaks, read %d", spec.Name(), numPeaks, peaksRead)
	}

	if spec.NeutralMass == 0 && spec.PrecursorMZ > 0 && spec.ID.Charge > 0 {
		spec.NeutralMass = core.NeutralMassFromMZ(spec.PrecursorMZ, spec.ID.Charge)
	}
	r.index++
	return spec, nil
}

// parseName extracts the native ID and charge from Name field (format: "ID/CHARGE")
func (r *Reader) parseName(spec *core.Spectrum, name string) error {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return fmt.Errorf("invalid name format '%s', expected 'ID/CHARGE'", name)
	}

	charge, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.ID.NativeID = name[:idx]
	spec.ID.Charge = charge
	spec.Title = name

	return nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(spec *core.Spectrum, comment string) error {
	// Comment format: key=value key=value...
	// Example: Parent=429.21 Source=run01 Index=42 RT=1234.5 Tags=PTI@226.1@148.1@1,TID@...

	fields := strings.Fields(comment)
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			mz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid Parent '%s': %w", value, err)
			}
			spec.PrecursorMZ = mz

		case "Source":
			spec.ID.Source = value
			spec.SourceFile = value

		case "Index":
			index, err := strconv.Atoi(value)
			if err == nil {
				spec.ID.Index = index
			}

		case "iRT", "RT", "RetentionTime":
			rt, err := strconv.ParseFloat(value, 64)
			if err == nil {
				spec.RetentionTime = &rt
			}

		case "Tags":
			tags, err := ParseTags(value)
			if err != nil {
				return err
			}
			spec.Tags = append(spec.Tags, tags...)
		}
	}

	return nil
}

// ParseTags parses comma-separated tags in format
// "TAG@nTerminusMass@cTerminusMass@charge[@score]".
func ParseTags(value string) ([]core.TagInfo, error) {
	var tags []core.TagInfo
	for _, item := range strings.Split(value, ",") {
		if item == "" {
			continue
		}
		parts := strings.Split(item, "@")
		if len(parts) < 4 || len(parts) > 5 {
			return nil, fmt.Errorf("invalid tag '%s', expected TAG@N@C@CHARGE[@SCORE]", item)
		}

		tag := core.TagInfo{Tag: strings.ToUpper(parts[0])}
		var err error
		if tag.NTerminusMass, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return nil, fmt.Errorf("invalid N-terminal mass in tag '%s': %w", item, err)
		}
		if tag.CTerminusMass, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return nil, fmt.Errorf("invalid C-terminal mass in tag '%s': %w", item, err)
		}
		if tag.Charge, err = strconv.Atoi(parts[3]); err != nil {
			return nil, fmt.Errorf("invalid charge in tag '%s': %w", item, err)
		}
		if len(parts) == 5 {
			if tag.Score, err = strconv.ParseFloat(parts[4], 64); err != nil {
				return nil, fmt.Errorf("invalid score in tag '%s': %w", item, err)
			}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
func (r *Reader) parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{
		MZ:        mz,
		Intensity: intensity,
	}

	// Parse annotation if present (third field, may be quoted)
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}

	return peak, nil
}
