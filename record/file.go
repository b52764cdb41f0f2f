//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package record

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxLineLength defines the maximum length of an input line
// including any trailing whitespace.
const MaxLineLength = 1024 * 1024

// Read reads records from the reader, one record per line. The
// function fails on the first malformed line and returns no records
// in that case.
func Read(in io.Reader) ([]Record, error) {
	var result []Record

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), MaxLineLength)

	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		r, err := DecodeLine(line)
		if err != nil {
			if de, ok := err.(*DecodeError); ok {
				de.Line = lineno
			}
			return nil, err
		}
		result = append(result, r)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &DecodeError{
				Line:   lineno + 1,
				Reason: "line too long",
			}
		}
		return nil, err
	}
	return result, nil
}

// Load reads records from the named file.
func Load(file string) ([]Record, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Write writes the records to the writer, one encoded record per
// line.
func Write(out io.Writer, records []Record) error {
	w := bufio.NewWriter(out)
	for _, r := range records {
		if _, err := w.WriteString(Encode(r)); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Store writes the records to the named file. The records are first
// written to a temporary file in the same directory which is then
// renamed to file so a failed store does not leave a partial file
// behind.
func Store(file string, records []Record) error {
	f, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = Write(f, records)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0644)
	}
	if err == nil {
		err = os.Rename(tmp, file)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
