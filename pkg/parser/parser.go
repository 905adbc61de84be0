package parser

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lcdc/cutlog/pkg/cut"
)

// maxLineSize is the longest line kept. Longer lines are skipped up to the
// next newline and reported as a parse error.
const maxLineSize = 1024 * 1024

// FileSource reads one log file and yields its records.
// Lines that fail to parse are returned as *ParseError values so the caller
// can collect them and keep going. The file's SHA-256 is computed while
// reading and is available from Checksum once Next has returned io.EOF.
type FileSource struct {
	path   string
	name   string
	layout *Layout

	file    *os.File
	reader  *bufio.Reader
	hash    hash.Hash
	lineNum int
	done    bool
}

// OpenFile opens a log file for reading with the given layout.
func OpenFile(path string, layout *Layout) (*FileSource, error) {
	if layout == nil {
		layout = &Standard
	}
	f, err := os.Open(path) // #nosec G304 -- paths come from the configured input directory
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	h := sha256.New()

	return &FileSource{
		path:   path,
		name:   filepath.Base(path),
		layout: layout,
		file:   f,
		reader: bufio.NewReaderSize(io.TeeReader(f, h), 64*1024),
		hash:   h,
	}, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed up to its newline and returned as nil with tooLong
// set, so the checksum still covers it.
func (s *FileSource) readLine() (line []byte, tooLong bool, err error) {
	read := false
	for {
		chunk, rerr := s.reader.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > maxLineSize+2 {
				tooLong, line = true, nil
			}
		}

		switch {
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		case rerr == io.EOF:
			if !read {
				return nil, false, io.EOF
			}
		case rerr != nil:
			return nil, false, rerr
		}

		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) > maxLineSize {
			tooLong, line = true, nil
		}
		return line, tooLong, nil
	}
}

// cleanLine drops NUL bytes and invalid UTF-8 sequences, which the
// PostgreSQL text columns reject.
func cleanLine(raw []byte) string {
	line := strings.ToValidUTF8(string(raw), "")
	return strings.ReplaceAll(line, "\x00", "")
}

// Next returns the next record. A line that cannot be parsed yields a
// *ParseError; blank lines are skipped. Returns io.EOF at end of file.
func (s *FileSource) Next(ctx context.Context) (*cut.Record, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.done {
			return nil, io.EOF
		}

		raw, tooLong, err := s.readLine()
		if err == io.EOF {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}

		s.lineNum++
		if tooLong {
			return nil, &ParseError{
				Source:  s.name,
				LineNum: s.lineNum,
				Reason:  fmt.Sprintf("line exceeds %d bytes", maxLineSize),
			}
		}
		line := cleanLine(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := s.layout.Parse(line)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Source = s.name
				perr.LineNum = s.lineNum
			}
			return nil, err
		}

		rec.SourceFile = s.name
		rec.SourceLine = s.lineNum
		return rec, nil
	}
}

// Checksum returns the hex SHA-256 of the bytes read so far.
func (s *FileSource) Checksum() string {
	return hex.EncodeToString(s.hash.Sum(nil))
}

// Lines returns the number of lines read so far, blank lines included.
func (s *FileSource) Lines() int {
	return s.lineNum
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// FileResult is the outcome of reading a whole log file.
type FileResult struct {
	Path     string
	Name     string
	Layout   string
	Checksum string
	Lines    int
	Records  []*cut.Record
	Errors   []*ParseError
}

// ReadFile reads and parses a whole file. Parse failures are collected per
// line; only I/O errors and cancellation abort the read. Every returned
// record carries the file checksum.
func ReadFile(ctx context.Context, path string, layout *Layout) (*FileResult, error) {
	src, err := OpenFile(path, layout)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	res := &FileResult{
		Path:   path,
		Name:   src.name,
		Layout: src.layout.Name,
	}
	for {
		rec, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				res.Errors = append(res.Errors, perr)
				continue
			}
			return nil, err
		}
		res.Records = append(res.Records, rec)
	}

	res.Checksum = src.Checksum()
	res.Lines = src.Lines()
	for _, rec := range res.Records {
		rec.SourceChecksum = res.Checksum
	}
	return res, nil
}
