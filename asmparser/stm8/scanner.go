package stm8

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEndOfInput is returned by Next once every line has been consumed.
	ErrEndOfInput = errors.New("end of input")
	// ErrAtStart is returned by Back when no line has been consumed yet.
	ErrAtStart = errors.New("scanner at start")
)

// Scanner walks the lines of one file and can un-read a single line, so a
// unit parser can hand its terminating line back to the enclosing parser.
type Scanner struct {
	path  string
	lines []string
	pos   int
}

// NewScanner reads every line of r.
func NewScanner(path string, r io.Reader) (*Scanner, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return NewLineScanner(path, lines), nil
}

// NewLineScanner scans an in-memory line slice.
func NewLineScanner(path string, lines []string) *Scanner {
	return &Scanner{path: path, lines: lines}
}

// Next returns the next line and advances.
func (s *Scanner) Next() (string, error) {
	if s.pos >= len(s.lines) {
		return "", ErrEndOfInput
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

// Back moves the position back by one line.
func (s *Scanner) Back() error {
	if s.pos == 0 {
		return ErrAtStart
	}
	s.pos--
	return nil
}

// Line is the 1-indexed number of the line last returned by Next.
func (s *Scanner) Line() int {
	return s.pos
}

// Len is the number of lines in the file.
func (s *Scanner) Len() int {
	return len(s.lines)
}

// Path of the scanned file.
func (s *Scanner) Path() string {
	return s.path
}
