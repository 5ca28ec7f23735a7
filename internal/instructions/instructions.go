// pattern: Functional Core

package instructions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
)

var (
	ErrNoLabNumber = errors.New("no lab number found")
	ErrNoParts     = errors.New("no parts found")
)

var (
	// "Lab 5", "lab assignment 5", "COMS W3157 Lab 5"
	labRe = regexp.MustCompile(`(?i)\blab\s*(?:assignment\s*)?#?\s*(\d+)\b`)
	// "Part 1", "  part 2:", "PART 3 -"
	partRe = regexp.MustCompile(`(?i)^\s*part\s*#?\s*(\d+)\b`)
)

// Instructions is what labkit needs from an instructions file.
type Instructions struct {
	LabNumber   int
	PartNumbers []int
}

// ParseError wraps a parse failure with the source it came from.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing instructions %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile parses the instructions file at path.
func ParseFile(path string) (Instructions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Instructions{}, &ParseError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	ins, err := parse(f)
	if err != nil {
		return Instructions{}, &ParseError{Source: path, Err: err}
	}
	return ins, nil
}

// Parse reads instructions text. The lab number is the first "Lab N"
// mention; parts are lines that start with "Part K", de-duplicated in the
// order they first appear.
func Parse(r io.Reader) (Instructions, error) {
	ins, err := parse(r)
	if err != nil {
		return Instructions{}, &ParseError{Source: "<input>", Err: err}
	}
	return ins, nil
}

func parse(r io.Reader) (Instructions, error) {
	var ins Instructions
	seen := make(map[int]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if ins.LabNumber == 0 {
			if m := labRe.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
					ins.LabNumber = n
				}
			}
		}

		if m := partRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 || seen[n] {
				continue
			}
			seen[n] = true
			ins.PartNumbers = append(ins.PartNumbers, n)
		}
	}
	if err := scanner.Err(); err != nil {
		return Instructions{}, err
	}

	if ins.LabNumber == 0 {
		return Instructions{}, ErrNoLabNumber
	}
	if len(ins.PartNumbers) == 0 {
		return Instructions{}, ErrNoParts
	}
	return ins, nil
}
