// pattern: Imperative Shell

package lab

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"labkit/internal/instructions"
)

var partDirRe = regexp.MustCompile(`^part(\d+)$`)

// FromInstructions reads the lab and part numbers from the instructions file
// at path and builds the lab. opts supplies everything else.
func FromInstructions(path string, opts Options, options ...Option) (*Lab, error) {
	ins, err := instructions.ParseFile(path)
	if err != nil {
		return nil, err
	}
	opts.Number = ins.LabNumber
	opts.PartNumbers = ins.PartNumbers
	opts.InstructionsPath = path
	return Build(opts, options...)
}

// Open describes a lab that already exists on disk. Unless opts names them,
// the parts are the part<K> directories found in the lab, in numeric order,
// and the instructions are the copy inside the lab.
func Open(number int, opts Options, options ...Option) (*Lab, error) {
	if number <= 0 {
		return nil, &ConfigError{Field: "number", Reason: "is required and must be positive"}
	}
	opts.Number = number
	opts = withDefaults(opts)
	dir := filepath.Join(opts.ParentDir, fmt.Sprintf("lab%d", number))

	if opts.InstructionsPath == "" {
		opts.InstructionsPath = filepath.Join(dir, InstructionsFileName(number))
	}
	if len(opts.PartNumbers) == 0 {
		parts, err := discoverParts(dir)
		if err != nil {
			return nil, err
		}
		opts.PartNumbers = parts
	}
	return Build(opts, options...)
}

func discoverParts(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("lab directory %s does not exist", dir)
		}
		return nil, err
	}

	var parts []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := partDirRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			parts = append(parts, n)
		}
	}
	slices.Sort(parts)
	return parts, nil
}
