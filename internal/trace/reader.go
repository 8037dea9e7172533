package trace

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReadDir loads every step file found under dir (recursively) and returns
// the steps sorted by step number. Only files named <integer>.json are
// considered; anything else in the tree is ignored rather than treated as an
// error, since the trace root may be shared with unrelated artifacts.
//
// A step file that exists but fails to decode is surfaced as an error, not
// skipped.
func ReadDir(dir string) ([]Step, error) {
	var steps []Step
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isStepFile(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read step file %s: %w", path, err)
		}
		var step Step
		if err := json.Unmarshal(data, &step); err != nil {
			return fmt.Errorf("failed to decode step file %s: %w", path, err)
		}
		steps = append(steps, step)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})
	return steps, nil
}

// isStepFile reports whether name looks like a step file: "<n>.json" with a
// positive integer n.
func isStepFile(name string) bool {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(base)
	return err == nil && n > 0
}
