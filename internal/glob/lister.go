package glob

import "fmt"

// Lister enumerates the tracked files of a working tree.
type Lister interface {
	TrackedFiles() ([]string, error)
}

// Select returns the tracked files accepted by rules, in listing order.
func Select(lister Lister, rules *RuleSet) ([]string, error) {
	files, err := lister.TrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}

	selected := make([]string, 0, len(files))
	for _, f := range files {
		if rules.IsSelected(f) {
			selected = append(selected, f)
		}
	}
	return selected, nil
}
