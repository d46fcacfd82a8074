package formatter

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// PathOptions selects the formatter binary.
type PathOptions struct {
	// Override is an explicit binary path; exclusive with Version.
	Override string
	// Version selects clang-format-<Version>.
	Version string
	// GitHubAction looks for versioned binaries under /clang-format, where
	// the action image installs them.
	GitHubAction bool
}

// PathError is returned when no usable formatter binary is found.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("clang-format not found: %v", e.Err)
	}
	return fmt.Sprintf("clang-format not found at %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

var (
	lookPath = exec.LookPath
	statFile = os.Stat
)

// ResolvePath returns the formatter binary chosen by opts.
func ResolvePath(opts PathOptions) (string, error) {
	if opts.Override != "" && opts.Version != "" {
		return "", errors.New("--clang-format-override and --clang-format-version are mutually exclusive")
	}

	var path string
	switch {
	case opts.Override != "":
		path = opts.Override
	case opts.GitHubAction:
		version := opts.Version
		if version == "" {
			version = "10"
		}
		path = "/clang-format/clang-format-" + version
	default:
		name := "clang-format"
		if opts.Version != "" {
			name += "-" + opts.Version
		}
		found, err := lookPath(name)
		if err != nil {
			return "", &PathError{Err: err}
		}
		path = found
	}

	info, err := statFile(path)
	if err != nil {
		return "", &PathError{Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &PathError{Path: path, Err: errors.New("is a directory")}
	}
	return path, nil
}
