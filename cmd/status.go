package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/Norgate-AV/buildk/internal/build"
	"github.com/Norgate-AV/buildk/internal/cache"
)

func label(conclusion cache.Conclusion, err error) string {
	switch {
	case err != nil:
		return color.RedString("[failed]")
	case conclusion == cache.Cached:
		return color.CyanString("[cached]")
	default:
		return color.GreenString("[ok]")
	}
}

func missing() string {
	return color.YellowString("[missing]")
}

// printOutcome writes the status line of a step
func printOutcome(w io.Writer, o build.Outcome, err error) {
	fmt.Fprintf(w, "%s %s", label(o.Conclusion, err), o.Step)

	if n := len(o.Files); n > 0 {
		fmt.Fprintf(w, " (%d %s)", n, plural(n, "file"))
	}

	fmt.Fprintln(w)

	// Failed output is part of the error
	if err == nil && strings.TrimSpace(o.Stderr) != "" {
		fmt.Fprint(w, o.Stderr)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	return word + "s"
}

// relative shortens path for display, falling back to path itself
func relative(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}

	return path
}
