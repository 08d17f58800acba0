package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:          "cache",
	Short:        "Show build cache status",
	RunE:         runCache,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runCache(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.Cache

	state := "cold"
	switch {
	case c.Ephemeral():
		state = "disabled"
	case c.Warm():
		state = "warm"
	}

	invocations, files := c.Counts()

	rows := [][2]string{
		{"path", valueOr(c.Path(), "-")},
		{"state", state},
		{"compiler", fmt.Sprintf("%016x", c.Fingerprint())},
		{"invocations", strconv.Itoa(invocations)},
		{"tracked files", strconv.Itoa(files)},
	}

	for _, row := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s%s\n", row[0], row[1])
	}

	return nil
}
