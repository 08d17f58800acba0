package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the package index",
	Long:  `The package index records which repository served each downloaded package and when.`,
}

var indexListCmd = &cobra.Command{
	Use:          "list [namespace]",
	Short:        "List indexed packages",
	RunE:         runIndexList,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var indexClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Drop every index record",
	Long:         `Drop every record of the package index. Downloaded packages stay in the cache.`,
	RunE:         runIndexClear,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	indexCmd.AddCommand(indexListCmd, indexClearCmd)
}

func runIndexList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var namespace string
	if len(args) == 1 {
		namespace = args[0]
	}

	records, err := s.Indexed(namespace)
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "%s from %s at %s\n", rec.Coordinate, rec.Repository, rec.FetchedAt.Format(time.RFC3339))
	}

	return nil
}

func runIndexClear(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	count, err := s.ClearIndex()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", count, plural(count, "record"))

	return nil
}
