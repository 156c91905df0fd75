package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nst-guide/fstopo/internal/grid"
)

var quadsCmd = &cobra.Command{
	Use:   "quads",
	Short: "List candidate quad IDs for the given geometry",
	Long: `Prints the 9-digit IDs of every 7.5-minute quad cell intersecting the
area of interest, one per line, without touching the network. The list is
the candidate set the download command would probe; whether each quad is
actually published is only known after probing.`,
	RunE: runQuads,
}

func init() {
	addGeometryFlags(quadsCmd)
	rootCmd.AddCommand(quadsCmd)
}

func runQuads(cmd *cobra.Command, _ []string) error {
	a, err := resolveAOI(cmd)
	if err != nil {
		return err
	}

	cells, err := grid.Cells(a)
	if err != nil {
		return err
	}

	for _, c := range cells {
		fmt.Println(c.ID())
	}
	return nil
}
