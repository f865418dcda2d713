package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medicenter/medicenter/internal/domain/triage"
)

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect decision tree files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a decision tree file; the built-in tree when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args)
			if err != nil {
				color.New(color.FgRed).Fprintln(os.Stderr, "invalid decision tree:")
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintf(os.Stderr, "  - %s\n", line)
				}
				return err
			}
			color.New(color.FgGreen).Printf("ok: %d nodes, depth %d, %d diagnoses\n", tree.Len(), tree.Depth(), len(tree.Paths()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [file]",
		Short: "Print every answer path with its diagnosis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args)
			if err != nil {
				return err
			}
			printPaths(cmd.OutOrStdout(), tree)
			return nil
		},
	})

	return cmd
}

func loadTree(args []string) (*triage.Tree, error) {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	table, err := triage.LoadTableFile(path)
	if err != nil {
		return nil, err
	}
	return triage.NewTree(table)
}

func printPaths(w io.Writer, tree *triage.Tree) {
	for _, p := range tree.Paths() {
		answers := make([]string, len(p.Answers))
		for i, a := range p.Answers {
			answers[i] = a.String()
		}
		severityColor(p.Result.Severity).Fprintf(w, "[%s] ", p.Result.Severity)
		fmt.Fprintf(w, "%s -> %s\n", strings.Join(answers, ","), p.Result.Diagnosis)
	}
}

func severityColor(s triage.Severity) *color.Color {
	switch s {
	case triage.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case triage.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
