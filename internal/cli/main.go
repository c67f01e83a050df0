package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func Main() {
	if err := Execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Execute runs the command tree with args, writing to out and errOut.
func Execute(args []string, out, errOut io.Writer) error {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "splice",
		Short:         "Inspect virtual timeline layouts offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Float64("duration", 0, "Length of the original recording in seconds")
	root.PersistentFlags().StringArray("insert", nil, `Answer to splice in, "at:source:dur[,source:dur...]" (repeatable, applied in order)`)
	root.PersistentFlags().String("transcript", "", "JSON file with the original transcript lines")
	_ = root.MarkPersistentFlagRequired("duration")

	root.AddCommand(newLayoutCommand(), newLocateCommand())
	return root
}

func newLayoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the segment layout after all insertions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd)
		},
	}
	cmd.Flags().Bool("json", false, "Print segments and transcript as JSON")
	return cmd
}

func newLocateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve a virtual time to its segment, source offset, and transcript line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(cmd)
		},
	}
	cmd.Flags().Float64("at", 0, "Virtual time in seconds")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}
