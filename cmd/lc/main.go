// Command lc is the CLI front end for the logic-condition compiler and
// decompiler: compile source to "logic ..." command lines, decompile a
// dump of those lines back to source, or disassemble them to a flat
// mnemonic listing. Subcommand shape follows cmd/psil/main.go and
// cmd/micro-psil/main.go's file-or-stdin dispatch, generalized from
// stdlib flag to cobra.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sensei-hacker/inav-configurator/pkg/diag"
	"github.com/sensei-hacker/inav-configurator/pkg/obslog"
	"github.com/sensei-hacker/inav-configurator/pkg/rules"
	"github.com/sensei-hacker/inav-configurator/pkg/toolchain"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "lc",
		Short: "Compile and decompile logic-condition rule programs",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable stage-tracing log output")

	root.AddCommand(compileCmd(), decompileCmd(), disasmCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newToolchain() *toolchain.Toolchain {
	if verbose {
		return toolchain.New(obslog.New(true))
	}
	return toolchain.New(obslog.Noop())
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile source to logic-condition command lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readInput(args)
			if err != nil {
				return err
			}
			result := newToolchain().Compile(source)
			printDiagnostics(result.Warnings)
			if result.Err != nil {
				color.Red("error: %v\n", result.Err)
				os.Exit(1)
			}
			for _, line := range result.Commands {
				fmt.Println(line)
			}
			color.New(color.FgHiBlack).Fprintf(os.Stderr,
				"handlers=%d conditions=%d actions=%d slots_used=%d gvars_used=%d\n",
				result.Stats.Handlers, result.Stats.Conditions, result.Stats.Actions,
				result.Stats.SlotsUsed, result.Stats.GVarsUsed)
			return nil
		},
	}
}

func decompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompile [file]",
		Short: "Decompile logic-condition command lines back to source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}
			result := newToolchain().DecompileText(text)
			printDiagnostics(result.Warnings)
			if result.Err != nil {
				color.Red("error: %v\n", result.Err)
				os.Exit(1)
			}
			fmt.Println(result.Code)
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "total=%d enabled=%d groups=%d\n",
				result.Stats.Total, result.Stats.Enabled, result.Stats.Groups)
			return nil
		},
	}
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm [file]",
		Short: "Render a flat mnemonic dump of logic-condition command lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}
			instructions, err := rules.DecodeAll(text)
			if err != nil {
				color.Red("error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(rules.Disassemble(instructions))
			return nil
		},
	}
}

func readInput(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func printDiagnostics(warnings []diag.Diagnostic) {
	for _, w := range warnings {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %s\n", w.String())
	}
}
