package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spicery/refract-tokenizer/pkg/tokenizer"
)

func newLanguagesCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the registered languages and their aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(v)
			if err != nil {
				return err
			}
			return withOutput(cmd, v.GetString(outputFlag), func(w io.Writer) error {
				for _, name := range reg.Languages() {
					line := name
					if aliases := reg.Aliases(name); len(aliases) > 0 {
						line += " (" + strings.Join(aliases, ", ") + ")"
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newDumpCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <language>",
		Short: "Write the grammar of a language as a YAML grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(v)
			if err != nil {
				return err
			}
			out, err := tokenizer.DumpGrammar(reg, args[0])
			if err != nil {
				return err
			}
			return withOutput(cmd, v.GetString(outputFlag), func(w io.Writer) error {
				_, err := w.Write(out)
				return err
			})
		},
	}
}
