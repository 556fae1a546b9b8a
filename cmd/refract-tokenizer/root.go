package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spicery/refract-tokenizer/pkg/languages"
	"github.com/spicery/refract-tokenizer/pkg/tokenizer"
)

const (
	languageFlag     = "language"
	inputFlag        = "input"
	outputFlag       = "output"
	formatFlag       = "format"
	grammarsFlag     = "grammars"
	matchTimeoutFlag = "match-timeout"
	debugFlag        = "debug"
	logJSONFlag      = "log-json"
	exit0Flag        = "exit0"
	spansFlag        = "spans"
	configFlag       = "config"

	formatTokens = "tokens"
	formatTree   = "tree"

	envPrefix = "REFRACT"
)

var version = "0.1.0"

const longUsage = `refract-tokenizer - A grammar-driven tokenizer and highlighter

Reads source text, splits it into tokens with the grammar of the chosen
language and writes them as JSON. With --format tokens (the default) one JSON
item is written per line: a string for unclassified text or an object for a
token. With --spans each line instead holds {"span": [line, col, endLine,
endCol], "item": ...}. With --format tree the highlighted element tree is written as a single
JSON document.

If tokenization fails, nothing is written. With --exit0 the command still
exits with code 0, but the output stays empty because a failed run leaves no
partial token list.

Every flag can also be set through a REFRACT_ environment variable
(REFRACT_LANGUAGE, REFRACT_MATCH_TIMEOUT, ...) or a --config YAML file.

Examples:
  refract-tokenizer --language javascript --input app.js
  echo "def foo end" | refract-tokenizer --language nutmeg
  refract-tokenizer --grammars ./grammars --language mylang --format tree
  refract-tokenizer languages
  refract-tokenizer dump css`

// NewRootCommand returns the refract-tokenizer command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "refract-tokenizer",
		Short:         "Tokenize source text with YAML grammars",
		Long:          longUsage,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenize(cmd, v)
		},
	}

	cmd.PersistentFlags().String(grammarsFlag, "", "Directory of extra YAML grammar files")
	cmd.PersistentFlags().Duration(matchTimeoutFlag, 0, "Timeout for a single pattern match (0 for none)")
	cmd.PersistentFlags().Bool(debugFlag, false, "Debug logging")
	cmd.PersistentFlags().Bool(logJSONFlag, false, "Log as JSON")
	cmd.PersistentFlags().String(configFlag, "", "YAML config file")
	cmd.PersistentFlags().String(outputFlag, "", "Output file (defaults to stdout)")

	cmd.Flags().StringP(languageFlag, "l", "nutmeg", "Language to tokenize")
	cmd.Flags().String(inputFlag, "", "Input file (defaults to stdin)")
	cmd.Flags().String(formatFlag, formatTokens, "Output format (tokens|tree)")
	cmd.Flags().Bool(exit0Flag, false, "Exit with code 0 on tokenisation errors (no output is written)")
	cmd.Flags().Bool(spansFlag, false, "Include line and column spans in token output")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(cmd.PersistentFlags())
	_ = v.BindPFlags(cmd.Flags())

	cmd.AddCommand(newLanguagesCommand(v), newDumpCommand(v))
	return cmd
}

// setup reads the config file and applies the logging and matching settings.
// It must run before any grammar is compiled.
func setup(cmd *cobra.Command, v *viper.Viper) error {
	if path := v.GetString(configFlag); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file '%s'", path)
		}
	}

	logrus.SetOutput(cmd.ErrOrStderr())
	if v.GetBool(debugFlag) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if v.GetBool(logJSONFlag) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if d := v.GetDuration(matchTimeoutFlag); d > 0 {
		regexp2.DefaultMatchTimeout = d
	}
	return nil
}

// loadRegistry builds a registry from the built-in grammars plus any found
// in the grammars directory, and checks that every reference resolves.
func loadRegistry(v *viper.Viper) (*tokenizer.Registry, error) {
	reg, err := languages.NewRegistry()
	if err != nil {
		return nil, err
	}
	if dir := v.GetString(grammarsFlag); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, errors.Wrap(err, "grammars directory")
		}
		if err := tokenizer.LoadFS(reg, os.DirFS(dir), "*.yaml"); err != nil {
			return nil, errors.Wrapf(err, "loading grammars from '%s'", dir)
		}
	}
	if err := reg.Verify(); err != nil {
		return nil, err
	}
	logrus.WithField("languages", len(reg.Languages())).Debug("Loaded grammars")
	return reg, nil
}

func runTokenize(cmd *cobra.Command, v *viper.Viper) error {
	format := v.GetString(formatFlag)
	if format != formatTokens && format != formatTree {
		return errors.Errorf("unknown format %q (expected %s or %s)", format, formatTokens, formatTree)
	}

	reg, err := loadRegistry(v)
	if err != nil {
		return err
	}
	name := v.GetString(languageFlag)
	g, err := reg.Grammar(name)
	if err != nil {
		return err
	}

	input, err := readInput(cmd, v.GetString(inputFlag))
	if err != nil {
		return err
	}

	h := tokenizer.NewHighlighter(reg)
	var result any
	var tokenizeErr error
	if format == formatTree {
		result, tokenizeErr = h.HighlightGrammar(input, g, name)
	} else {
		var env *tokenizer.Env
		env, tokenizeErr = h.TokenizeEnv(input, g, name)
		if env != nil {
			result = env.Tokens
		}
	}
	if tokenizeErr != nil {
		if v.GetBool(exit0Flag) {
			logrus.WithError(tokenizeErr).Debug("Tokenization failed")
			return nil
		}
		return errors.Wrap(tokenizeErr, "tokenization error")
	}

	return withOutput(cmd, v.GetString(outputFlag), func(w io.Writer) error {
		if format == formatTree {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return writeItems(w, result.([]tokenizer.Item), v.GetBool(spansFlag))
	})
}

type spannedItem struct {
	Span tokenizer.Span `json:"span"`
	Item any            `json:"item"`
}

// writeItems writes one JSON value per line, wrapped with its source span
// when withSpans is set.
func writeItems(w io.Writer, items []tokenizer.Item, withSpans bool) error {
	var spans []tokenizer.Span
	if withSpans {
		spans = tokenizer.Spans(items)
	}
	for i, item := range items {
		var value any = item
		if text, ok := item.(tokenizer.Text); ok {
			value = string(text)
		}
		if withSpans {
			value = spannedItem{Span: spans[i], Item: value}
		}
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return errors.Wrap(err, "JSON encoding error")
		}
		if _, err := fmt.Fprintln(w, string(jsonBytes)); err != nil {
			return err
		}
	}
	return nil
}

func readInput(cmd *cobra.Command, filename string) (string, error) {
	if filename == "" {
		bytes, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "error reading from stdin")
		}
		return string(bytes), nil
	}
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return "", errors.Wrapf(err, "error reading file '%s'", filename)
	}
	return string(bytes), nil
}

// withOutput calls write with the output file, or with the command's output
// when filename is empty, and closes the file afterwards.
func withOutput(cmd *cobra.Command, filename string, write func(w io.Writer) error) error {
	if filename == "" {
		return write(cmd.OutOrStdout())
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "error creating output file '%s'", filename)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "error closing output file '%s'", filename)
	}
	return nil
}
