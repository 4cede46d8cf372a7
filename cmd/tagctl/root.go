package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arawak/tagsmith/internal/config"
	"github.com/arawak/tagsmith/internal/tag"
)

var errReserved = errors.New("input contains a reserved word")

type options struct {
	rulesFile      string
	dictionaryFile string
	maxLength      int
	outputJSON     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "tagctl",
		Short:         "Format and inspect tag text offline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", "", "YAML file with reserved words, whitelist and synonyms")
	root.PersistentFlags().StringVar(&opts.dictionaryFile, "dictionary", "", "YAML list of icon tag titles, most popular first")
	root.PersistentFlags().IntVar(&opts.maxLength, "max-length", config.DefaultMaxTagTitleLength, "maximum tag title length")
	root.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "print JSON output")

	root.AddCommand(newFormatCmd(opts), newHeadCmd(opts), newCheckCmd(opts), newRulesCmd(opts))
	return root
}

func newFormatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "format <raw>",
		Short: "Format raw tag text into at most four tags",
		Long: `Format raw tag text the way the server does.

Examples:
  tagctl format "go，java；rust;c"
  tagctl format --dictionary icons.yaml --json "js,es搜索"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.formatter()
			if err != nil {
				return err
			}
			if f.ContainsReservedTags(args[0]) {
				return errReserved
			}
			res, err := f.FormatDetailed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.outputJSON {
				return writeJSON(cmd, map[string]any{"tags": res.String(), "items": res.Tags, "rejected": res.Rejected})
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			for _, r := range res.Rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "dropped %q: %s\n", r.Title, r.Reason)
			}
			return nil
		},
	}
}

func newHeadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "head <formatted> <n>",
		Short: "Keep the first n tags of a formatted tag string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid n %q: %w", args[1], err)
			}
			out := tag.UseHead(args[0], n)
			if opts.outputJSON {
				return writeJSON(cmd, map[string]string{"tags": out})
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <text>",
		Short: "Report whether text hits a reserved word or is a whitelisted title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, _, err := config.LoadFormatterRules(opts.rulesFile)
			if err != nil {
				return err
			}
			reserved := rules.ContainsReserved(args[0])
			whitelisted := rules.IsWhitelisted(args[0])
			if opts.outputJSON {
				return writeJSON(cmd, map[string]bool{"reserved": reserved, "whitelisted": whitelisted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reserved=%t whitelisted=%t\n", reserved, whitelisted)
			return nil
		},
	}
}

func newRulesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective reserved words, whitelist, synonyms and length limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, synonyms, err := config.LoadFormatterRules(opts.rulesFile)
			if err != nil {
				return err
			}
			f, err := opts.formatter()
			if err != nil {
				return err
			}
			effective := struct {
				Reserved       []string            `json:"reserved" yaml:"reserved"`
				Whitelist      []string            `json:"whitelist" yaml:"whitelist"`
				Synonyms       map[string][]string `json:"synonyms" yaml:"synonyms"`
				MaxTitleLength int                 `json:"maxTitleLength" yaml:"maxTitleLength"`
			}{rules.Reserved(), rules.Whitelist(), synonyms.Table(), f.MaxTitleLength()}
			if opts.outputJSON {
				return writeJSON(cmd, effective)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(effective)
		},
	}
}

func (o *options) formatter() (*tag.Formatter, error) {
	rules, synonyms, err := config.LoadFormatterRules(o.rulesFile)
	if err != nil {
		return nil, err
	}
	dict, err := loadDictionary(o.dictionaryFile)
	if err != nil {
		return nil, err
	}
	normalizer, err := tag.NewNormalizer(dict, synonyms)
	if err != nil {
		return nil, err
	}
	return tag.NewFormatter(rules, normalizer, o.maxLength)
}

func loadDictionary(path string) (tag.StaticDictionary, error) {
	if path == "" {
		return tag.NewStaticDictionary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary file: %w", err)
	}
	var titles []string
	if err := yaml.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parse dictionary file: %w", err)
	}
	return tag.NewStaticDictionary(titles...), nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
