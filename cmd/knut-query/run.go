package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KDAB/knut-sub001/treesitter"
)

type runOptions struct {
	lang       string
	queryFile  string
	expression string
}

func runCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] GLOB...",
		Short: "Print the matches of a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "", "Language of every file (default: detected from the file name)")
	cmd.Flags().StringVarP(&opts.queryFile, "query", "q", "", "File holding the query")
	cmd.Flags().StringVarP(&opts.expression, "expression", "e", "", "Query text")
	cmd.MarkFlagsMutuallyExclusive("query", "expression")
	cmd.MarkFlagsOneRequired("query", "expression")
	return cmd
}

func runQuery(cmd *cobra.Command, global *globalOptions, opts *runOptions, patterns []string) error {
	pattern := opts.expression
	if opts.queryFile != "" {
		data, err := os.ReadFile(opts.queryFile)
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		pattern = string(data)
	}

	ws, _, logger, err := global.setup(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	if opts.lang != "" {
		if _, err := ws.Registry().Lookup(opts.lang); err != nil {
			return err
		}
	}
	files, err := expandPatterns(patterns)
	if err != nil {
		return err
	}

	// One compiled query per language.
	queries := make(map[string]*treesitter.Query)
	defer func() {
		for _, q := range queries {
			q.Close()
		}
	}()

	results := []matchResult{}
	for _, file := range files {
		doc, err := ws.OpenFileAs(file, opts.lang)
		if err != nil {
			return err
		}
		lang := doc.Language()
		if lang == nil {
			logger.Warn("skipping file without grammar", "file", file)
			ws.CloseDocument(doc.URI())
			continue
		}

		query, ok := queries[lang.Name()]
		if !ok {
			query, err = treesitter.NewQuery(lang, pattern)
			if err != nil {
				return fmt.Errorf("compile query for %s: %w", lang.Name(), err)
			}
			queries[lang.Name()] = query
		}

		source := doc.Text()
		matches := doc.Matches(query)
		logger.Debug("ran query", "file", file, "matches", len(matches))
		for _, m := range matches {
			results = append(results, newMatchResult(file, source, m))
		}
		ws.CloseDocument(doc.URI())
	}

	return writeResults(cmd.OutOrStdout(), global.format, results, func(w io.Writer) error {
		return writeMatchesText(w, results)
	})
}
