package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	knut "github.com/KDAB/knut-sub001"
	"github.com/KDAB/knut-sub001/config"
	"github.com/KDAB/knut-sub001/treesitter"
)

// errFindings is returned when a check reports error-level findings.
var errFindings = errors.New("error findings reported")

func checkCmd(global *globalOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check [flags] GLOB...",
		Short: "Run the rules of the settings file",
		Long: `check opens every file, runs the [[rules]] of the settings file and
prints the findings. It fails when a finding has the error severity.

With --watch the findings are printed again every time the settings file
changes, until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, global, watch, args)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Check again whenever the settings file changes")
	return cmd
}

type checkedFile struct {
	path string
	doc  *knut.CodeDocument
}

func runCheck(cmd *cobra.Command, global *globalOptions, watch bool, patterns []string) error {
	if watch && global.configPath == "" {
		return errors.New("--watch needs --config")
	}

	ws, store, logger, err := global.setup(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	if len(ws.Settings().Rules) == 0 {
		logger.Warn("no rules configured")
	}
	paths, err := expandPatterns(patterns)
	if err != nil {
		return err
	}

	var files []checkedFile
	for _, path := range paths {
		doc, err := ws.OpenFile(path)
		if err != nil {
			return err
		}
		if doc.Language() == nil {
			logger.Warn("skipping file without grammar", "file", path)
			continue
		}
		files = append(files, checkedFile{path: path, doc: doc})
	}

	var mu sync.Mutex
	report := func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		results, errorCount := collectFindings(files)
		err := writeResults(cmd.OutOrStdout(), global.format, results, func(w io.Writer) error {
			return writeFindingsText(w, results)
		})
		return errorCount, err
	}

	errorCount, err := report()
	if err != nil {
		return err
	}
	if !watch {
		if errorCount > 0 {
			return fmt.Errorf("%d %w", errorCount, errFindings)
		}
		return nil
	}

	// The workspace listener was registered first, so findings are
	// recomputed by the time this one runs.
	store.OnChange(func(_, _ *config.Settings) {
		if _, err := report(); err != nil {
			logger.Error("writing findings", "error", err)
		}
	})

	reloader := config.NewReloader(store, global.configPath, config.DefaultSettings(), logger)
	watcher, err := reloader.Watch()
	if err != nil {
		return err
	}
	defer watcher.Close()
	logger.Info("watching settings", "path", reloader.Path())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	<-ctx.Done()
	return nil
}

func collectFindings(files []checkedFile) ([]findingResult, int) {
	results := []findingResult{}
	errorCount := 0
	for _, f := range files {
		source := f.doc.Text()
		for _, finding := range f.doc.Findings() {
			if finding.Severity == treesitter.SeverityError {
				errorCount++
			}
			results = append(results, newFindingResult(f.path, source, finding))
		}
	}
	return results, errorCount
}
