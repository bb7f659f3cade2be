package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/syllabler/pkg/overrides"
	"github.com/japaniel/syllabler/pkg/syllable"
	"github.com/japaniel/syllabler/pkg/verse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) countCmd() *cobra.Command {
	var (
		lineMode bool
		trace    bool
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "count [words...]",
		Short: "Count syllables of words or lines",
		Long: `Count prints the syllable count of each word and the total.

With --line every argument is treated as a line of text. Without arguments
lines are read from stdin; --watch reloads the override file whenever it
changes while stdin is being read.`,
		Example: `  syllabler count happiness wanted
  syllabler count --line "An old silent pond"
  cat poem.txt | syllabler count --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.overrideTable(cmd.Context(), nil)
			if err != nil {
				return err
			}
			live := overrides.NewLive(table)

			if watch || a.cfg.Overrides.Watch {
				w, err := overrides.NewWatcher(live, a.cfg.Overrides.Path, a.logger)
				if err != nil {
					return fmt.Errorf("watch overrides: %w", err)
				}
				if err := w.Start(); err != nil {
					return fmt.Errorf("watch overrides: %w", err)
				}
				defer w.Stop()
				a.logger.Info("watching overrides", zap.String("path", a.cfg.Overrides.Path))
			}

			seg := syllable.New(live)
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 0:
				return countLines(out, cmd.InOrStdin(), verse.NewAnalyzer(seg))
			case lineMode:
				analyzer := verse.NewAnalyzer(seg)
				for _, text := range args {
					writeLine(out, analyzer.AnalyzeLine(text))
				}
				return nil
			default:
				return countWords(out, seg, args, trace)
			}
		},
	}
	cmd.Flags().BoolVar(&lineMode, "line", false, "Treat each argument as a line of text")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print the rules applied to each word")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the override file when it changes")
	return cmd
}

func countWords(out io.Writer, seg *syllable.Segmenter, words []string, trace bool) error {
	total := 0
	for _, w := range words {
		if !trace {
			n := seg.Count(w)
			total += n
			fmt.Fprintf(out, "%s\t%d\n", w, n)
			continue
		}
		n, steps := seg.Trace(w)
		total += n
		fmt.Fprintf(out, "%s\t%d\n", w, n)
		for _, s := range steps {
			fmt.Fprintf(out, "  %-12s %-16q %d\n", s.Rule, s.Remaining, s.Count)
		}
	}
	fmt.Fprintf(out, "total\t%d\n", total)
	return nil
}

func countLines(out io.Writer, in io.Reader, a *verse.Analyzer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		writeLine(out, a.AnalyzeLine(text))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func writeLine(out io.Writer, l verse.Line) {
	fmt.Fprintf(out, "%d\t%s\n", l.Syllables, l.Text)
}
