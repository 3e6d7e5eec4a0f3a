package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/utils"
	"github.com/spf13/cobra"
)

var (
	sumInput      inputFlags
	sumOutputDir  string
	sumSampleRows int
	sumGroupBy    string
	sumCorr       bool
	sumOutlierThr float64
	sumQuiet      bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <files...>",
	Short: "Summarize one or more CSV/TSV/XLSX climate files as Markdown",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		opt := dataset.DefaultSummaryOptions()
		opt.SampleRows = sumSampleRows
		opt.GroupBy = sumGroupBy
		opt.Correlations = sumCorr
		opt.OutlierThreshold = sumOutlierThr

		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !sumQuiet && total > 1 {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			ds, err := sumInput.load(path)
			if err != nil {
				return err
			}
			md := dataset.Summarize(ds, opt).Markdown()
			if sumOutputDir == "" {
				fmt.Fprintln(out, md)
				continue
			}
			if err := utils.EnsureDir(sumOutputDir); err != nil {
				return err
			}
			outFile := summaryPath(sumOutputDir, path)
			if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !sumQuiet {
				fmt.Fprintf(out, "✓ Wrote summary to %s\n", outFile)
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, deduplicated and sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// summaryPath picks <base>.summary.md in dir, suffixing __N to avoid overwriting.
func summaryPath(dir, input string) string {
	base := filepath.Base(input)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	outFile := filepath.Join(dir, safe+".summary.md")
	if _, err := os.Stat(outFile); err != nil {
		return outFile
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", safe, idx))
		// Any Stat failure, not only ENOENT, means the name is not taken.
		if _, err := os.Stat(cand); err != nil {
			return cand
		}
	}
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	sumInput.register(summarizeCmd)
	summarizeCmd.Flags().StringVarP(&sumOutputDir, "output-dir", "o", "", "write <name>.summary.md files here instead of stdout")
	summarizeCmd.Flags().IntVar(&sumSampleRows, "sample-rows", 5, "number of sample rows to include (0 disables)")
	summarizeCmd.Flags().StringVar(&sumGroupBy, "group-by", domain.ColCountry, "column to group numeric means by (empty disables)")
	summarizeCmd.Flags().BoolVar(&sumCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	summarizeCmd.Flags().Float64Var(&sumOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based, 0 disables)")
	summarizeCmd.Flags().BoolVar(&sumQuiet, "quiet", false, "suppress progress and non-essential output")
}
