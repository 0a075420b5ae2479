package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/transducer-go/metrics"
)

var werCmd = &cobra.Command{
	Use:   "wer",
	Short: "Score hypotheses against references",
	Long: `Compute word and character error rates between two line-aligned
text files.

Examples:
  rnnt wer --ref ref.txt --hyp hyp.txt`,
	RunE: runWER,
}

func init() {
	rootCmd.AddCommand(werCmd)

	werCmd.Flags().String("ref", "", "reference transcripts, one per line")
	werCmd.Flags().String("hyp", "", "hypothesis transcripts, one per line")
	_ = werCmd.MarkFlagRequired("ref")
	_ = werCmd.MarkFlagRequired("hyp")
}

func runWER(cmd *cobra.Command, args []string) error {
	refPath, _ := cmd.Flags().GetString("ref")
	hypPath, _ := cmd.Flags().GetString("hyp")

	refs, err := readLines(refPath)
	if err != nil {
		return err
	}
	hyps, err := readLines(hypPath)
	if err != nil {
		return err
	}
	if len(refs) != len(hyps) {
		return fmt.Errorf("%d references but %d hypotheses", len(refs), len(hyps))
	}

	wordErrs, words := metrics.WER(refs, hyps)
	charErrs, chars := metrics.CER(refs, hyps)
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "utterances: %d\n", len(refs))
	fmt.Fprintf(w, "WER: %s (%d/%d)\n", rate(wordErrs, words), wordErrs, words)
	fmt.Fprintf(w, "CER: %s (%d/%d)\n", rate(charErrs, chars), charErrs, chars)
	return nil
}

func rate(num, denom int) string {
	if denom == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(num)/float64(denom))
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
