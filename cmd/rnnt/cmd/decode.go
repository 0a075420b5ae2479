package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/encoder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	transducer "github.com/ieee0824/transducer-go"
	"github.com/ieee0824/transducer-go/search"
	"github.com/ieee0824/transducer-go/tensor"
)

// utterance is one line of decode input: encoder frames [T][D] and an
// optional valid length.
type utterance struct {
	ID     string      `json:"id,omitempty"`
	Frames [][]float64 `json:"frames"`
	Length *int        `json:"length,omitempty"`
}

type decodeOutput struct {
	ID        string  `json:"id,omitempty"`
	Text      string  `json:"text"`
	Tokens    []int   `json:"tokens"`
	Timesteps []int   `json:"timesteps"`
	Score     float64 `json:"score"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode encoder outputs with a model checkpoint",
	Long: `Read a stream of JSON utterances {"frames": [[...], ...]} holding
acoustic encoder outputs and write one JSON result per utterance.

Examples:
  # Greedy decoding from a file
  rnnt decode --model model.gob --input encoded.json

  # Beam search from stdin
  cat encoded.json | rnnt decode --model model.gob --strategy beam --beam-size 8`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	def := search.DefaultConfig()
	decodeCmd.Flags().String("model", "", "model checkpoint")
	decodeCmd.Flags().String("input", "-", "input JSON stream (- for stdin)")
	decodeCmd.Flags().String("strategy", string(def.Strategy), "search strategy (greedy, beam)")
	decodeCmd.Flags().Int("beam-size", def.BeamSize, "beam width")
	decodeCmd.Flags().Int("max-symbols", def.MaxSymbolsPerStep, "max symbols emitted per frame")
	decodeCmd.Flags().Int("max-expansions", def.MaxExpansionsPerFrame, "max hypotheses expanded per frame")
	decodeCmd.Flags().Bool("score-norm", def.ScoreNorm, "length-normalise beam scores")
	decodeCmd.Flags().Float64("temperature", def.SoftmaxTemperature, "softmax temperature")
	decodeCmd.Flags().Int("concurrency", 0, "utterances decoded in parallel (0 = GOMAXPROCS)")
	decodeCmd.Flags().Bool("metrics", false, "print decode counters to stderr when done")
	_ = decodeCmd.MarkFlagRequired("model")

	mustBindPFlag("search.strategy", decodeCmd.Flags().Lookup("strategy"))
	mustBindPFlag("search.beam_size", decodeCmd.Flags().Lookup("beam-size"))
	mustBindPFlag("search.max_symbols_per_step", decodeCmd.Flags().Lookup("max-symbols"))
	mustBindPFlag("search.max_expansions_per_frame", decodeCmd.Flags().Lookup("max-expansions"))
	mustBindPFlag("search.score_norm", decodeCmd.Flags().Lookup("score-norm"))
	mustBindPFlag("search.softmax_temperature", decodeCmd.Flags().Lookup("temperature"))
	mustBindPFlag("concurrency", decodeCmd.Flags().Lookup("concurrency"))
}

// searchConfigFromViper overlays the "search" section of the config file,
// TRANSDUCER_SEARCH_* env and the decode flags on search.DefaultConfig.
func searchConfigFromViper() (search.Config, error) {
	settings := struct {
		Search search.Config `mapstructure:"search"`
	}{Search: search.DefaultConfig()}
	if err := viper.Unmarshal(&settings); err != nil {
		return search.Config{}, fmt.Errorf("search config: %w", err)
	}
	return settings.Search, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	modelPath, _ := cmd.Flags().GetString("model")
	input, _ := cmd.Flags().GetString("input")
	showMetrics, _ := cmd.Flags().GetBool("metrics")

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	searchCfg, err := searchConfigFromViper()
	if err != nil {
		return err
	}
	m, err := transducer.LoadFile(modelPath,
		transducer.WithLogger(logger),
		transducer.WithSearchConfig(searchCfg),
		transducer.WithConcurrency(viper.GetInt("concurrency")))
	if err != nil {
		return err
	}

	r := cmd.InOrStdin()
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	utts, err := readUtterances(r)
	if err != nil {
		return err
	}

	encs := make([]*tensor.Tensor, len(utts))
	lengths := make([]int, len(utts))
	for i, u := range utts {
		frames, err := tensor.FromRows(u.Frames)
		if err != nil {
			return fmt.Errorf("utterance %d: %w", i, err)
		}
		if encs[i], err = tensor.FromData(frames.Data, 1, frames.Dim(0), frames.Dim(1)); err != nil {
			return fmt.Errorf("utterance %d: %w", i, err)
		}
		lengths[i] = len(u.Frames)
		if u.Length != nil {
			lengths[i] = *u.Length
		}
	}

	out, err := m.TranscribeBatch(cmd.Context(), encs, lengths)
	if err != nil {
		return err
	}
	enc := encoder.NewStreamEncoder(cmd.OutOrStdout())
	for i, tr := range out {
		if err := enc.Encode(decodeOutput{
			ID:        utts[i].ID,
			Text:      tr.Text,
			Tokens:    tr.Tokens,
			Timesteps: tr.Timesteps,
			Score:     tr.Score,
		}); err != nil {
			return err
		}
	}
	logger.Info("Decoded utterances", zap.Int("count", len(out)))

	if showMetrics {
		return printCounters(cmd.ErrOrStderr())
	}
	return nil
}

func readUtterances(r io.Reader) ([]utterance, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var utts []utterance
	for len(data) > 0 {
		value, rest, err := nextValue(data)
		if err != nil {
			return nil, fmt.Errorf("read utterance %d: %w", len(utts), err)
		}
		data = rest
		if value == nil {
			break
		}
		var u utterance
		if err := sonic.Unmarshal(value, &u); err != nil {
			return nil, fmt.Errorf("read utterance %d: %w", len(utts), err)
		}
		if len(u.Frames) == 0 {
			return nil, fmt.Errorf("utterance %d has no frames", len(utts))
		}
		utts = append(utts, u)
	}
	return utts, nil
}

// nextValue splits the first top-level JSON object off data. It returns a
// nil value once only whitespace remains.
func nextValue(data []byte) (value, rest []byte, err error) {
	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	if start == len(data) {
		return nil, nil, nil
	}
	if data[start] != '{' {
		return nil, nil, fmt.Errorf("unexpected character %q at offset %d", data[start], start)
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(data); i++ {
		c := data[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return data[start : i+1], data[i+1:], nil
			}
		}
	}
	return nil, nil, errors.New("unexpected end of input")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func printCounters(w io.Writer) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "transducer_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue())
		}
	}
	return nil
}
