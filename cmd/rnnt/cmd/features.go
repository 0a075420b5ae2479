package cmd

import (
	"fmt"

	"github.com/bytedance/sonic/encoder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/audio"
	"github.com/ieee0824/transducer-go/preprocessor"
)

var featuresCmd = &cobra.Command{
	Use:   "features <wav>...",
	Short: "Compute log-mel features from WAV files",
	Long: `Compute normalized log-mel spectrograms and write one JSON object
{"id": ..., "frames": [[...]], "length": n} per file, frames laid out
[T][F] so the output can feed "rnnt decode" directly.

Examples:
  rnnt features a.wav b.wav > feats.json

  # With SpecAugment time and frequency masking
  rnnt features --freq-masks 2 --time-masks 2 a.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)

	def := preprocessor.DefaultConfig()
	featuresCmd.Flags().Int("features", def.Features, "mel bands")
	featuresCmd.Flags().Float64("dither", def.Dither, "dither amplitude")
	featuresCmd.Flags().Float64("speed", 1, "speed perturbation factor")
	featuresCmd.Flags().Int("freq-masks", 0, "SpecAugment frequency masks")
	featuresCmd.Flags().Int("time-masks", 0, "SpecAugment time masks")
	mustBindPFlag("preprocessor.features", featuresCmd.Flags().Lookup("features"))
	mustBindPFlag("preprocessor.dither", featuresCmd.Flags().Lookup("dither"))
}

func runFeatures(cmd *cobra.Command, args []string) error {
	speed, _ := cmd.Flags().GetFloat64("speed")
	freqMasks, _ := cmd.Flags().GetInt("freq-masks")
	timeMasks, _ := cmd.Flags().GetInt("time-masks")

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := preprocessor.DefaultConfig()
	cfg.Features = viper.GetInt("preprocessor.features")
	cfg.Dither = viper.GetFloat64("preprocessor.dither")
	mel, err := preprocessor.NewMelSpectrogram(cfg, logger)
	if err != nil {
		return err
	}

	clips := make([]audio.Clip, len(args))
	for i, path := range args {
		clip, _, err := audio.ReadWAVFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if clip.SampleRate != cfg.SampleRate {
			return fmt.Errorf("%s: sample rate %d, want %d", path, clip.SampleRate, cfg.SampleRate)
		}
		clips[i] = clip
	}
	signals, lengths, err := audio.Batch(clips)
	if err != nil {
		return err
	}
	if speed != 1 {
		if signals, lengths, err = preprocessor.SpeedPerturb(signals, lengths, speed); err != nil {
			return err
		}
	}

	feats, frameLens, err := mel.Forward(signals, lengths)
	if err != nil {
		return err
	}
	if freqMasks > 0 || timeMasks > 0 {
		augCfg := preprocessor.DefaultSpecAugmentConfig()
		augCfg.FreqMasks, augCfg.TimeMasks = freqMasks, timeMasks
		aug, err := preprocessor.NewSpecAugment(augCfg)
		if err != nil {
			return err
		}
		if feats, err = aug.Apply(feats, frameLens); err != nil {
			return err
		}
	}

	frames, err := feats.Transpose12()
	if err != nil {
		return err
	}
	enc := encoder.NewStreamEncoder(cmd.OutOrStdout())
	F, T := frames.Dim(2), frames.Dim(1)
	for b, path := range args {
		rows := make([][]float64, T)
		for t := range rows {
			rows[t] = frames.Data[(b*T+t)*F : (b*T+t+1)*F]
		}
		if err := enc.Encode(utterance{ID: path, Frames: rows, Length: &frameLens[b]}); err != nil {
			return err
		}
	}
	logger.Info("Computed features", zap.Int("files", len(args)), zap.Int("features", F), zap.Int("frames", T))
	return nil
}
