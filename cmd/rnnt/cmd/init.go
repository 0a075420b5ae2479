package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	transducer "github.com/ieee0824/transducer-go"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a freshly initialized model checkpoint",
	Long: `Build a prediction network and a joint network from their YAML
configs and write both into one checkpoint.

Examples:
  rnnt init --decoder decoder.yaml --joint joint.yaml -o model.gob`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("decoder", "", "decoder config (yaml)")
	initCmd.Flags().String("joint", "", "joint config (yaml)")
	initCmd.Flags().StringP("output", "o", "model.gob", "checkpoint path")
	_ = initCmd.MarkFlagRequired("decoder")
	_ = initCmd.MarkFlagRequired("joint")
}

func runInit(cmd *cobra.Command, args []string) error {
	decPath, _ := cmd.Flags().GetString("decoder")
	jointPath, _ := cmd.Flags().GetString("joint")
	out, _ := cmd.Flags().GetString("output")

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := transducer.NewModel(decPath, jointPath, transducer.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := m.SaveFile(out); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	logger.Info("Wrote checkpoint", zap.String("path", out))
	return nil
}
