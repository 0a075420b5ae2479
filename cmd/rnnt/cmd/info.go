package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	transducer "github.com/ieee0824/transducer-go"
)

var infoCmd = &cobra.Command{
	Use:   "info <checkpoint>",
	Short: "Describe a model checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := transducer.LoadFile(args[0])
	if err != nil {
		return err
	}
	dec, joint := m.Decoder, m.Joint
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "vocabulary:      %d symbols + blank (blank id %d)\n", m.Vocab.Size(), m.Vocab.BlankIndex())
	fmt.Fprintf(w, "prediction net:  %d x LSTM(%d), blank_as_pad=%t, %d weights\n",
		dec.Layers(), dec.Hidden(), dec.BlankAsPad(), dec.NumWeights())
	jn := joint.Config().JointNet
	fmt.Fprintf(w, "joint net:       enc %d + pred %d -> %d (%s) -> %d classes, log_softmax=%t, %d weights\n",
		jn.EncoderHidden, jn.PredHidden, jn.JointHidden, jn.Activation,
		joint.NumClassesWithBlank(), joint.LogSoftmax(), joint.NumWeights())
	return nil
}
