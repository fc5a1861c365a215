package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/artifact"
	"github.com/LucaChot/neurostate/src/config"
	"github.com/LucaChot/neurostate/src/dataset"
	"github.com/LucaChot/neurostate/src/feature"
)

var (
	fitTrain  string
	fitOutput string
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Learn normalisation stats and the PCA projection",
	Long: `Read a little-endian float32 training recording, cut it into buffers of
band.buffer_size samples and learn the per-sample statistics and the
L1-normalised PCA projection used online.

The output bundle also carries the projected training features that the
offline model estimation consumes. The configuration the fit ran with is
written beside it as <output>.config.yaml.`,
	RunE: runFit,
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := fitTrain
	if path == "" {
		path = cfg.TrainingData
	}
	if path == "" {
		return fmt.Errorf("--train is required when training_data is not configured")
	}

	train, err := dataset.Load(path, cfg.Band.BufferSize)
	if err != nil {
		return err
	}
	res, err := feature.Fit(train, cfg.Band, cfg.Model.ObsDim)
	if err != nil {
		return err
	}
	if err := artifact.SaveFeatures(fitOutput, artifact.NewFeatures(cfg.Band, res)); err != nil {
		return err
	}
	record := recordPath(fitOutput)
	if err := config.Save(record, cfg); err != nil {
		return err
	}

	n, _ := train.Dims()
	masked, _ := res.Projection.Dims()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "buffers:   %d\n", n)
	fmt.Fprintf(out, "masked:    %d of %d\n", masked, cfg.Band.BufferSize)
	fmt.Fprintf(out, "obs dim:   %d\n", cfg.Model.ObsDim)
	fmt.Fprintf(out, "variance:  %s\n", formatFloats(res.ExplainedVariance))
	fmt.Fprintf(out, "written:   %s\n", fitOutput)
	fmt.Fprintf(out, "config:    %s\n", record)
	return nil
}

// recordPath names the config record written beside a feature bundle.
func recordPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".config.yaml"
}

func init() {
	fitCmd.Flags().StringVar(&fitTrain, "train", "", "training recording (float32 little-endian)")
	fitCmd.Flags().StringVarP(&fitOutput, "output", "o", "features.msgpack", "feature bundle to write")
	rootCmd.AddCommand(fitCmd)
}
