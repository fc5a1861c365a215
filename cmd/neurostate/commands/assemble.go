package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/artifact"
)

var (
	asmFeatures string
	asmParams   string
	asmOutput   string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Bundle a feature fit and model parameters into an artifact",
	Long: `Join the projection and statistics written by 'fit' with the model
parameters estimated offline (YAML) into one versioned artifact.

The artifact is checked against the configured number of states,
substates and observation dimension before it is written.`,
	RunE: runAssemble,
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if asmParams == "" {
		return fmt.Errorf("--params is required")
	}

	features, err := artifact.LoadFeatures(asmFeatures)
	if err != nil {
		return err
	}
	if features.Band != cfg.Band {
		return fmt.Errorf("features were fit with band %+v, configured band is %+v", features.Band, cfg.Band)
	}
	params, err := artifact.LoadParameters(asmParams)
	if err != nil {
		return err
	}
	a, err := params.Assemble(features)
	if err != nil {
		return err
	}
	if err := cfg.Model.Check(a); err != nil {
		return err
	}
	if err := artifact.Save(asmOutput, a); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\nwritten: %s\n", a.Describe(), asmOutput)
	return nil
}

func init() {
	assembleCmd.Flags().StringVar(&asmFeatures, "features", "features.msgpack", "feature bundle written by fit")
	assembleCmd.Flags().StringVar(&asmParams, "params", "", "fitted model parameters (YAML)")
	assembleCmd.Flags().StringVarP(&asmOutput, "output", "o", "model.msgpack", "artifact to write")
	rootCmd.AddCommand(assembleCmd)
}
