package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/artifact"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Describe an artifact",
	Long: `Print the model family, shapes, initial distribution, mean durations
and the log-likelihood trace recorded during fitting. The artifact is not
checked against the parameter file.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	// s3:// locations need the s3 section of the parameter file.
	var src artifact.Source
	if cfg, err := loadConfig(); err == nil {
		src, err = artifactSource(cfg, args[0])
		if err != nil {
			return err
		}
	} else {
		src = artifact.FileSource(args[0])
	}

	a, err := artifact.Open(cmd.Context(), src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.Describe())
	fmt.Fprintf(out, "version:      %d\n", a.Version)
	fmt.Fprintf(out, "family:       %s\n", a.Family)
	fmt.Fprintf(out, "expanded:     %d\n", a.Model().ExpandedStates())
	fmt.Fprintf(out, "buffer size:  %d\n", a.BufferSize())
	masked, _ := a.Projection.Dims()
	fmt.Fprintf(out, "masked:       %d\n", masked)
	fmt.Fprintf(out, "pi0:          %s\n", formatFloats(a.Pi0))
	if d := a.MeanDurations(); d != nil {
		fmt.Fprintf(out, "durations:    %s\n", formatFloats(d))
	}
	if n := len(a.LogLikelihoods); n > 0 {
		fmt.Fprintf(out, "fit:          %d iterations, final log likelihood %.4f\n", n, a.LogLikelihoods[n-1])
		fmt.Fprintf(out, "trace:        %s\n", formatFloats(a.LogLikelihoods))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
