package commands

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/artifact"
)

var (
	simSteps  int
	simSeed   uint64
	simWindow int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <artifact>",
	Short: "Sample from an artifact and decode the samples",
	Long: `Draw a macro-state path and feature observations from the artifact's
model, run them through the same windowed filter used online and report
how often the most likely predicted state is the true one.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, err := artifact.Open(cmd.Context(), artifact.FileSource(args[0]))
	if err != nil {
		return err
	}
	if simWindow < 1 {
		return fmt.Errorf("--window must be positive, got %d", simWindow)
	}

	model := a.Model()
	rng := rand.New(rand.NewPCG(simSeed, simSeed^0x9e3779b97f4a7c15))
	states, obs, err := model.Sample(simSteps, rng)
	if err != nil {
		return err
	}

	hits := 0
	occupancy := make([]float64, model.NumStates())
	for i, z := range states {
		start := max(0, i+1-simWindow)
		belief, err := model.CurrentBelief(obs.Slice(start, i+1, 0, model.ObsDim()))
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if argmax(belief) == z {
			hits++
		}
		occupancy[z]++
	}
	for k := range occupancy {
		occupancy[k] /= float64(len(states))
	}
	ll, err := model.LogLikelihood(obs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.Describe())
	fmt.Fprintf(out, "steps:      %d (window %d, seed %d)\n", simSteps, simWindow, simSeed)
	fmt.Fprintf(out, "occupancy:  %s\n", formatFloats(occupancy))
	fmt.Fprintf(out, "accuracy:   %.4f\n", float64(hits)/float64(len(states)))
	fmt.Fprintf(out, "ll/step:    %.4f\n", ll/float64(len(states)))
	return nil
}

func init() {
	simulateCmd.Flags().IntVarP(&simSteps, "steps", "n", 1000, "number of steps to sample")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "random seed")
	simulateCmd.Flags().IntVarP(&simWindow, "window", "w", 20, "observations filtered per step")
	rootCmd.AddCommand(simulateCmd)
}
