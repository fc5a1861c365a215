package commands

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/dataset"
	"github.com/LucaChot/neurostate/src/profiler"
	"github.com/LucaChot/neurostate/src/publish"
	"github.com/LucaChot/neurostate/src/session"
)

var (
	decInput    string
	decArtifact string
	decPublish  string
	decProfile  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a stream of buffers",
	Long: `Read float32 little-endian buffers of band.buffer_size samples from a file
or stdin and print one belief line per buffer:

  <seq> <most likely state> <p_0> ... <p_K-1>

With --publish every belief is also streamed to gRPC subscribers. SIGHUP
reloads the artifact; a rejected artifact leaves the current one in place.`,
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := artifactSource(cfg, decArtifact)
	if err != nil {
		return err
	}
	a, err := loadArtifact(ctx, cfg, decArtifact)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithSequenceLength(cfg.SequenceLength)}
	publishAddr := decPublish
	if publishAddr == "" {
		publishAddr = cfg.PublishAddr
	}
	if publishAddr != "" {
		lis, err := net.Listen("tcp", publishAddr)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		b := publish.NewBroadcaster()
		go func() {
			if err := b.Serve(lis); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("PUBLISH: SERVER STOPPED")
			}
		}()
		defer b.Stop()
		opts = append(opts, session.WithSink(b))
	}

	profileAddr := decProfile
	if profileAddr == "" {
		profileAddr = cfg.ProfilerAddr
	}
	if profileAddr != "" {
		if _, err := profiler.StartProfilerServer(ctx, profileAddr); err != nil {
			return err
		}
	}

	s, err := session.New(cfg.Band, a, opts...)
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := s.Reload(ctx, src, cfg.Model); err != nil {
					log.WithFields(log.Fields{
						"source": src.String(),
						"error":  err,
					}).Error("DECODE: RELOAD FAILED")
				}
			}
		}
	}()

	var in io.Reader = cmd.InOrStdin()
	if decInput != "-" {
		f, err := os.Open(decInput)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	var seq int
	return dataset.Stream(in, cfg.Band.BufferSize, func(buf []float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		belief, err := s.Decode(buf)
		if err != nil {
			return err
		}
		seq++
		fmt.Fprintf(out, "%d %d %s\n", seq, argmax(belief), formatFloats(belief))
		return nil
	})
}

func init() {
	decodeCmd.Flags().StringVarP(&decInput, "input", "i", "-", "buffer stream, - for stdin")
	decodeCmd.Flags().StringVar(&decArtifact, "artifact", "", "artifact location, overrides the parameter file")
	decodeCmd.Flags().StringVar(&decPublish, "publish", "", "address to publish beliefs on")
	decodeCmd.Flags().StringVar(&decProfile, "profile", "", "address to serve pprof on")
	rootCmd.AddCommand(decodeCmd)
}
