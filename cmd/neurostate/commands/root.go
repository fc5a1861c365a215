package commands

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LucaChot/neurostate/src/artifact"
	"github.com/LucaChot/neurostate/src/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "neurostate",
	Short: "Real-time latent state decoding",
	Long: `neurostate - decode a latent discrete state from a stream of signal buffers.

Every buffer is z-scored, band-limited and projected onto a PCA basis; the
resulting feature joins a rolling window that a forward filter turns into a
belief over macro-states.

Examples:
  # Learn the projection from a float32 training recording
  neurostate fit -c params.yaml --train train.bin -o features.msgpack

  # Bundle it with parameters estimated offline
  neurostate assemble -c params.yaml --features features.msgpack --params hsmm.yaml -o model.msgpack

  # Decode a live stream from stdin and publish beliefs over gRPC
  neurostate decode -c params.yaml --input - --publish :50051`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
		log.SetOutput(cmd.ErrOrStderr())
		if logLevel == "" {
			return nil
		}
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "neurostate.yaml", "parameter file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the parameter file")
}

// loadConfig reads the parameter file and applies its log level unless the
// flag set one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		level, _ := log.ParseLevel(cfg.LogLevel)
		log.SetLevel(level)
	}
	return cfg, nil
}

/*
s3Client builds a client from the s3 section of the parameter file with
credentials from the standard AWS environment variables.
*/
func s3Client(c config.S3) *s3.Client {
	opts := s3.Options{
		Region:       c.Region,
		UsePathStyle: c.UsePathStyle,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		}),
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	return s3.New(opts)
}

func artifactSource(cfg *config.Config, location string) (artifact.Source, error) {
	if location == "" {
		location = cfg.Artifact
	}
	return artifact.SourceFor(location, s3Client(cfg.S3))
}

func loadArtifact(ctx context.Context, cfg *config.Config, location string) (*artifact.Artifact, error) {
	src, err := artifactSource(cfg, location)
	if err != nil {
		return nil, err
	}
	return artifact.Load(ctx, src, cfg.Model)
}
