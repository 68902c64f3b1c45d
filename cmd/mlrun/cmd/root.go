package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go-ml.dev/pkg/mlrun/runner"
	"go-ml.dev/pkg/mlrun/tracking"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
)

const DefaultTrackingURI = "http://mlflow-server:5000"

var rootDescription = "fit a regression or classification model and record the run in the tracking service."

// rootCmd represents one training run described by a config file.
var rootCmd = &cobra.Command{
	Use:               "mlrun [flags]",
	Short:             rootDescription,
	Long:              rootDescription + "\n\nThe tracking service address is taken from --tracking-uri or MLFLOW_TRACKING_URI.",
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("config", "c", "params.json", "run config file, .json or .hcl")
	flags.StringArray("set", nil, "override config key with value, key=value")
	flags.String("tracking-uri", DefaultTrackingURI, "tracking service uri, http(s)://host:port or sqlite:///path")
	flags.String("experiment", "", "experiment name, overrides experiment_name of config")
	flags.String("artifact-dir", "runs", "local directory for model artifacts, relative path is placed into the user cache")
	flags.StringToString("tag", nil, "tag of the run, key=value")
	flags.Duration("timeout", tracking.DefaultTimeout, "tracking request timeout")
	flags.String("s3-endpoint-url", "", "s3 compatible storage endpoint for s3:// artifact locations")
	flags.String("aws-access-key-id", "", "s3 access key")
	flags.String("aws-secret-access-key", "", "s3 secret key")
	flags.String("aws-region", "", "s3 region")
	flags.BoolP("verbose", "v", false, "print progress")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
	for key, env := range map[string]string{
		"tracking-uri":          "MLFLOW_TRACKING_URI",
		"experiment":            "MLFLOW_EXPERIMENT_NAME",
		"s3-endpoint-url":       "MLFLOW_S3_ENDPOINT_URL",
		"aws-access-key-id":     "AWS_ACCESS_KEY_ID",
		"aws-secret-access-key": "AWS_SECRET_ACCESS_KEY",
		"aws-region":            "AWS_DEFAULT_REGION",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

// Execute runs the root command and exits with nonzero code on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	config, err := runner.LoadConfig(viper.GetString("config"))
	if err != nil {
		return
	}
	for _, s := range viper.GetStringSlice("set") {
		k, v, e := parseOverride(s)
		if e != nil {
			return e
		}
		config = config.With(k, v)
	}
	uri := viper.GetString("tracking-uri")
	client, err := tracking.Open(uri, tracking.Options{
		Timeout:     viper.GetDuration("timeout"),
		S3Endpoint:  viper.GetString("s3-endpoint-url"),
		S3AccessKey: viper.GetString("aws-access-key-id"),
		S3SecretKey: viper.GetString("aws-secret-access-key"),
		S3Region:    viper.GetString("aws-region"),
	})
	if err != nil {
		return &runner.TrackingError{Op: "connect " + uri, Err: err}
	}
	defer client.Close()

	r := &runner.Runner{
		Tracker:    client,
		WorkDir:    viper.GetString("artifact-dir"),
		Experiment: viper.GetString("experiment"),
		Tags:       viper.GetStringMapString("tag"),
	}
	if viper.GetBool("verbose") {
		r.Verbose = func(s string) { zlog.Info(s) }
	}
	start := time.Now()
	rec, err := r.Run(ctx, config)
	if err != nil {
		return
	}
	if viper.GetBool("verbose") {
		zlog.Info(fmt.Sprintf("run %v took %v, artifact %v", rec.RunID, time.Since(start), rec.Artifact))
	}
	fmt.Fprintln(out, rec.Summary())
	return
}

// parseOverride splits key=value and types value as bool, integer, float or string.
func parseOverride(s string) (string, interface{}, error) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", nil, &runner.ConfigError{Err: zorros.Errorf("bad override `%v`, expected key=value", s)}
	}
	k, v := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return k, b, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return k, n, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return k, f, nil
	}
	return k, v, nil
}
