package main

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/config"
	center "github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/cust/log"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/tracing"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger log.Logger
	tp     *sdktrace.TracerProvider
	rdb    *redis.Client
)

var rootCmd = &cobra.Command{
	Use:           "netkit",
	Short:         "Resilient REST and websocket plumbing for prediction market APIs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = center.NewLogger(cfg.LoggerConfig())
		if err != nil {
			return err
		}
		tp, err = tracing.NewProvider(cmd.Context(), cfg.TracingConfig())
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rdb != nil {
			_ = rdb.Close()
		}
		if tp != nil {
			return tp.Shutdown(context.Background())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/toml/json), optional")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(streamCmd, requestCmd, limitCmd, encryptCmd)
}

// newLimiter redis 后端时按需创建 client
func newLimiter() (limiter.Limiter, error) {
	if cfg.Limiter.Backend == config.LimiterRedis && rdb == nil {
		rdb = cfg.RedisClient()
	}
	if rdb == nil {
		return cfg.NewLimiter(nil)
	}
	return cfg.NewLimiter(rdb)
}
