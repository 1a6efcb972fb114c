package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

var (
	limitRate    string
	limitN       int
	limitBackend string
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Acquire tokens from the configured limiter and print the waits",
	RunE: func(cmd *cobra.Command, args []string) error {
		capacity, interval, err := limiter.ParseRate(limitRate)
		if err != nil {
			return err
		}
		cfg.Limiter.Capacity = capacity
		cfg.Limiter.Interval = interval
		if limitBackend != "" {
			cfg.Limiter.Backend = limitBackend
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		l, err := newLimiter()
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 1; i <= limitN; i++ {
			waited, err := l.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  +%-10s waited %s\n",
				i, time.Since(start).Truncate(time.Millisecond), waited.Truncate(time.Millisecond))
		}
		return nil
	},
}

func init() {
	limitCmd.Flags().StringVar(&limitRate, "rate", "5/1s", "capacity per interval, e.g. 10/1s")
	limitCmd.Flags().IntVarP(&limitN, "n", "n", 20, "number of tokens to acquire")
	limitCmd.Flags().StringVar(&limitBackend, "backend", "", "memory, xrate, window or redis")
}
