package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/exchange/polymarket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
)

var (
	reqAuth   bool
	reqParams []string
	reqData   string
	reqBase   string
)

var requestCmd = &cobra.Command{
	Use:     "request METHOD PATH",
	Short:   "Send one request through the rate-limited, retrying transport",
	Example: "  netkit request GET /markets --param next_cursor=MA==",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLimiter()
		if err != nil {
			return err
		}
		opts := append(cfg.RequestOptions(),
			requests.Limiter(l),
			requests.Logger(logger),
		)
		if reqBase != "" {
			opts = append(opts, requests.BaseUrl(reqBase))
		}
		c, err := polymarket.New(cfg.Credentials()).NewRestClient(opts...)
		if err != nil {
			return err
		}

		params := requests.Params{}
		for _, p := range reqParams {
			k, v, ok := strings.Cut(p, "=")
			if !ok {
				return fmt.Errorf("invalid --param %q, expected key=value", p)
			}
			params[k] = v
		}
		r := &requests.Request{
			Method:       strings.ToUpper(args[0]),
			Path:         args[1],
			Params:       params,
			AuthRequired: reqAuth,
		}
		if reqData != "" {
			r.Body = reqData
		}

		resp, err := c.Do(cmd.Context(), r)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "HTTP %d in %s (%d attempts)\n", resp.StatusCode, resp.Elapsed, resp.Attempts)
		fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
		return nil
	},
}

func init() {
	requestCmd.Flags().BoolVar(&reqAuth, "auth", false, "sign the request with L2 credentials")
	requestCmd.Flags().StringArrayVar(&reqParams, "param", nil, "query parameter key=value, repeatable")
	requestCmd.Flags().StringVar(&reqData, "data", "", "raw JSON request body")
	requestCmd.Flags().StringVar(&reqBase, "base-url", "", "override the REST base URL")
}
