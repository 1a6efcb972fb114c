package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/broker/kafka"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/exchange/polymarket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/sampler"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/sampler/bytime"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/wsmanager/manager"
)

var (
	streamAssets  []string
	streamMarkets []string
	streamChannel string
	streamKafka   bool
	streamSample  time.Duration
)

var streamCmd = &cobra.Command{
	Use:     "stream",
	Short:   "Connect a Polymarket stream and print or forward messages",
	Example: "  netkit stream --asset 7132...  --kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		if streamChannel != polymarket.ChannelMarket && streamChannel != polymarket.ChannelUser {
			return fmt.Errorf("unknown channel %q", streamChannel)
		}
		if streamChannel == polymarket.ChannelMarket && len(streamAssets) == 0 {
			return errors.New("at least one --asset is required for the market channel")
		}
		if streamChannel == polymarket.ChannelUser && len(streamMarkets) == 0 {
			return errors.New("at least one --market is required for the user channel")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		h := log.NewHelper(logger)

		pm := polymarket.New(cfg.Credentials())
		c, err := pm.NewStream(streamChannel, append(cfg.StreamOptions(), stream.WithLogger(logger))...)
		if err != nil {
			return err
		}

		var cb stream.Callback = func(msg *stream.Message) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.Key, msg.Raw)
			return nil
		}
		if streamKafka {
			if cfg.Kafka.Topic == "" {
				return errors.New("kafka.topic is not configured")
			}
			pub := kafka.NewPublisher(append(cfg.KafkaOptions(), kafka.WithLogger(logger))...)
			defer pub.Close()
			cb = pub.StreamListener(ctx, cfg.Kafka.Topic, polymarket.Name)
			onConnect, onDisconnect := pub.StatusListeners(ctx, cfg.Kafka.Topic, c)
			c.OnConnect(onConnect)
			c.OnDisconnect(onDisconnect)
		}
		if streamSample > 0 {
			cb = sampleCallback(cmd, streamSample)
		}
		c.OnMessage(cb)
		c.SetFallbackTrigger(func() {
			h.Errorf("stream gave up reconnecting, switch to REST polling")
			stop()
		})

		m := manager.NewManager(manager.WithLogger(logger), manager.WithMaxConn(1))
		defer m.Shutdown()
		if _, err := m.AddStream(ctx, c); err != nil {
			return err
		}

		if err := subscribeAll(c, cb); err != nil {
			return err
		}

		<-ctx.Done()
		h.Infof("received %d frames, %d dropped", c.Pipeline().Received(), c.Pipeline().Dropped())
		return nil
	},
}

// sampleCallback 每个 asset 一个采样器，输出每个区间的 OHLC 与买卖量
func sampleCallback(cmd *cobra.Command, interval time.Duration) stream.Callback {
	samplers := make(map[string]stream.Callback)
	emit := func(a *sampler.AggregatedTrade) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s o=%s h=%s l=%s c=%s buy=%s sell=%s\n",
			a.AssetID, time.UnixMilli(a.Timestamp).UTC().Format(time.RFC3339),
			a.OpenPrice.Price, a.HighestPrice.Price, a.LowestPrice.Price, a.ClosePrice.Price,
			a.TotalBuySize, a.TotalSellSize)
	}
	return func(msg *stream.Message) error {
		asset := msg.GetString("asset_id")
		if asset == "" {
			return nil
		}
		l, ok := samplers[asset]
		if !ok {
			l = sampler.Listener(bytime.NewByTime(interval.Milliseconds()), polymarket.ParseTrade, emit)
			samplers[asset] = l
		}
		return l(msg)
	}
}

// subscribeAll 已订阅的消息交给 cb，其余的由 OnMessage 处理
func subscribeAll(c *stream.Client, cb stream.Callback) error {
	for _, a := range streamAssets {
		if err := polymarket.SubscribeBook(c, a, cb); err != nil {
			return fmt.Errorf("subscribe %s: %w", a, err)
		}
	}
	for _, m := range streamMarkets {
		if err := polymarket.SubscribeUser(c, m, cb); err != nil {
			return fmt.Errorf("subscribe %s: %w", m, err)
		}
	}
	return nil
}

func init() {
	streamCmd.Flags().StringArrayVar(&streamAssets, "asset", nil, "token id to subscribe on the market channel, repeatable")
	streamCmd.Flags().StringArrayVar(&streamMarkets, "market", nil, "condition id to subscribe on the user channel, repeatable")
	streamCmd.Flags().StringVar(&streamChannel, "channel", polymarket.ChannelMarket, "market or user")
	streamCmd.Flags().BoolVar(&streamKafka, "kafka", false, "forward messages to kafka.topic instead of stdout")
	streamCmd.Flags().DurationVar(&streamSample, "sample", 0, "print trade bars of this interval instead of raw messages")
}
