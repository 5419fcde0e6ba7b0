package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"transfer-core/internal/event"
	"transfer-core/internal/service/mq"
	"transfer-core/pkg/config"
	"transfer-core/pkg/database"
)

var eventsGroup string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅已确认转账的事件流",
	Long:  `从 Redis Streams 或 Kafka 读取 TransferRecordedEvent 并逐条打印，Ctrl+C 退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Global
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		topic := cfg.Events.Topic
		if topic == "" {
			topic = event.DefaultTopic
		}

		var consumer mq.Consumer
		switch cfg.Events.Type {
		case "redis":
			rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()
			consumer = mq.NewRedisConsumer(rdb, eventsGroup, "cli-"+uuid.NewString()[:8])
		case "kafka":
			consumer = mq.NewKafkaConsumer(cfg.Kafka.Brokers, eventsGroup)
		default:
			return fmt.Errorf("events.type=%q has no event stream", cfg.Events.Type)
		}
		defer consumer.Close()

		return consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			var ev event.TransferRecordedEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				// 格式错误的消息直接跳过
				fmt.Printf("skip malformed message %s: %v\n", msg.ID, err)
				return nil
			}
			fmt.Printf("[%s] #%d %s -> %s %s ETH (%s) %s\n",
				ev.ConfirmedAt.Format("2006-01-02 15:04:05"), ev.TransactionCount,
				ev.From, ev.To, ev.Amount, ev.Keyword, ev.TxHash)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsGroup, "group", "transfer-cli", "消费者组")
}
