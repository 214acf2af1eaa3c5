package main

import (
	"fmt"
	"os"
	"time"

	"fulfillment/config"
	"fulfillment/message"
	"fulfillment/message/poison"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const consumerGroup = "poison-queue-cli"

func newQueue(c *cli.Context) (*poison.Queue, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.NewWatermill(log.FromContext(c.Context))
	redisClient := message.NewRedisClient(cfg.RedisAddr)

	sub, err := message.NewRedisSubscriberConstructor(redisClient, logger)(consumerGroup)
	if err != nil {
		return nil, err
	}

	pub, err := message.NewRedisPublisher(redisClient, logger)
	if err != nil {
		return nil, err
	}

	return poison.NewQueue(sub, pub, c.Duration("timeout"), logger), nil
}

func main() {
	log.Init(logrus.WarnLevel)

	app := &cli.App{
		Name:  "poison-queue-cli",
		Usage: "Manage the Poison Queue",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "how long to wait for messages",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "preview messages",
				Action: func(c *cli.Context) error {
					q, err := newQueue(c)
					if err != nil {
						return err
					}

					messages, err := q.Preview(c.Context)
					if err != nil {
						return err
					}

					for _, m := range messages {
						fmt.Printf("%v\t%v\t%v\t%v\n", m.ID, m.Topic, m.Handler, m.Reason)
					}

					return nil
				},
			},
			{
				Name:      "remove",
				ArgsUsage: "<message_id>",
				Usage:     "remove message",
				Action: func(c *cli.Context) error {
					q, err := newQueue(c)
					if err != nil {
						return err
					}

					return q.Remove(c.Context, c.Args().First())
				},
			},
			{
				Name:      "requeue",
				ArgsUsage: "<message_id>",
				Usage:     "publish message back to its original topic",
				Action: func(c *cli.Context) error {
					q, err := newQueue(c)
					if err != nil {
						return err
					}

					return q.Requeue(c.Context, c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("Command failed")
	}
}
