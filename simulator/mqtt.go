package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/infra/mqtt"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(broker string) (paho.Client, error) {
	opts, err := mqtt.NewClientOptions(mqtt.Config{Broker: broker})
	if err != nil {
		return nil, err
	}
	cli := paho.NewClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return cli, nil
}

// publishRanking sends the fleet ranking as a retained message.
func publishRanking(pub publisher, topic string, fleet []SimulatedResponder) error {
	payload, err := json.Marshal(struct {
		Candidates any `json:"candidates"`
	}{Candidates: Ranking(fleet)})
	if err != nil {
		return err
	}
	token := pub.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("ranking publish timeout on %s", topic)
	}
	return token.Error()
}

// runRankingPublisher republishes the ranking every interval until ctx ends.
func runRankingPublisher(ctx context.Context, pub publisher, topic string, interval time.Duration, fleet []SimulatedResponder, log logger.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := publishRanking(pub, topic, fleet); err != nil {
			log.Warnf("publish ranking: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
