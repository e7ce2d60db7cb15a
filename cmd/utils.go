package cmd

import (
	"flag"
	"log"

	"rl-verifier/internal/config"
	"rl-verifier/internal/messaging"
)

// LoadEnvFile loads the file passed with -env, if any, into the environment.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if err := config.LoadEnvFile(configPath); err != nil {
		log.Fatalf("%v", err)
	}
}

// CreateEventQueue returns the publisher and reciever for reward events. Events
// go through RabbitMQ when a url is configured and stay in process otherwise.
// Both are nil when recording is disabled.
func CreateEventQueue(cfg config.ServerConfig) (messaging.Publisher, messaging.Reciever) {
	if !cfg.RecordRewards {
		log.Println("reward recording disabled")
		return nil, nil
	}

	if cfg.RabbitMQURL == "" {
		queue := messaging.NewInMemoryQueue()
		return queue, queue
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to create RabbitMQ receiver: %v", err)
	}

	return publisher, reciever
}
