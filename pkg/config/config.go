package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	pkgtls "github.com/caridad-cloud/allocation-service/pkg/tls"
)

type Config struct {
	TLS pkgtls.TLSConfig

	Port             string `envconfig:"PORT" default:"8080"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	SessionTableName string `envconfig:"SESSION_TABLE_NAME" default:"allocation-sessions-table"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`

	// Legacy donation-records API.
	DonationAPIBaseURL string `envconfig:"DONATION_API_BASE_URL" default:"http://localhost:3000/api"`
	// Fixed downstream URL for the assembly-started ping; empty disables it.
	NotificationURL string `envconfig:"NOTIFICATION_URL" default:""`

	KafkaBrokers       string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaPackageTopic  string `envconfig:"KAFKA_PACKAGE_TOPIC" default:"package-events"`
	KafkaDeliveryTopic string `envconfig:"KAFKA_DELIVERY_TOPIC" default:"delivery-events"`
	KafkaGroupID       string `envconfig:"KAFKA_GROUP_ID" default:"allocation-service"`
	KafkaEnabled       bool   `envconfig:"KAFKA_ENABLED" default:"false"`
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
