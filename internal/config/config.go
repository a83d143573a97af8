package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Configuration This struct holds config envs and values
// which are used in the gateway. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"messaging_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	// ExternalURLBase is the public base URL of the gateway, used to
	// build calendar fallback links embedded in SMS.
	ExternalURLBase string `env:"EXTERNAL_URL_BASE"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpBaseRequestUrl        string `env:"HTTP_BASE_REQUEST_URI" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	LogLevel []string `env:"LOG_LEVEL"`

	DispatchQueueName          string `env:"DISPATCH_QUEUE_NAME" default:"messages:dispatch"`
	DispatchQueueConsumerGroup string `env:"DISPATCH_QUEUE_CONSUMER_GROUP" default:"dispatchers"`
	NotifyQueueName            string `env:"NOTIFY_QUEUE_NAME" default:"messages:notify"`
	NotifyQueueConsumerGroup   string `env:"NOTIFY_QUEUE_CONSUMER_GROUP" default:"notifiers"`

	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueueRetryBackoff      time.Duration `env:"QUEUE_RETRY_BACKOFF"`
	QueueMaxBackoff        time.Duration `env:"QUEUE_MAX_BACKOFF"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	// GBMPartnerKey verifies X-Goog-Signature on Business Messages
	// webhooks.
	GBMPartnerKey   string `env:"GBM_PARTNER_KEY"`
	GBMAccessToken  string `env:"GBM_ACCESS_TOKEN"`
	GBMEndpoint     string `env:"GBM_ENDPOINT" default:"https://businessmessages.googleapis.com"`
	RCSWebhookToken string `env:"RCS_WEBHOOK_TOKEN"`
	RCSAccessToken  string `env:"RCS_ACCESS_TOKEN"`
	RCSEndpoint     string `env:"RCS_ENDPOINT" default:"https://rcsbusinessmessaging.googleapis.com"`
	SMSEndpoint     string `env:"SMS_ENDPOINT" default:"https://api.twilio.com"`
	VSMSEndpoint    string `env:"VSMS_ENDPOINT" default:"https://verifiedsms.googleapis.com"`
	VSMSAccessToken string `env:"VSMS_ACCESS_TOKEN"`

	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" default:"15s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// DispatchQueueConfig builds the queue configuration for the dispatch
// stream from the loaded environment.
func (c *Config) DispatchQueueConfig() queue.QueueConfig {
	return c.queueConfig(c.DispatchQueueName, c.DispatchQueueConsumerGroup)
}

// NotifyQueueConfig builds the queue configuration for the notify
// stream.
func (c *Config) NotifyQueueConfig() queue.QueueConfig {
	return c.queueConfig(c.NotifyQueueName, c.NotifyQueueConsumerGroup)
}

func (c *Config) queueConfig(name, group string) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              name,
		ConsumerGroup:     group,
		ConsumerName:      c.QueueConsumerName,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		RetryBackoff:      c.QueueRetryBackoff,
		MaxBackoff:        c.QueueMaxBackoff,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}
