package queue

import "time"

// Config holds the broker and topology settings
type Config struct {
	URL                string `env:"AMQP_URL"`
	Enabled            bool   `env:"QUEUE_ENABLED" envDefault:"true"`
	Prefix             string `env:"QUEUE_PREFIX"`
	Exchange           string `env:"QUEUE_EXCHANGE" envDefault:"seoflow.jobs"`
	DeadLetterExchange string `env:"QUEUE_DLX" envDefault:"seoflow.jobs.dlx"`
	Queue              string `env:"QUEUE_NAME" envDefault:"seoflow.jobs.q"`
	DeadLetterQueue    string `env:"QUEUE_DLQ" envDefault:"seoflow.jobs.dlq"`
	Prefetch           int    `env:"QUEUE_PREFETCH" envDefault:"5"`
	MessageTTLMillis   int64  `env:"QUEUE_MESSAGE_TTL" envDefault:"0"`
	RedriveMaxRetries  int    `env:"QUEUE_REDRIVE_MAX_RETRIES" envDefault:"3"`

	DialTimeout time.Duration `env:"QUEUE_DIAL_TIMEOUT" envDefault:"5s"`
}

// DefaultDialTimeout bounds a broker dial when Config.DialTimeout is unset.
const DefaultDialTimeout = 5 * time.Second

// DefaultConfig mirrors the envDefault tags for code that does not read the environment.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Exchange:           "seoflow.jobs",
		DeadLetterExchange: "seoflow.jobs.dlx",
		Queue:              "seoflow.jobs.q",
		DeadLetterQueue:    "seoflow.jobs.dlq",
		Prefetch:           5,
		RedriveMaxRetries:  3,
		DialTimeout:        DefaultDialTimeout,
	}
}

// Topology is the resolved set of broker object names.
type Topology struct {
	Exchange           string
	DeadLetterExchange string
	Queue              string
	DeadLetterQueue    string
	Prefetch           int
	MessageTTL         time.Duration
}

// Topology applies the shared prefix to every name.
func (c Config) Topology() Topology {
	return Topology{
		Exchange:           c.prefixed(c.Exchange),
		DeadLetterExchange: c.prefixed(c.DeadLetterExchange),
		Queue:              c.prefixed(c.Queue),
		DeadLetterQueue:    c.prefixed(c.DeadLetterQueue),
		Prefetch:           max(1, c.Prefetch),
		MessageTTL:         time.Duration(max(0, c.MessageTTLMillis)) * time.Millisecond,
	}
}

func (c Config) prefixed(name string) string {
	if c.Prefix == "" {
		return name
	}
	return c.Prefix + "." + name
}
