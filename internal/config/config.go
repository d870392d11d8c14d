package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	APIURL      string `env:"API_URL" envDefault:"http://localhost:8080/api"`

	Database Database `envPrefix:"DB_"`
	Checkout Checkout `envPrefix:"CHECKOUT_"`
	Webhook  Webhook  `envPrefix:"WEBHOOK_"`
	NATS     NATS     `envPrefix:"NATS_"`
}

// Database is the local store that replaces browser storage: the session
// token, the cached cart count and processed webhook deliveries.
type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // sqlite | mysql
	DSN    string `env:"DSN" envDefault:"shop-session.db"`
}

type Checkout struct {
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	PaymentTimeout     time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"5m"`
	ReturnPollAttempts int           `env:"RETURN_POLL_ATTEMPTS" envDefault:"20"`
	OrderIDPrefix      string        `env:"ORDER_ID_PREFIX" envDefault:"ORD_"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type Webhook struct {
	Secret      string  `env:"SECRET"`
	BackendURL  string  `env:"BACKEND_URL"`
	ForwardPath string  `env:"FORWARD_PATH" envDefault:"/api/user/webhook/cashfree"`
	RateLimit   float64 `env:"RATE_LIMIT" envDefault:"20"`
}

type NATS struct {
	URL string `env:"URL"` // empty disables event publishing
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8081"`
}
