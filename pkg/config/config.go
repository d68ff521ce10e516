package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules applied to the main logger
	MigrationSourceURL string // location of migration files (empty: embedded)
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry ("stdout" for local debugging)
	ProfilingPort      int    // port for profiling
	ServerAddr         string // listen addr for the http server
	TLSCertFile        string // path to TLS certificate
	TLSKeyFile         string // path to TLS key
	TLSCAFile          string // path to TLS CA
	TraefikCerts       string // path to traefik acme.json
	TraefikCertDomain  string // domain to look up in the traefik certs
	NatsURL            string // url of the nats server, empty disables notifications
	ShutdownTimeout    string // max duration for graceful shutdown
	APIURL             string // base url of the rally api (client command)
	RandomSeed         int64  // seed for the variance source, 0 means time based
)

// Config holds the configuration values which are used by the application
type Config struct {
	PrintRequests bool // if true, request bodies are logged on debug level
}
