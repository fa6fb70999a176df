package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/dagaz/featureflag"
	dagazhttp "github.com/aukilabs/dagaz/http"
	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/smoketest"
	"github.com/aukilabs/dagaz/spatial"
	dwebsocket "github.com/aukilabs/dagaz/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Dagaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "dagaz_info",
		Help:        "Dagaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"DAGAZ_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"DAGAZ_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"DAGAZ_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"DAGAZ_LOG_INDENT"           help:"Indent logs."`
	MinNodes           int           `cli:""        env:"DAGAZ_MIN_NODES"            help:"The minimum number of children of a spatial index node."`
	MaxNodes           int           `cli:""        env:"DAGAZ_MAX_NODES"            help:"The maximum number of children of a spatial index node."`
	ReinsertFactor     float64       `cli:",hidden" env:"DAGAZ_REINSERT_FACTOR"      help:"The share of an overflowing node children that get reinserted before splitting."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"DAGAZ_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle stream client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"DAGAZ_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"DAGAZ_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"DAGAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"DAGAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"DAGAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"DAGAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		LogLevel:           logs.InfoLevel.String(),
		MinNodes:           spatial.DefaultMinNodes,
		MaxNodes:           spatial.DefaultMaxNodes,
		ReinsertFactor:     spatial.DefaultReinsertFactor,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Dagaz server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	featureFlags := featureflag.New(conf.FeatureFlags)

	indexOptions, err := newIndexOptions(conf, featureFlags)
	if err != nil {
		logs.Fatal(err)
	}

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "dagaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	scenes := models.SceneStore{
		NewIndex: func(sceneName string) (*spatial.Index[*models.Object], error) {
			opts := append([]spatial.Option{spatial.WithName(sceneName)}, indexOptions...)
			return spatial.New[*models.Object](conf.MinNodes, conf.MaxNodes, opts...)
		},
	}

	api := dagazhttp.API{Scenes: &scenes}
	apiHandler := dagazhttp.HandleWithCORS(api.Handler())

	var service http.ServeMux
	service.Handle("/scenes", apiHandler)
	service.Handle("/scenes/", apiHandler)
	service.HandleFunc("/health", dagazhttp.HandleHealthCheck)
	service.Handle("/version", dagazhttp.HandleWithCORS(dagazhttp.HandleVersion(version)))

	featureFlags.IfNotSet(featureflag.FlagDisableQueryStream, func() {
		service.Handle("/stream", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h dwebsocket.Handler = &dwebsocket.StreamHandler{
					ClientIdleTimeout: conf.ClientIdleTimeout,
					Scenes:            &scenes,
				}
				h = dwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = dwebsocket.HandlerWithMetrics(h)
				defer h.Close()

				dwebsocket.Handle(ctx, conn, h)
			},
		})
	})

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.Handle("/ready", dagazhttp.HandleWithCORS(dagazhttp.HandleReadyCheck(readinessCheck)))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", dagazhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", dagazhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	debug := dagazhttp.Debug{Scenes: &scenes}
	debug.Register(&admin)

	featureFlags.IfNotSet(featureflag.FlagDisableSmokeTest, func() {
		admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(smoketest.Options{
			MinNodes:     conf.MinNodes,
			MaxNodes:     conf.MaxNodes,
			IndexOptions: indexOptions,
			Timeout:      time.Minute,
		}))
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("min_nodes", conf.MinNodes).
		WithTag("max_nodes", conf.MaxNodes).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting dagaz server")

	if err := dagazhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			dagazhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	); err != nil {
		logs.Fatal(err)
	}
}

// newIndexOptions validates the spatial index configuration and returns the
// options used to create the index of each scene.
func newIndexOptions(conf config, featureFlags featureflag.FeatureFlag) ([]spatial.Option, error) {
	opts := []spatial.Option{
		spatial.WithReinsertFactor(conf.ReinsertFactor),
	}
	featureFlags.IfSet(featureflag.FlagDisableForcedReinsert, func() {
		opts = append(opts, spatial.WithoutForcedReinsert())
	})

	if _, err := spatial.New[*models.Object](conf.MinNodes, conf.MaxNodes, opts...); err != nil {
		return nil, errors.New("invalid spatial index configuration").Wrap(err)
	}
	return opts, nil
}
