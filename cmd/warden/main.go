package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	_ "go.uber.org/automaxprocs"

	"github.com/nomi-labs/guardian/moderation"
	"github.com/nomi-labs/guardian/moderation/detector"
	"github.com/nomi-labs/guardian/moderation/engine"
	"github.com/nomi-labs/guardian/moderation/ledger"
	"github.com/nomi-labs/guardian/moderation/sanction"
	"github.com/nomi-labs/guardian/moderation/warning"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "chat moderation daemon (keeps the room civil)",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the moderation API",
			Value:   ":3899",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3898",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for the points ledger and sanction store",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string for the durable sanction store",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "lists-file",
			Usage:   "path to JSON file with badword, spam phrase, and domain lists",
			EnvVars: []string{"WARDEN_LISTS_FILE"},
		},
		&cli.Int64SliceFlag{
			Name:    "admin-id",
			Usage:   "user ID exempt from moderation (repeatable)",
			EnvVars: []string{"WARDEN_ADMIN_IDS"},
		},
		&cli.Int64SliceFlag{
			Name:    "link-friendly-group",
			Usage:   "group ID where plain links are tolerated (repeatable)",
			EnvVars: []string{"WARDEN_LINK_FRIENDLY_GROUPS"},
		},
		&cli.IntFlag{
			Name:    "eval-rate-limit",
			Usage:   "max message evaluations per second accepted over the API",
			Value:   200,
			EnvVars: []string{"WARDEN_EVAL_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("warden"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		lists := detector.DefaultLists()
		if path := cctx.String("lists-file"); path != "" {
			var err error
			lists, err = detector.LoadListsFile(path)
			if err != nil {
				return fmt.Errorf("loading moderation lists: %w", err)
			}
			logger.Info("loaded moderation lists", "path", path)
		}

		pol := moderation.DefaultPolicyConfig()
		pol.AdminIDs = cctx.Int64Slice("admin-id")

		linkOK := make(map[int64]bool)
		for _, gid := range cctx.Int64Slice("link-friendly-group") {
			linkOK[gid] = true
		}

		var led ledger.Ledger
		var sancs sanction.Store
		switch {
		case cctx.String("redis-url") != "":
			redisURL := cctx.String("redis-url")
			rl, err := ledger.NewRedisLedger(redisURL, pol.DecayWindow)
			if err != nil {
				return fmt.Errorf("initializing redis ledger: %w", err)
			}
			led = rl
			rs, err := sanction.NewRedisStore(redisURL)
			if err != nil {
				return fmt.Errorf("initializing redis sanction store: %w", err)
			}
			sancs = rs
			logger.Info("using redis-backed stores")
		case cctx.String("database-url") != "":
			db, err := sanction.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
			if err != nil {
				return err
			}
			gs, err := sanction.NewGormStore(db)
			if err != nil {
				return fmt.Errorf("initializing database sanction store: %w", err)
			}
			led = ledger.NewMemLedger()
			sancs = gs
			logger.Info("using database-backed sanction store",
				"note", "violation points stay in-process and reset on restart; sanctions survive")
		default:
			led = ledger.NewMemLedger()
			sancs = sanction.NewMemStore()
			logger.Info("using in-process stores")
		}

		eng, err := engine.New(logger, led, sancs, warning.NewMemStore(), engine.Config{
			Policy: pol,
			Detectors: []detector.Detector{
				detector.NewFloodDetector(detector.DefaultFloodConfig()),
				detector.NewSpamDetector(detector.DefaultSpamConfig(), lists.SpamPhrases),
				detector.NewLinkDetector(detector.DefaultLinkConfig(), lists.AllowedDomains, lists.BlockedDomains),
				detector.NewProfanityDetector(lists.Badwords, lists.Whitelist),
			},
			LinkFriendlyGroups: linkOK,
		})
		if err != nil {
			return err
		}

		srv := NewServer(eng, Config{
			Logger:        logger,
			EvalRateLimit: cctx.Int("eval-rate-limit"),
		})

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		go func() {
			if err := eng.RunSweepers(ctx); err != nil {
				slog.Error("sweepers stopped", "error", err)
			}
		}()

		if err := srv.Run(ctx, cctx.String("bind")); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
