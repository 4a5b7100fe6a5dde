// Package serve wires the whole service together and runs it: config,
// stores, downstream clients, the conversation engine, the outbox drainer
// and the webhook gateway.
package serve

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/clearrail/claimflow/breaker"
	"github.com/clearrail/claimflow/config"
	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/gateway"
	"github.com/clearrail/claimflow/handlers"
	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/services"
	"github.com/clearrail/claimflow/shutdown"
	"github.com/clearrail/claimflow/store/dynamo"
	"github.com/clearrail/claimflow/store/memory"
)

// stateStore is what both store backends provide.
type stateStore interface {
	conversation.Store
	outbox.Store
}

// NewServeCommand runs the service until SIGINT/SIGTERM.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the claimflow conversation service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "claimflow.yaml", "path to the configuration file")

	return cmd
}

func run(configPath string) error {
	logger.ConfigureLogging("claimflow")
	log := logger.Get()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := shutdown.SetupHandler()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	breakers := breaker.NewRegistry(
		breaker.WithThreshold(cfg.Client.BreakerThreshold),
		breaker.WithCooldown(cfg.Client.BreakerCooldown),
	)

	newClient := func(name, baseURL string) *httpclient.Client {
		return httpclient.New(name, baseURL,
			httpclient.WithTimeout(cfg.Client.Timeout),
			httpclient.WithRetries(cfg.Client.Retries),
			httpclient.WithBaseDelay(cfg.Client.BaseDelay),
			httpclient.WithBreaker(breakers.Get(name)),
		)
	}

	dispatcher := handlers.NewDispatcher(handlers.Deps{
		Routes:      services.NewRoutesClient(newClient("routes", cfg.Downstreams.RoutesURL)),
		Eligibility: services.NewEligibilityClient(newClient("eligibility", cfg.Downstreams.EligibilityURL)),
		Tracking:    services.NewTrackingClient(newClient("tracking", cfg.Downstreams.TrackingURL)),
	})

	engine, err := conversation.NewEngine(st, dispatcher)
	if err != nil {
		return fmt.Errorf("building conversation engine: %w", err)
	}

	var publisher outbox.Publisher = outbox.LogPublisher{}
	if cfg.Outbox.SinkURL != "" {
		publisher = outbox.NewWebhookPublisher(newClient("events", cfg.Outbox.SinkURL))
	}

	drainer := outbox.NewDrainer(st, publisher,
		outbox.WithInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithWorkers(cfg.Outbox.Workers),
	)

	drainerCtx, stopDrainer := context.WithCancel(context.Background())
	drainerDone := make(chan struct{})
	go func() {
		defer close(drainerDone)
		_ = drainer.Run(drainerCtx)
	}()

	var verifier gateway.Verifier = gateway.InsecureVerifier{}
	if cfg.Gateway.WebhookSecret != "" {
		verifier = gateway.NewHMACVerifier(cfg.Gateway.WebhookSecret)
	} else {
		log.Warn("webhook secret not set, signature verification disabled")
	}

	server := gateway.New(cfg.Gateway.Addr(), engine, verifier)

	// Hooks run in reverse order: stop taking requests first, then let
	// the drainer flush what those requests appended.
	shutdown.OnShutdown("outbox drainer", func() {
		stopDrainer()
		<-drainerDone
	})
	shutdown.OnShutdown("gateway", func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(drainCtx)
	})

	log.Info("claimflow listening",
		"addr", cfg.Gateway.Addr(),
		"store", cfg.Store.Provider)

	if err := server.Run(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	<-ctx.Done()

	return nil
}

func buildStore(ctx context.Context, cfg *config.Config) (stateStore, error) {
	switch cfg.Store.Provider {
	case "dynamo":
		awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}

		return dynamo.New(dynamodb.NewFromConfig(awscfg), cfg.Store.SessionsTable, cfg.Store.OutboxTable)
	default:
		return memory.New(), nil
	}
}
