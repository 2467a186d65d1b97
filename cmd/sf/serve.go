package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/chat"
	discordadapter "github.com/msaseller/storefront/internal/chat/discord"
	slackadapter "github.com/msaseller/storefront/internal/chat/slack"
	"github.com/msaseller/storefront/internal/config"
	"github.com/msaseller/storefront/internal/dashboard"
	"github.com/msaseller/storefront/internal/db"
	"github.com/msaseller/storefront/internal/orders"
	"github.com/msaseller/storefront/internal/refresh"
	"github.com/msaseller/storefront/internal/source"
	"github.com/msaseller/storefront/internal/storefront"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront daemon",
		Long:  "Connects the configured chat platforms, serves the catalog, and logs orders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "storefront.yaml", "path to config file")
	return cmd
}

// platformSetup pairs an adapter with its channel wiring.
type platformSetup struct {
	name           string
	adapter        chat.Adapter
	managerChannel string
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	index, err := catalog.NewIndex(catalog.IndexOpts{Source: src, TTL: cfg.CatalogTTL()})
	if err != nil {
		return err
	}

	gormDB, err := connectDB(cfg)
	if err != nil {
		return err
	}
	if err := orders.AutoMigrate(gormDB); err != nil {
		return err
	}

	platforms, err := buildPlatforms(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Connect platforms before wiring the sink so checkout notifications
	// can go out immediately.
	for _, p := range platforms {
		if err := p.adapter.Connect(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		defer p.adapter.Close()
		fmt.Fprintf(out, "sf: %s connected\n", p.name)
	}

	svc, err := storefront.New(storefront.ServiceOpts{
		Index: index,
		DB:    gormDB,
		Sink:  buildSink(platforms),
		Out:   out,
	})
	if err != nil {
		return err
	}

	job, err := refresh.NewJob(refresh.JobOpts{
		Warmer:      svc,
		Invalidator: src,
		CronExpr:    cfg.Catalog.RefreshCron,
		Out:         out,
	})
	if err != nil {
		return err
	}

	// Initial warm. A down source is not fatal at boot; the refresh job
	// and user-triggered warms keep retrying.
	if err := svc.WarmCatalog(ctx, true); err != nil {
		log.Printf("sf: initial catalog warm: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run(ctx)
	}()

	for _, p := range platforms {
		router, err := newPlatformRouter(svc, job, p, out)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(name string, r *chat.Router) {
			defer wg.Done()
			if err := r.Pump(ctx); err != nil && ctx.Err() == nil {
				log.Printf("sf: %s pump: %v", name, err)
			}
		}(p.name, router)
	}

	if cfg.Dashboard.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Index:     index,
				DB:        gormDB,
				Refresher: job,
				Port:      cfg.Dashboard.Port,
				Out:       out,
			})
			if err != nil {
				log.Printf("sf: dashboard: %v", err)
			}
		}()
	}

	fmt.Fprintf(out, "sf: %s is up, press Ctrl-C to stop\n", cfg.Shop)
	<-ctx.Done()
	wg.Wait()
	return nil
}

// buildSource creates the Google Sheets product source from the config.
func buildSource(cfg *config.Config) (*source.Sheets, error) {
	creds, err := os.ReadFile(cfg.Source.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", cfg.Source.CredentialsFile, err)
	}
	return source.NewSheets(source.SheetsOpts{
		CredentialsJSON: creds,
		SpreadsheetID:   cfg.Source.SpreadsheetID,
		ReadRange:       cfg.Source.ReadRange,
		TTL:             cfg.SourceTTL(),
	})
}

// connectDB opens the order-log database per the configured driver.
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DB.Driver {
	case "mysql":
		return db.ConnectMySQL(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	default:
		return db.ConnectSQLite(cfg.DB.Path)
	}
}

// buildPlatforms creates adapters for every platform with credentials.
func buildPlatforms(cfg *config.Config) ([]platformSetup, error) {
	var platforms []platformSetup

	if cfg.Discord.Token != "" {
		a, err := discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, platformSetup{
			name:           "discord",
			adapter:        a,
			managerChannel: cfg.Discord.ManagerChannel,
		})
	}

	if cfg.Slack.BotToken != "" {
		a, err := slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, platformSetup{
			name:           "slack",
			adapter:        a,
			managerChannel: cfg.Slack.ManagerChannel,
		})
	}

	if len(platforms) == 0 {
		return nil, fmt.Errorf("sf: no chat platform configured")
	}
	return platforms, nil
}

// buildSink returns the checkout notification sink: the first platform
// with a manager channel configured. Nil disables notifications.
func buildSink(platforms []platformSetup) storefront.Sink {
	for _, p := range platforms {
		if p.managerChannel == "" {
			continue
		}
		sink, err := chat.NewManagerSink(p.adapter, p.managerChannel)
		if err != nil {
			continue
		}
		return sink
	}
	return nil
}

// newPlatformRouter wires a router for one connected platform.
func newPlatformRouter(svc *storefront.Service, job *refresh.Job, p platformSetup, out io.Writer) (*chat.Router, error) {
	botUserID := ""
	if ider, ok := p.adapter.(chat.BotUserIDer); ok {
		botUserID = ider.BotUserID()
	}
	return chat.NewRouter(chat.RouterOpts{
		Service:   svc,
		Adapter:   p.adapter,
		Refresher: job,
		BotUserID: botUserID,
		Out:       out,
	})
}
