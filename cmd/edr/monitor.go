package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/datametry/edr/cmd/edr/config"
	"github.com/datametry/edr/engine"
	"github.com/datametry/edr/monitor"
	"github.com/datametry/edr/notification"
	edrhttp "github.com/datametry/edr/pkg/http"
	"github.com/datametry/edr/pkg/logger"
	"github.com/datametry/edr/pkg/scheduler"
	"github.com/datametry/edr/pkg/service"
	"github.com/datametry/edr/pkg/version"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	devWebhookPath = "/dev/webhook"
	slackTimeout   = 30 * time.Second
)

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Aggregate new alerts in the warehouse and send them to Slack",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days-back", Aliases: []string{"d"}, Value: config.DefaultConfig.DaysBack, Usage: "Set a limit to how far back edr should look for new alerts"},
			&cli.StringFlag{Name: "slack-webhook", Aliases: []string{"s"}, Usage: "A slack webhook URL for sending alerts to a specific channel (also could be configured once in config.toml)"},
			&cli.BoolFlag{Name: "slack-workflow", Usage: "Send alerts as Slack workflow variables"},
			&cli.StringFlag{Name: "config-dir", Aliases: []string{"c"}, Value: config.DefaultConfigDir(), Usage: "Directory holding the edr config.toml"},
			&cli.StringFlag{Name: "profiles-dir", Aliases: []string{"p"}, Value: config.DefaultConfig.ProfilesDir, Usage: "Directory where a dbt profiles.yml is located"},
			&cli.StringFlag{Name: "project-dir", Usage: "Directory of the internal dbt project"},
			&cli.BoolFlag{Name: "update-dbt-package", Aliases: []string{"u"}, Usage: "Force downloading the latest version of the edr internal dbt package"},
			&cli.BoolFlag{Name: "full-refresh-dbt-package", Aliases: []string{"f"}, Usage: "Force a full refresh of all incremental models in the edr dbt package"},
			&cli.BoolFlag{Name: "alerts-only", Value: true, Usage: "Only aggregate and send alerts, skip building models and running data tests"},
			&cli.DurationFlag{Name: "interval", Usage: "Run the monitor periodically at this interval instead of once"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Address to serve /metrics and /healthz on"},
			&cli.BoolFlag{Name: "dev", Usage: "Run on a local dev machine without a warehouse or Slack"},
		},
		Action: realMain,
	}
}

// applyFlags overrides file values with the flags that were set explicitly.  The webhook flag is kept
// out of the config so a reloaded file cannot replace it.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("days-back") {
		cfg.DaysBack = c.Int("days-back")
	}
	if c.IsSet("slack-workflow") {
		cfg.SlackWorkflow = c.Bool("slack-workflow")
	}
	if c.IsSet("profiles-dir") {
		cfg.ProfilesDir = c.String("profiles-dir")
	}
	if c.IsSet("project-dir") {
		cfg.ProjectDir = c.String("project-dir")
	}
	if c.IsSet("interval") {
		cfg.IntervalSeconds = int(c.Duration("interval") / time.Second)
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
}

func realMain(c *cli.Context) error {
	logger.Infof("%s version:%s", os.Args[0], version.String())
	logger.Infof("Any feedback and suggestions are welcomed!")

	cfg, path, err := config.LoadDir(c.String("config-dir"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	webhook := c.String("slack-webhook")
	if webhook != "" {
		if err := config.ValidateWebhook(webhook); err != nil {
			return cli.Exit("slack-webhook "+err.Error(), 1)
		}
	}

	svcCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dev := c.Bool("dev")
	var (
		components service.Group
		srv        *edrhttp.HttpServer
	)
	metricsAddr := cfg.MetricsAddr
	if dev && metricsAddr == "" {
		metricsAddr = "127.0.0.1:0"
	}
	if metricsAddr != "" {
		srv = edrhttp.NewServer(&edrhttp.ServerOpts{ListenAddr: metricsAddr})
		if dev {
			srv.RegisterHandler(devWebhookPath, notification.NewFakeHandler())
		}
		components = append(components, srv)
	}

	if err := components.Open(svcCtx); err != nil {
		return err
	}
	if dev {
		webhook = "http://" + srv.Addr() + devWebhookPath
		logger.Warnf("Running in dev mode: no dbt commands are executed and alerts are posted to %s", webhook)
	}

	r := &monitorRunner{
		webhook: webhook,
		channel: notification.NewSlack(slackTimeout),
		newEngine: func(cfg *config.Config) (engine.Engine, error) {
			if dev {
				return engine.NewFake(), nil
			}
			cliEngine, err := engine.NewCLI(engine.CLIOpts{
				Binary:      cfg.DbtBinary,
				ProjectDir:  cfg.ProjectDir,
				ProfilesDir: cfg.ProfilesDir,
				Target:      cfg.Target,
			})
			if err != nil {
				return nil, err
			}
			return cliEngine, nil
		},
		runOpts: monitor.RunOptions{
			ForceUpdatePackage: c.Bool("update-dbt-package"),
			FullRefresh:        c.Bool("full-refresh-dbt-package"),
			AlertsOnly:         c.Bool("alerts-only"),
		},
	}
	r.cfg.Store(cfg)

	g, gctx := errgroup.WithContext(svcCtx)
	if interval := cfg.Interval(); interval > 0 {
		logger.Infof("Running monitor every %s", interval)
		g.Go(func() error {
			scheduler.RunForever(gctx, interval, r.scheduled())
			return nil
		})
		g.Go(func() error {
			err := config.Watch(gctx, path, func(next *config.Config) {
				applyFlags(c, next)
				r.cfg.Store(next)
			})
			if err != nil {
				logger.Warnf("Config reload disabled, cannot watch %s: %s", path, err)
			}
			return nil
		})
	} else {
		g.Go(func() error {
			defer cancel()
			return r.Run(gctx)
		})
	}
	if srv != nil {
		g.Go(func() error {
			select {
			case err, ok := <-srv.Err():
				if ok && err != nil {
					return fmt.Errorf("metrics server: %w", err)
				}
			case <-gctx.Done():
			}
			return nil
		})
	}

	err = g.Wait()
	return multierr.Append(err, components.Close())
}

// monitorRunner builds a fresh Monitor from the latest config for every run.
type monitorRunner struct {
	cfg       atomic.Pointer[config.Config]
	webhook   string
	channel   notification.Channel
	newEngine func(cfg *config.Config) (engine.Engine, error)

	runOpts monitor.RunOptions
	runs    atomic.Int64
}

func (r *monitorRunner) scheduled() scheduler.Runner {
	return scheduler.RunnerFunc{N: "monitor", Fn: r.Run}
}

func (r *monitorRunner) Run(ctx context.Context) error {
	cfg := r.cfg.Load()

	eng, err := r.newEngine(cfg)
	if err != nil {
		return err
	}

	m, err := monitor.New(monitor.Options{
		Engine:         eng,
		Channel:        r.channel,
		Paths:          monitor.NewPaths(cfg.ProjectDir, cfg.PackageName),
		DaysBack:       cfg.DaysBack,
		Webhook:        r.webhook,
		DefaultWebhook: cfg.SlackWebhook,
		Workflow:       cfg.SlackWorkflow,
	})
	if err != nil {
		return err
	}

	opts := r.runOpts
	// Package updates and full refreshes are one-off requests and only apply to the first run.
	if r.runs.Add(1) > 1 {
		opts.ForceUpdatePackage = false
		opts.FullRefresh = false
	}

	err = m.Run(ctx, opts)
	logger.Info("Monitoring run finished", "properties", m.Properties())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
