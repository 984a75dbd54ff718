// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/api"
	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/bootstrap"
	"github.com/omnihub-ai/omnihub/pkg/channels"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/instances"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/mcphub"
	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/timers"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

func newHubCmd() *cobra.Command {
	var (
		transport string
		host      string
		port      int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Start the hub server",
		Long: `Start the hub: bootstrap the store, then serve the REST API and the
MCP protocol over streamable HTTP. With --transport stdio the process
instead speaks MCP on stdin/stdout for a single local user, and the REST
API is not started.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHub(cmd.Context(), transport, host, port, timeout)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "http", "Protocol transport (http or stdio)")
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides the stored value)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides the stored value)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0,
		"Stop after this duration and exit 124 (used by integration harnesses)")
	return cmd
}

// hubServices is everything built on top of a bootstrapped store.
type hubServices struct {
	result   *bootstrap.Result
	hub      *mcphub.Hub
	channels *channels.Manager
	timers   *timers.Manager
	deps     api.Deps
}

func buildHub(ctx context.Context) (*hubServices, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	result, err := bootstrap.Run(ctx, bootstrap.Options{
		DatabasePath: dbPath,
		ChannelDir:   channelDir(),
	})
	if err != nil {
		return nil, err
	}

	reg := registry.New(result.Store)
	if err := reg.Sync(ctx); err != nil {
		result.Store.Close()
		return nil, fmt.Errorf("failed to sync tool registry: %w", err)
	}

	auditor := audit.NewAuditor(result.Store)
	authn := auth.NewAuthenticator(result.Store, result.Config, auditor)
	tools := usertools.NewManager(result.Store, reg, result.Cipher)
	insts := instances.NewManager(tools)

	cfg, err := result.Config.Get(ctx)
	if err != nil {
		result.Store.Close()
		return nil, err
	}
	chanDir := cfg.ChannelDir
	if chanDir == "" {
		chanDir = channelDir()
	}

	chans := channels.NewManager(chanDir)
	tmrs := timers.NewManager()
	hub := mcphub.New(mcphub.Config{
		Tools:    tools,
		Channels: chans,
		Timers:   tmrs,
		Auditor:  auditor,
		Auth:     authn,
	})

	return &hubServices{
		result:   result,
		hub:      hub,
		channels: chans,
		timers:   tmrs,
		deps: api.Deps{
			Store:     result.Store,
			Config:    result.Config,
			Cipher:    result.Cipher,
			Registry:  reg,
			Tools:     tools,
			Instances: insts,
			Auditor:   auditor,
			Auth:      authn,
			Hub:       hub.Handler(),
		},
	}, nil
}

func runHub(ctx context.Context, transport, host string, port int, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	svc, err := buildHub(ctx)
	if err != nil {
		return err
	}
	defer svc.result.Store.Close()

	svc.deps.Auditor.StartRetentionLoop(ctx)
	go channelJanitor(ctx, svc.channels)

	switch transport {
	case "stdio":
		err = runStdio(ctx, svc)
	case "http":
		err = runHTTP(ctx, svc, host, port)
	default:
		return fmt.Errorf("unknown transport %q (want http or stdio)", transport)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrExpectedTimeout
	}
	return err
}

// channelJanitor removes channels that have sat idle for a day. Runs
// hourly until shutdown.
func channelJanitor(ctx context.Context, chans *channels.Manager) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := chans.Cleanup(ctx, 24)
			if err != nil {
				logger.Warnf("channel cleanup failed: %v", err)
			} else if len(removed) > 0 {
				logger.Infof("removed %d idle channels", len(removed))
			}
		}
	}
}

// runStdio serves MCP on stdin/stdout for a single local user. In local
// mode the pre-provisioned admin is the implicit caller; unconfigured and
// workos deployments get an anonymous session that can only use the
// catalogue tools.
func runStdio(ctx context.Context, svc *hubServices) error {
	cfg, err := svc.result.Config.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.AppMode == config.ModeLocal && cfg.LocalAdminEmail != "" {
		if user, err := svc.result.Store.GetUserByEmail(ctx, cfg.LocalAdminEmail); err == nil {
			svc.hub = mcphub.New(mcphub.Config{
				Tools:    svc.deps.Tools,
				Channels: svc.channels,
				Timers:   svc.timers,
				Auditor:  svc.deps.Auditor,
				StaticIdentity: &auth.Identity{
					UserID:       user.ID,
					Email:        user.Email,
					WorkspaceID:  user.WorkspaceID,
					Role:         user.Role,
					IsSuperAdmin: user.IsSuperAdmin,
					AuthMethod:   auth.MethodStatic,
				},
			})
		}
	}
	logger.Infof("serving MCP on stdio")
	return svc.hub.ServeStdio(ctx)
}

// runHTTP serves the REST API and the MCP HTTP transport until shutdown,
// restarting the listener when the server-control API asks for it.
func runHTTP(ctx context.Context, svc *hubServices, hostOverride string, portOverride int) error {
	for {
		cfg, err := svc.result.Config.Get(ctx)
		if err != nil {
			return err
		}
		host := cfg.Host
		if hostOverride != "" {
			host = hostOverride
		}
		port := cfg.Port
		if portOverride != 0 {
			port = portOverride
		}

		serveCtx, restart := context.WithCancel(ctx)
		restartRequested := false

		deps := svc.deps
		deps.RunningHost = host
		deps.RunningPort = port
		deps.Restart = func() {
			restartRequested = true
			restart()
		}

		address := net.JoinHostPort(host, strconv.Itoa(port))
		err = api.Serve(serveCtx, address, deps)
		restart()
		if err != nil {
			return err
		}
		if !restartRequested || ctx.Err() != nil {
			return nil
		}
		logger.Infof("restarting server")
	}
}
