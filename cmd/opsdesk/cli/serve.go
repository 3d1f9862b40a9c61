package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/mcp"
	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/server"
	"github.com/opsdesk/opsdesk/internal/service"
	"github.com/opsdesk/opsdesk/internal/ticket"
	"github.com/opsdesk/opsdesk/internal/upstream"
)

const banner = `
                     _           _
  ___  _ __  ___  __| | ___  ___| | __
 / _ \| '_ \/ __|/ _` + "`" + ` |/ _ \/ __| |/ /
| (_) | |_) \__ \ (_| |  __/\__ \   <
 \___/| .__/|___/\__,_|\___||___/_|\_\
      |_|
`

func newServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		noUI        bool
		dev         bool
		upstreamURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Opsdesk API server",
		Long:  "Start the HTTP server that exposes the dashboard, metrics, and ticket triage APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, noUI, dev, upstreamURL)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Disable the admin UI")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")
	cmd.Flags().StringVar(&upstreamURL, "upstream", "", "Helpdesk API base URL (default: http://localhost:3000)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("upstream.base_url", cmd.Flags().Lookup("upstream"))

	return cmd
}

func runServe(host string, port int, noUI, dev bool, upstreamURL string) error {
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(dev)

	// 1. Local config store (SQLite): admins, API keys, settings
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}
	defer store.Close()

	instanceID, err := store.GetSetting(context.Background(), config.SettingInstanceID)
	if err != nil {
		instanceID = uuid.NewString()
		if err := store.SetSetting(context.Background(), config.SettingInstanceID, instanceID); err != nil {
			logger.Warn("failed to persist instance id", "error", err)
		}
	}
	logger.Info("config store initialized", "path", resolveDataDir(), "instance_id", instanceID)

	// 2. Upstream helpdesk client
	if upstreamURL == "" {
		upstreamURL = resolveUpstreamURL()
	}
	upstreamCfg := upstream.Config{
		BaseURL: upstreamURL,
		Timeout: viper.GetDuration("upstream.timeout"),
	}
	tokens := upstream.StoreToken{
		Settings: store,
		Fallback: viper.GetString("upstream.token"),
	}
	client := upstream.New(upstreamCfg, tokens, logger)
	logger.Info("upstream client initialized", "base_url", client.BaseURL())

	// 3. Domain services
	source := metrics.NewMock()
	ctrl := ticket.NewController(client, logger)
	dash := dashboard.New(client, source, logger)

	// 4. Auth service
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		jwtSecret = "opsdesk-dev-secret-change-me"
	}
	authSvc := service.NewAuthService(store, jwtSecret)

	// 5. Check for first-run (no admin exists)
	hasAdmin, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: opsdesk admin create")
	}

	// 6. Embedded MCP endpoint (streamable HTTP at /mcp, behind auth)
	mcpSrv := mcp.NewMCPServer(dash, ctrl, logger)

	// 7. Build and start HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.EnableUI = !noUI
	if origins := viper.GetStringSlice("server.cors.allowed_origins"); len(origins) > 0 && !dev {
		srvCfg.CORSOrigins = origins
	}
	if limit := viper.GetInt("server.login_rate_limit"); limit > 0 {
		srvCfg.LoginRateLimit = limit
	}

	srv := server.New(srvCfg, server.Deps{
		Store:     store,
		AuthSvc:   authSvc,
		Dashboard: dash,
		Tickets:   ctrl,
		Metrics:   source,
		Upstream:  client,
		MCP:       mcpSrv.HTTPHandler(),
	}, logger)

	fmt.Printf("→ Opsdesk %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	if !noUI {
		fmt.Printf("→ Admin UI:   http://%s:%d/admin\n", host, port)
	}
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ MCP:        http://%s:%d/mcp\n", host, port)
	fmt.Printf("→ Upstream:   %s\n", client.BaseURL())
	fmt.Println()

	return srv.ListenAndServe()
}

// newLogger builds the process logger from the logging config. Dev mode
// forces debug-level text output regardless of config.
func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("log.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("log.format") == "json" && !dev {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
