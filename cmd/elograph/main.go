package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	elomcp "github.com/elodb/elograph/internal/mcp"
	"github.com/elodb/elograph/internal/server"
	"github.com/elodb/elograph/pkg/engine"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file (optional)")
	host := flag.String("host", "", "Listen host (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	dataDir := flag.String("data-dir", "", "Directory for the data journal (overrides config)")
	mcpMode := flag.Bool("mcp", false, "Serve the MCP tool interface on stdio instead of HTTP")

	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if *mcpMode {
		// Protocol frames own stdout, so logs must go to stderr.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	opts := engine.DefaultOptions(cfg.DataDir)
	opts.AofRewritePercentage = cfg.AofRewritePercentage
	eng, err := engine.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}

	if *mcpMode {
		runMCP(eng)
		return
	}

	srv := server.NewServer(eng, cfg)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan

	srv.Shutdown()
	if err := eng.Close(); err != nil {
		slog.Error("engine close failed", "error", err)
	}
}

func runMCP(eng *engine.Engine) {
	mcpServer := elomcp.NewMCPServer(eng)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcpServer.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
	if err := eng.Close(); err != nil {
		slog.Error("engine close failed", "error", err)
	}
}
