// Command agent answers natural-language questions by letting a model call
// HTTP APIs through generated "api_call" tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dileep-u-k/openapi-agent/internal/version"
)

// rootFlags are shared by every command and override the loaded config.
type rootFlags struct {
	configPath     string
	model          string
	maxTokens      int
	toolsFile      string
	targetAPIKey   string
	authHeader     string
	authScheme     string
	extraHeaders   string
	logDir         string
	logFile        string
	disableLogging bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "OpenAPI Agent lets a model call your HTTP APIs",
	Long: `OpenAPI Agent sends your question to a model together with a set of
"api_call" tools. Whenever the model invokes one, the agent performs the HTTP
call and hands the result back until the model has an answer.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is ./"+defaultConfigFile+")")
	pf.StringVar(&flags.model, "model", "", "model id, e.g. "+defaultModel+" or gemini-1.5-flash")
	pf.IntVar(&flags.maxTokens, "max-tokens", 0, "max tokens per model response")
	pf.StringVar(&flags.toolsFile, "tools-file", "", "JSON or YAML file containing tools")
	pf.StringVar(&flags.targetAPIKey, "target-api-key", "", "API key for the target API")
	pf.StringVar(&flags.authHeader, "auth-header", "", "header carrying the target API key")
	pf.StringVar(&flags.authScheme, "auth-scheme", "", "scheme prefixed to the target API key")
	pf.StringVar(&flags.extraHeaders, "extra-headers", "", "extra headers in JSON format")
	pf.StringVar(&flags.logDir, "log-dir", "", "directory to store log files")
	pf.StringVar(&flags.logFile, "log-file", "", "specific log file name")
	pf.BoolVar(&flags.disableLogging, "disable-logging", false, "disable file logging")

	rootCmd.AddCommand(newAskCmd(), newChatCmd(), newServeCmd(), newToolsCmd(), newVersionCmd())
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the configuration and applies the command-line overrides.
func loadConfig(cmd *cobra.Command) (*AppConfig, error) {
	cfg, err := LoadConfig(flags.configPath, flags.configPath != "")
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Model = flags.model
	}
	if f.Changed("max-tokens") {
		cfg.MaxTokens = flags.maxTokens
	}
	if f.Changed("tools-file") {
		cfg.ToolsFile = flags.toolsFile
	}
	if f.Changed("target-api-key") {
		cfg.TargetAPIKey = flags.targetAPIKey
	}
	if f.Changed("auth-header") {
		cfg.AuthHeader = flags.authHeader
	}
	if f.Changed("auth-scheme") {
		cfg.AuthScheme = flags.authScheme
	}
	if f.Changed("extra-headers") {
		extra, err := ParseExtraHeaders(flags.extraHeaders)
		if err != nil {
			return nil, err
		}
		cfg.ExtraHeaders = extra
	}
	if f.Changed("log-dir") {
		cfg.LogDir = flags.logDir
	}
	if f.Changed("log-file") {
		cfg.LogFile = flags.logFile
	}
	if f.Changed("disable-logging") {
		cfg.DisableLogging = flags.disableLogging
	}
	return cfg, nil
}

// setup is the composition root shared by the commands that talk to a model.
func setup(cmd *cobra.Command) (*App, error) {
	buildInfo := version.Get()
	log.Printf("🚀 Starting OpenAPI Agent | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	log.Println("✅ Configuration loaded.")
	return NewApp(cmd.Context(), cfg)
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			if port == "" {
				port = app.cfg.Port
			}

			gin.SetMode(os.Getenv("GIN_MODE"))
			engine := gin.Default()
			NewAgentHandler(app).Register(engine)

			srv := &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: engine}
			return runServerWithGracefulShutdown(srv)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT or "+defaultPort+")")
	return cmd
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("👂 Agent is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen error: %w", err)
	case <-quit:
	}

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("👋 Server exited gracefully.")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit: %s\nBuilt: %s\nGo: %s\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion)
		},
	}
}
