// zexplorer generates images from prompts: variables in the prompt are
// substituted from a local library, optionally enhanced by an LLM, and fed to
// a diffusion model. It runs as an interactive console by default, or as a
// web server with -serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"zexplorer/console"
	"zexplorer/core"
	"zexplorer/logging"
	"zexplorer/shutdown"
	"zexplorer/webui"
	"zexplorer/webui/auth"
)

func main() {
	serve := flag.Bool("serve", false, "run the web server instead of the interactive console")
	envFile := flag.String("env", ".env", "path to the environment file")
	noPreview := flag.Bool("no-preview", false, "disable terminal image previews in console mode")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("zexplorer %s\n", core.GetVersionInfo())
		return
	}

	// Service control commands (install/uninstall/start/stop) exit here.
	if HandleServiceCommand(flag.Args()) {
		return
	}

	// Use fmt here since the logger isn't initialized yet.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not load %s: %v\n", *envFile, err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(core.ExitCodeError)
	}

	logger, err := logging.New(cfg.DevMode, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(core.ExitCodeError)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.String("library_dir", cfg.LibraryDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("models_dir", cfg.ModelsDir),
		zap.String("llm_mode", cfg.LLMMode),
		zap.Bool("auto_download", cfg.AutoDownload),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	// When launched by the Windows service manager, run the server under the
	// service lifecycle instead of the interactive paths below.
	ranAsService, err := RunAsService(func(ctx context.Context) error {
		a, err := newApp(cfg, logger, false)
		if err != nil {
			return err
		}
		if code := runServer(ctx, a); code != core.ExitCodeSuccess {
			return fmt.Errorf("server exited with code %d", code)
		}
		return nil
	})
	if err != nil {
		logger.Error("service run failed", zap.Error(err))
		os.Exit(core.ExitCodeError)
	}
	if ranAsService {
		return
	}

	a, err := newApp(cfg, logger, !*serve)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(core.ExitCodeError)
	}

	if *serve {
		os.Exit(runServer(context.Background(), a))
	}
	os.Exit(runConsole(a, !*noPreview))
}

// runServer blocks until a signal, a server error, or ctx cancellation, then
// runs the ordered shutdown sequence.
func runServer(ctx context.Context, a *app) int {
	serverCfg := webui.DefaultServerConfig()
	serverCfg.Host = a.cfg.Host
	serverCfg.Port = a.cfg.Port

	var authProvider webui.AuthProvider
	if a.cfg.WebUIPassword != "" {
		mw, err := auth.NewMiddleware(a.cfg.WebUIPassword, a.logger)
		if err != nil {
			a.logger.Error("auth setup failed", zap.Error(err))
			return core.ExitCodeError
		}
		authProvider = mw
	} else {
		a.logger.Warn("WEBUI_PASSWORD not set, authentication disabled")
	}

	server, err := webui.NewServer(serverCfg, webui.Deps{
		Generate:  a.generator.Generate,
		Variables: a.store,
		History:   a.repo,
		GPU:       a.gpu,
		Engines:   a.residency,
		Presets:   a.presets,
	}, authProvider, a.logger)
	if err != nil {
		a.logger.Error("server setup failed", zap.Error(err))
		return core.ExitCodeError
	}

	mgr := shutdown.NewManager(a.logger)
	mgr.Register("http-server", 10, server.Shutdown)
	mgr.Register("history-writer", 30, func(context.Context) error {
		a.history.Stop()
		return nil
	})
	mgr.Register("database", 35, func(context.Context) error {
		return a.database.Close()
	})
	mgr.Register("engines", 40, func(context.Context) error {
		return a.residency.UnloadAll()
	})
	mgr.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(mgr.Context())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server failed", zap.Error(err))
			_ = mgr.Shutdown()
			return core.ExitCodeError
		}
	case <-mgr.Context().Done():
	case <-ctx.Done():
	}

	if err := mgr.Shutdown(); err != nil {
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

// runConsole drives the REPL until EOF, /quit, or Ctrl+C.
func runConsole(a *app, preview bool) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repl, err := console.NewREPL(console.Deps{
		Generate:  a.generator.Generate,
		Variables: a.store,
		Text:      a.text,
		GPU:       a.gpu,
		Engines:   a.residency,
	}, a.logger,
		console.WithIO(os.Stdin, os.Stdout),
		console.WithVersion(core.Version),
		console.WithPreview(preview),
	)
	if err != nil {
		a.logger.Error("console setup failed", zap.Error(err))
		return core.ExitCodeError
	}

	runErr := repl.Run(ctx)
	a.close()

	if runErr == context.Canceled {
		return core.ExitCodeSIGINT
	}
	if runErr != nil {
		a.logger.Error("console failed", zap.Error(runErr))
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}
