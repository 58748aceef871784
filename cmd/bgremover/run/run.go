package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the background removal server",
	RunE:  runApp,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("environment", config.DefaultEnvironment, "Environment configuration: development, production or test")
	flags.String("public-dir", "", "Path where static files should be served from")
	flags.Bool("require-api-key", false, "Require an X-API-Key header on processing routes")

	flags.Int64("max-upload-bytes", config.DefaultMaxUploadBytes, "Largest upload accepted by the segmentation routes")
	flags.Int64("max-heuristic-upload-bytes", config.DefaultMaxHeuristicUploadBytes, "Largest upload accepted by /remove-bg-simple")
	flags.Int("max-dimension", config.DefaultMaxDimension, "Images are downscaled so neither side exceeds this")
	flags.Int64("max-pixels", config.DefaultMaxPixels, "Uploads whose width x height exceeds this are rejected before decoding")

	flags.String("segmenter-backend", config.BackendRembg, "Segmentation backend: 'rembg' or 'threshold'")
	flags.String("segmenter-url", config.DefaultSegmenterURL, "Base URL of the rembg server")
	flags.String("segmenter-model", config.DefaultSegmenterModel, "rembg model name")
	flags.Duration("segmenter-timeout", config.DefaultSegmenterTimeout, "Timeout of one segmentation call")

	flags.Bool("archive", false, "Store processed images and record them in the database")
	flags.String("filesystem-type", config.FilesystemLocal, "Archive filesystem type: 'local' or 's3'")
	flags.String("db-dsn", config.DefaultDSN, "Database DSN (Connection URL or Path)")

	bindFlags(flags)
}

func bindFlags(flags *pflag.FlagSet) {
	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("environment", flags.Lookup("environment"))
	viper.BindPFlag("public_dir", flags.Lookup("public-dir"))
	viper.BindPFlag("require_api_key", flags.Lookup("require-api-key"))

	viper.BindPFlag("limits.max_upload_bytes", flags.Lookup("max-upload-bytes"))
	viper.BindPFlag("limits.max_heuristic_upload_bytes", flags.Lookup("max-heuristic-upload-bytes"))
	viper.BindPFlag("limits.max_dimension", flags.Lookup("max-dimension"))
	viper.BindPFlag("limits.max_pixels", flags.Lookup("max-pixels"))

	viper.BindPFlag("segmenter.backend", flags.Lookup("segmenter-backend"))
	viper.BindPFlag("segmenter.url", flags.Lookup("segmenter-url"))
	viper.BindPFlag("segmenter.model", flags.Lookup("segmenter-model"))
	viper.BindPFlag("segmenter.timeout", flags.Lookup("segmenter-timeout"))

	viper.BindPFlag("archive.enabled", flags.Lookup("archive"))
	viper.BindPFlag("archive.filesystem_type", flags.Lookup("filesystem-type"))
	viper.BindPFlag("db.dsn", flags.Lookup("db-dsn"))
}

func runApp(_ *cobra.Command, _ []string) error {
	app, err := createNewApp(config.MustGetConfig())
	if err != nil {
		return err
	}
	defer app.Close()

	server, err := server.NewServer(app.Config())
	if err != nil {
		return err
	}

	// Setup the server routes
	server.SetupRoutes(app)

	errc := make(chan error, 1)
	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	go func() {
		app.Logger.Info("server started",
			zap.String("addr", server.Addr()),
			zap.String("environment", app.Config().Environment),
			zap.String("status", app.Health().String()),
		)
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-signalc:
		app.Logger.Info("shutting down", zap.Stringer("signal", sig))
		if err := server.Stop(app.Context()); err != nil {
			app.Logger.Warn("server did not stop cleanly", zap.Error(err))
		}
		return nil
	}
}

func createNewApp(cfg *config.Config) (*app.App, error) {
	var options []app.OptionFunc

	// The database backs both API keys and the archive history.
	if cfg.RequireAPIKey || cfg.Archive.Enabled {
		options = append(options, app.WithDBInitialization())
	}
	if cfg.Archive.Enabled {
		options = append(options, app.WithArchive())
	}

	return app.NewApp(cfg, options...)
}
