package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tournevent/printship/internal/server"
	"github.com/tournevent/printship/internal/store/memory"
	"github.com/tournevent/printship/pkg/shipper"
	"github.com/tournevent/printship/pkg/shipper/southwest"
	"github.com/tournevent/printship/pkg/shipper/weight"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "printship",
	Short:   "Printship - shipping rate calculation for print orders",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var quoteFlags struct {
	material     string
	width        float64
	height       float64
	quantity     int
	maxBoxWeight float64
	markup       float64
	pickup       string
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote Southwest Cargo rates for a printed product offline",
	RunE:  runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFlags.material, "material", weight.DefaultMaterial, "product material, e.g. \"14pt cardstock\"")
	quoteCmd.Flags().Float64Var(&quoteFlags.width, "width", 0, "sheet width in inches")
	quoteCmd.Flags().Float64Var(&quoteFlags.height, "height", 0, "sheet height in inches")
	quoteCmd.Flags().IntVar(&quoteFlags.quantity, "quantity", 1, "number of sheets")
	quoteCmd.Flags().Float64Var(&quoteFlags.maxBoxWeight, "max-box-weight", 50, "maximum weight of one box in pounds")
	quoteCmd.Flags().Float64Var(&quoteFlags.markup, "markup", 0, "markup percentage added to carrier rates")
	quoteCmd.Flags().StringVar(&quoteFlags.pickup, "pickup", "cli", "pickup location id; empty quotes as unavailable")
	_ = quoteCmd.MarkFlagRequired("width")
	_ = quoteCmd.MarkFlagRequired("height")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	st, err := initStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := initMetrics()

	// Initialize shipper registry with all carriers
	registry, airports := initShipperRegistry(cfg, st, metrics, logger)
	calculator := shipper.NewCalculator(shipper.CalculatorConfig{
		ProviderTimeout: cfg.ProviderTimeout,
		CacheTTL:        cfg.RateCacheTTL,
		Metrics:         metrics,
	}, registry, st.rates, logger, nil)

	logger.Info("Starting Printship",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", registry.Names()),
		zap.Int("enabled_carriers", len(registry.EnabledModules())),
	)

	// Start HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Metrics: metrics,
		Caches:  []server.CacheClearer{airports},
	}, calculator, registry, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := quoteLogger()

	// Unset flags fall back to the service configuration.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("max-box-weight") {
		quoteFlags.maxBoxWeight = cfg.MaxBoxWeight
	}
	if !cmd.Flags().Changed("markup") {
		quoteFlags.markup = cfg.SouthwestMarkup
	}

	model := weight.NewModel(logger)
	product := model.ItemWeight(ctx, weight.Item{
		Material: quoteFlags.material,
		Width:    quoteFlags.width,
		Height:   quoteFlags.height,
		Quantity: quoteFlags.quantity,
	})
	shipping := weight.WithPackaging(product)

	var meta map[string]string
	if quoteFlags.pickup != "" {
		meta = map[string]string{shipper.MetadataPickupLocation: quoteFlags.pickup}
	}
	packages := weight.SplitPackages(shipping, quoteFlags.maxBoxWeight, meta)

	airports := southwest.NewAirportCache(southwest.AirportCacheConfig{}, memory.NewAirportStore(), logger)
	client := southwest.New(southwest.Config{MarkupPercentage: quoteFlags.markup}, airports, logger, nil)
	if err := client.Validate(); err != nil {
		return err
	}

	rates, err := client.GetRates(ctx, shipper.Address{}, shipper.Address{}, packages)
	if err != nil {
		return fmt.Errorf("quoting: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "product weight:  %.2f lb\n", weight.Round(product, 2))
	fmt.Fprintf(out, "shipping weight: %.2f lb in %d box(es)\n\n", weight.Round(shipping, 2), len(packages))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tDAYS\tAMOUNT")
	for _, r := range rates {
		amount := "unavailable"
		if r.Available() {
			amount = fmt.Sprintf("%.2f %s", r.Amount, r.Currency)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.ServiceName, r.EstimatedDays, amount)
	}
	return tw.Flush()
}
