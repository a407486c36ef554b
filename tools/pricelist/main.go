package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"broker-pricing/internal/observability/logging"
	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
	"broker-pricing/internal/pricing/infrastructure/excel"
	"broker-pricing/internal/pricing/infrastructure/memory"
	"broker-pricing/internal/pricing/interfaces"
)

type options struct {
	input      string
	sheet      string
	company    string
	reg        string
	upliftPath string
	outDir     string
	pdf        bool
	configPath string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "pricelist",
		Short:        "Price a supplier tender workbook and write the broker output",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "Supplier tender workbook (.xlsx).")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Pricing category sheet, e.g. Standard or Green.")
	cmd.Flags().StringVar(&opts.company, "company", "", "Company name stamped on every row.")
	cmd.Flags().StringVar(&opts.reg, "reg", "", "Company registration number stamped on every row.")
	cmd.Flags().StringVar(&opts.upliftPath, "uplifts", "", "YAML file with uplift entries and per-meter edits.")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", ".", "Directory for the output files.")
	cmd.Flags().BoolVar(&opts.pdf, "pdf", false, "Also write a PDF price summary.")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Pricing config YAML (defaults to PRICING_CONFIG).")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogLevel, "stderr")
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	svc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}

	file, err := os.Open(opts.input)
	if err != nil {
		return err
	}
	defer file.Close()

	session, err := svc.Import(ctx, application.ImportRequest{
		Source:      filepath.Base(opts.input),
		Workbook:    file,
		Sheet:       opts.sheet,
		CompanyName: opts.company,
		CompanyReg:  opts.reg,
	})
	if err != nil {
		return err
	}

	if opts.upliftPath != "" {
		uplifts, err := loadUpliftFile(opts.upliftPath)
		if err != nil {
			return err
		}
		if err := applyUpliftFile(ctx, svc, session.ID, uplifts, logger); err != nil {
			return err
		}
	}

	out, session, err := svc.Price(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}

	data, err := excel.WriteBrokerWorkbook(out)
	if err != nil {
		return err
	}
	xlsxPath := filepath.Join(opts.outDir, application.ExportFileName(session.Source, "xlsx"))
	if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d meters)\n", xlsxPath, len(session.Records))

	if opts.pdf {
		data, err := interfaces.BuildPriceSummaryPDF(session, out)
		if err != nil {
			return err
		}
		pdfPath := filepath.Join(opts.outDir, application.ExportFileName(session.Source, "pdf"))
		if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", pdfPath)
	}

	for _, w := range out.Report.Warnings {
		fmt.Fprintf(stdout, "warning: row %d %s %s: %s\n", w.SourceRow, w.MeterID, w.Kind, w.Detail)
	}
	return nil
}

func loadConfig(path string) (application.Config, error) {
	if path != "" {
		return application.LoadConfigFile(path)
	}
	return application.LoadConfig()
}

func buildService(cfg application.Config, logger *zap.Logger) (*application.Service, error) {
	calc, err := cfg.Calculator()
	if err != nil {
		return nil, err
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	defaults, ignored, err := pricing.NewUpliftSet(cfg.DefaultUplifts)
	if err != nil {
		return nil, err
	}
	for _, entry := range ignored {
		logger.Warn("default uplift ignored", zap.String("component", entry.Component))
	}
	return application.NewService(
		memory.NewSessionRepository(),
		excel.NewReader(logger),
		calc,
		resolver,
		application.WithLogger(logger),
		application.WithDefaultUplifts(defaults),
		application.WithDefaultSheet(cfg.DefaultSheet),
	)
}

func applyUpliftFile(ctx context.Context, svc *application.Service, sessionID string, file upliftFile, logger *zap.Logger) error {
	if len(file.Uplifts) > 0 {
		_, ignored, err := svc.ApplyUplifts(ctx, sessionID, file.Uplifts)
		if err != nil {
			return err
		}
		for _, entry := range ignored {
			logger.Warn("uplift ignored", zap.String("component", entry.Component))
		}
	}
	for meterID, edits := range file.Meters {
		_, ignored, err := svc.EditMeterUplifts(ctx, sessionID, meterID, edits)
		if errors.Is(err, application.ErrMeterNotFound) {
			logger.Warn("uplift file names unknown meter", zap.String("meter_id", meterID))
			continue
		}
		if err != nil {
			return err
		}
		for _, edit := range ignored {
			logger.Warn("meter uplift ignored",
				zap.String("meter_id", meterID),
				zap.String("component", edit.Component))
		}
	}
	return nil
}
