// Command fipe-lookup queries FIPE from the terminal using the same
// pipeline as the API, without the HTTP layer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"motorgestor-api/internal/cache"
	"motorgestor-api/internal/client"
	"motorgestor-api/internal/config"
	"motorgestor-api/internal/fipe"
	"motorgestor-api/internal/matching"
)

type options struct {
	baseURL string
	timeout time.Duration
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "fipe-lookup",
		Short:        "Consulta a tabela FIPE",
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "FIPE API base URL (default from config)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Per-step timeout override")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(newConsultarCmd(opts))
	rootCmd.AddCommand(newMarcasCmd(opts))

	return rootCmd
}

func newConsultarCmd(opts *options) *cobra.Command {
	var marca, modelo, anoStr string

	cmd := &cobra.Command{
		Use:   "consultar [marca modelo ano]",
		Short: "Consulta o valor FIPE de um veiculo",
		Example: `  fipe-lookup consultar --marca Toyota --modelo Corolla --ano 2020
  fipe-lookup consultar Chevrolet Onix 2022`,
		Args: cobra.MatchAll(cobra.RangeArgs(0, 3), func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return fmt.Errorf("informe marca, modelo e ano")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 3 {
				marca, modelo, anoStr = args[0], args[1], args[2]
			}

			ano, err := strconv.Atoi(strings.TrimSpace(anoStr))
			if err != nil || !matching.ValidYear(ano) || marca == "" || modelo == "" {
				return fmt.Errorf("informe marca, modelo e ano (%d-%d)", matching.MinYear, matching.MaxYear)
			}

			fc, logger, err := buildClient(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer fc.Close()

			store, err := cache.NewMemoryStore(cache.SystemClock{}, 0)
			if err != nil {
				return err
			}
			svc := fipe.NewService(fc, store, fipe.Options{Logger: logger})

			quote, err := svc.Lookup(cmd.Context(), marca, modelo, ano)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"marca":          marca,
				"modelo":         modelo,
				"ano":            ano,
				"value":          quote.Value.StringFixed(2),
				"referenceMonth": quote.ReferenceMonth,
				"referenceCode":  quote.ReferenceCode,
			})
		},
	}

	cmd.Flags().StringVar(&marca, "marca", "", "Marca (ex: Toyota)")
	cmd.Flags().StringVar(&modelo, "modelo", "", "Modelo (ex: Corolla)")
	cmd.Flags().StringVar(&anoStr, "ano", "", "Ano modelo (ex: 2020)")

	return cmd
}

func newMarcasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "marcas",
		Short: "Lista as marcas de carros da FIPE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, _, err := buildClient(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer fc.Close()

			marcas, err := fc.GetMarcas(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), marcas)
		},
	}
}

// buildClient reads the server configuration and applies the flag overrides
func buildClient(opts *options, stderr io.Writer) (*client.FipeClient, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	fc := cfg.Fipe.ClientConfig()
	if opts.baseURL != "" {
		fc.BaseURL = opts.baseURL
	}
	if opts.timeout > 0 {
		fc.Timeouts = client.Timeouts{
			Marcas:  opts.timeout,
			Modelos: opts.timeout,
			Anos:    opts.timeout,
			Valor:   opts.timeout,
		}
	}
	logger.Debug("cliente fipe", "base_url", fc.BaseURL, "timeouts", fc.Timeouts)

	return client.NewFipeClient(fc, nil), logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
