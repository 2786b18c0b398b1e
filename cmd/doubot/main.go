package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"doubot/internal/app"
	"doubot/internal/config"
	"doubot/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		testEmail  bool
	)

	cmd := &cobra.Command{
		Use:   "doubot",
		Short: "Varre o Diário Oficial da União e envia um boletim fiscal por email",
		Long: `doubot consulta o Diário Oficial da União pelas frases configuradas,
filtra as publicações com relevância fiscal/tributária, gera resumos
curtos via IA quando habilitado e envia o boletim do dia por email.

Pensado para rodar uma vez por dia sob um agendador externo (cron).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "aviso: .env não carregado: %v\n", err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(cfg, logger, app.Options{
				DryRun:    dryRun,
				TestEmail: testEmail || envBool("FORCE_TEST_EMAIL"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				logger.Error("run failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "caminho do arquivo de configuração YAML")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "imprime o boletim no terminal em vez de enviá-lo")
	cmd.Flags().BoolVar(&testEmail, "test-email", false, "envia um email de teste de configuração e encerra")
	return cmd
}

func envBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
