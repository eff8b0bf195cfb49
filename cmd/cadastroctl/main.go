// Command cadastroctl runs maintenance tasks against the configured store:
// listing, statistics, backup, restore and the CSV report.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"cadastro/internal/cli"
	applog "cadastro/internal/log"
)

const usage = `uso: cadastroctl <comando> [opções]

comandos:
  list     lista os clientes (-nome, -pago, -servico, -mes, -ano)
  stats    mostra o resumo do cadastro
  backup   grava o backup JSON em -dir
  restore  restaura um backup JSON (-yes confirma sem perguntar)
  report   grava o relatório CSV em -dir
  backups  lista os últimos backups do worker (-n; requer sqlite)
`

func main() {
	cli.LoadEnvFile()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "erro:", err)
		os.Exit(1)
	}
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, usage)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(a.stderr, usage)
		return fmt.Errorf("%w: %q", errUnknownCommand, args[0])
	}

	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentCLI, a.stderr)

	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", applog.FieldError, err.Error())
		}
	}()

	return cmd(ctx, a, res, args[1:])
}
