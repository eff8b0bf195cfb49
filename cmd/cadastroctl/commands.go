package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"cadastro/internal/backend"
	"cadastro/internal/filter"
	apphttp "cadastro/internal/http"
)

var (
	errUsage          = errors.New("comando ausente")
	errUnknownCommand = errors.New("comando desconhecido")
	errMissingFile    = errors.New("informe o arquivo de backup")
	errNoBackupLog    = errors.New("histórico de backups disponível apenas com DATA_BACKEND=sqlite")
)

type command func(ctx context.Context, a *app, res *backend.BackendResult, args []string) error

var commands = map[string]command{
	"list":    listCmd,
	"stats":   statsCmd,
	"backup":  backupCmd,
	"restore": restoreCmd,
	"report":  reportCmd,
	"backups": backupsCmd,
}

func newFlagSet(name string, a *app) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func listCmd(_ context.Context, a *app, res *backend.BackendResult, args []string) error {
	records := res.Records
	fs := newFlagSet("list", a)
	q := url.Values{}
	for _, name := range []string{"nome", "pago", "servico", "mes", "ano"} {
		fs.Func(name, "filtro "+name, func(v string) error {
			q.Set(name, v)
			return nil
		})
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := apphttp.ParseCriteria(q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOME\tSERVIÇO\tDATA\tVALOR\tSTATUS")
	for _, r := range records.List(c) {
		status := "Pendente"
		if r.Paid {
			status = "Pago"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Service, r.Date.BR(), r.Amount.BRL(), status)
	}
	return tw.Flush()
}

func statsCmd(_ context.Context, a *app, res *backend.BackendResult, args []string) error {
	records := res.Records
	if err := newFlagSet("stats", a).Parse(args); err != nil {
		return err
	}
	d := records.Dashboard(filter.Criteria{})

	fmt.Fprintf(a.stdout, "Clientes: %d\n", d.Summary.Count)
	fmt.Fprintf(a.stdout, "Pagos: %d (%s)\n", d.Payments.PaidCount, d.Payments.PaidAmount.BRL())
	fmt.Fprintf(a.stdout, "Pendentes: %d (%s)\n", d.Payments.PendingCount, d.Payments.PendingAmount.BRL())
	fmt.Fprintf(a.stdout, "Valor total: %s\n", d.Summary.TotalAmount.BRL())
	fmt.Fprintf(a.stdout, "Pagamentos em dia: %d%%\n", d.PaidPercent)
	for _, s := range d.TopServices {
		fmt.Fprintf(a.stdout, "  %s: %d\n", s.Service, s.Count)
	}
	return nil
}

func backupCmd(ctx context.Context, a *app, res *backend.BackendResult, args []string) error {
	records := res.Records
	fs := newFlagSet("backup", a)
	dir := fs.String("dir", ".", "diretório de destino")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, name, err := records.Backup(ctx)
	if err != nil {
		return err
	}
	path := filepath.Join(*dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func restoreCmd(ctx context.Context, a *app, res *backend.BackendResult, args []string) error {
	records := res.Records
	fs := newFlagSet("restore", a)
	yes := fs.Bool("yes", false, "confirma sem perguntar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errMissingFile
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	action, err := records.RequestRestore(ctx, raw)
	if err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintf(a.stdout, "%s [s/N] ", action.Prompt())
		if !confirmed(a) {
			records.Cancel(ctx)
			fmt.Fprintln(a.stdout, "Restauração cancelada.")
			return nil
		}
	}
	out, err := records.Confirm(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out.Message())
	return nil
}

func confirmed(a *app) bool {
	line, _ := bufio.NewReader(a.stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}

func reportCmd(_ context.Context, a *app, res *backend.BackendResult, args []string) error {
	records := res.Records
	fs := newFlagSet("report", a)
	dir := fs.String("dir", ".", "diretório de destino")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var buf bytes.Buffer
	name, err := records.WriteReportCSV(&buf)
	if err != nil {
		return err
	}
	path := filepath.Join(*dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func backupsCmd(ctx context.Context, a *app, res *backend.BackendResult, args []string) error {
	fs := newFlagSet("backups", a)
	limit := fs.Int("n", 20, "quantidade de backups")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if res.BackupLog == nil {
		return errNoBackupLog
	}
	entries, err := res.BackupLog.RecentBackups(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARQUIVO\tREGISTROS\tMOTIVO\tDATA")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", e.ID, e.FileName, e.RecordCount, e.Reason, e.CreatedAt.Local().Format("02/01/2006 15:04"))
	}
	return tw.Flush()
}
