package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/workflow-gate/internal/application/service"
	"github.com/garyjia/workflow-gate/internal/config"
	"github.com/garyjia/workflow-gate/internal/container"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/pkg/utils"
)

const dateLayout = "2006-01-02"

// openContainer starts everything except the HTTP server; migrations run on start
func openContainer(ctx context.Context, opts *globalOptions) (*container.Container, error) {
	cfg, err := config.Read(opts.configPath)
	if err != nil {
		return nil, err
	}

	c, err := container.NewContainer(cfg, utils.NewCLILogger(opts.verbose), container.WithoutHTTP())
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", c.Config().Database.Path)
			return nil
		},
	}
}

type auditExportOptions struct {
	from   string
	to     string
	result string
	out    string
}

func newAuditCommand(opts *globalOptions) *cobra.Command {
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	exportOpts := &auditExportOptions{}
	export := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries to an XLSX report",
		Example: "  workflowctl audit export --from 2026-10-01 --to 2026-11-01 --out october.xlsx\n" +
			"  workflowctl audit export --from 2026-10-01 --result denied --out denials.xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := exportOpts.request()
			if err != nil {
				return err
			}

			c, err := openContainer(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			out, closeOut, err := openOutput(exportOpts.out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			n, err := c.Services().AuditReport.Export(cmd.Context(), req, out)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d audit entries\n", n)
			return nil
		},
	}
	export.Flags().StringVar(&exportOpts.from, "from", "", "first day to include, YYYY-MM-DD (UTC)")
	export.Flags().StringVar(&exportOpts.to, "to", "", "first day to exclude, YYYY-MM-DD (UTC)")
	export.Flags().StringVar(&exportOpts.result, "result", "", "only entries with this result: success or denied")
	export.Flags().StringVarP(&exportOpts.out, "out", "o", "", "output file; stdout when empty")
	_ = export.MarkFlagRequired("out")

	audit.AddCommand(export)
	return audit
}

func (o *auditExportOptions) request() (service.AuditReportRequest, error) {
	var req service.AuditReportRequest
	var err error

	if o.from != "" {
		if req.From, err = time.Parse(dateLayout, o.from); err != nil {
			return req, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if o.to != "" {
		if req.To, err = time.Parse(dateLayout, o.to); err != nil {
			return req, fmt.Errorf("invalid --to: %w", err)
		}
	}

	switch o.result {
	case "", entity.AuditResultSuccess, entity.AuditResultDenied:
		req.Result = o.result
	default:
		return req, fmt.Errorf("invalid --result %q: want %s or %s", o.result, entity.AuditResultSuccess, entity.AuditResultDenied)
	}
	return req, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

type checkOptions struct {
	actor   string
	step    string
	role    string
	context string
}

func newCheckCommand(opts *globalOptions) *cobra.Command {
	checkOpts := &checkOptions{}
	check := &cobra.Command{
		Use:     "check",
		Short:   "Evaluate whether an actor may enter a step, without changing anything",
		Example: `  workflowctl check --actor user-1 --step step-review --role approver --context '{"amount": 500}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := entity.ContextData{}
			if checkOpts.context != "" {
				if err := json.Unmarshal([]byte(checkOpts.context), &data); err != nil {
					return fmt.Errorf("invalid --context: %w", err)
				}
			}

			c, err := openContainer(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Evaluator().Evaluate(cmd.Context(), checkOpts.actor, checkOpts.step, checkOpts.role, data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Allowed {
				return fmt.Errorf("denied")
			}
			return nil
		},
	}
	check.Flags().StringVar(&checkOpts.actor, "actor", "", "actor (user) id")
	check.Flags().StringVar(&checkOpts.step, "step", "", "workflow step id")
	check.Flags().StringVar(&checkOpts.role, "role", "", "actor role name")
	check.Flags().StringVar(&checkOpts.context, "context", "", "JSON object evaluated by rule conditions")
	for _, name := range []string{"actor", "step", "role"} {
		_ = check.MarkFlagRequired(name)
	}
	return check
}
