package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/app"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/config"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/db"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/logger"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/nfe"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/xlsx"
)

var version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "mcmcost",
		Usage:   "Custos de matéria-prima: histórico de preços, importação de notas e custo de produtos",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/example.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"APP_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			importCommand(),
			historyCommand(),
			costCommand(),
			materialCommand(),
			productCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env конфиг, логгер и собранное приложение для команды.
func env(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cfg.App.Env, os.Stderr)
	return app.New(c.Context, cfg, log)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run migrations and start the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "skip-migrations", Usage: "Do not apply migrations on start"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(cfg.App.Env)

			if cfg.Storage.Driver != app.DriverMemory && !c.Bool("skip-migrations") {
				if err := db.Migrate(cfg.Postgres.DSN, log); err != nil {
					log.Error("migrations failed", "err", err)
					return err
				}
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := a.HTTPServer()
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server error", "err", err)
					stop()
				}
			}()
			log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			log.Info("graceful shutdown complete")
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres.DSN, logger.NewWithWriter(cfg.App.Env, os.Stderr))
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import an invoice from NF-e XML or a spreadsheet (.xlsx)",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "number", Usage: "Invoice number (spreadsheets only)"},
			&cli.StringFlag{Name: "supplier", Usage: "Supplier name (spreadsheets only)"},
			&cli.StringFlag{Name: "cnpj", Usage: "Supplier CNPJ (spreadsheets only)"},
			&cli.TimestampFlag{Name: "date", Layout: "2006-01-02", Usage: "Issue date (spreadsheets only)"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("file is required")
			}
			a, err := env(c)
			if err != nil {
				return err
			}
			defer a.Close()

			var b invoices.Batch
			switch strings.ToLower(filepath.Ext(path)) {
			case ".xml":
				b, err = nfe.ParseFile(path)
			case ".xlsx":
				h := invoices.Header{
					Number:       c.String("number"),
					SupplierName: c.String("supplier"),
					SupplierCNPJ: c.String("cnpj"),
				}
				if ts := c.Timestamp("date"); ts != nil {
					h.IssuedAt = *ts
				}
				if h.Number == "" {
					h.Number = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				b, err = xlsx.ReadBatchFile(path, h)
			default:
				return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
			}
			if err != nil {
				return err
			}

			res, err := a.Invoices.Ingest(c.Context, b)
			if err != nil {
				return err
			}
			fmt.Printf("invoice %s (id %d): %d items, total %s\n",
				res.Invoice.Number, res.Invoice.ID, len(res.Items), res.Invoice.Total.StringFixed(2))
			for _, it := range res.Items {
				status := "unchanged"
				switch {
				case it.Err != nil:
					status = "skipped: " + it.Err.Error()
				case it.Changed:
					status = "price changed"
				}
				flags := ""
				if len(it.Item.Flags) > 0 {
					flags = fmt.Sprintf(" %v", it.Item.Flags)
				}
				fmt.Printf("  #%d %-40s %10s %-6s %s%s\n",
					it.Index+1, it.Item.Material, it.Item.UnitPriceExact.String(), it.Item.Unit, status, flags)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Export price history to .xlsx",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "material", Usage: "Material id (all materials when omitted)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "price_history.xlsx", Usage: "Output file"},
		},
		Action: func(c *cli.Context) error {
			a, err := env(c)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := c.Context

			var entries []xlsx.HistoryEntry
			if id := c.Int64("material"); id > 0 {
				m, err := a.Materials.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if m == nil {
					return fmt.Errorf("material %d not found", id)
				}
				recs, err := a.Ledger.History(ctx, id)
				if err != nil {
					return err
				}
				entries = append(entries, xlsx.HistoryEntry{Material: *m, Records: recs})
			} else {
				mats, err := a.Materials.List(ctx, false)
				if err != nil {
					return err
				}
				all, err := a.Ledger.HistoryForAllMaterials(ctx)
				if err != nil {
					return err
				}
				for _, m := range mats {
					if recs := all[m.ID]; len(recs) > 0 {
						entries = append(entries, xlsx.HistoryEntry{Material: m, Records: recs})
					}
				}
			}

			f, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if err := xlsx.WriteHistory(f, entries); err != nil {
				return err
			}
			fmt.Printf("exported %d materials to %s\n", len(entries), c.String("out"))
			return nil
		},
	}
}

func costCommand() *cli.Command {
	return &cli.Command{
		Name:  "cost",
		Usage: "Compute product cost from current prices",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "product", Aliases: []string{"p"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			a, err := env(c)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Products.GetByID(c.Context, c.Int64("product"))
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("product %d not found", c.Int64("product"))
			}
			cost, err := a.Calculator.Cost(c.Context, *p)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", p.Name, p.Code)
			for _, l := range cost.Lines {
				line := "-"
				if l.Cost != nil {
					line = l.Cost.StringFixed(4)
				}
				fmt.Printf("  %-40s %10s %-6s %12s  %s\n", l.MaterialName, l.Quantity.String(), l.Unit, line, l.Status)
			}
			state := "complete"
			if !cost.Complete {
				state = fmt.Sprintf("partial: %d awaiting price, %d unconvertible",
					len(cost.UnpricedComponents), len(cost.UnconvertibleComponents))
			}
			fmt.Printf("total %s (%s)\n", cost.TotalCost.StringFixed(2), state)
			return nil
		},
	}
}

func materialCommand() *cli.Command {
	return &cli.Command{
		Name:  "material",
		Usage: "Manage raw materials",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a material with its purchase/usage units",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "purchase", Required: true, Usage: "Purchase unit (KG, ROLO, ...)"},
					&cli.StringFlag{Name: "usage", Required: true, Usage: "Usage unit (G, M, ...)"},
					&cli.StringFlag{Name: "factor", Required: true, Usage: "Usage units per purchase unit"},
				},
				Action: func(c *cli.Context) error {
					factor, err := decimal.NewFromString(c.String("factor"))
					if err != nil {
						return fmt.Errorf("invalid factor: %w", err)
					}
					a, err := env(c)
					if err != nil {
						return err
					}
					defer a.Close()
					purchase, _ := units.Resolve(c.String("purchase"))
					usage, _ := units.Resolve(c.String("usage"))
					m, err := a.Materials.Create(c.Context, c.String("name"), purchase, usage, factor)
					if err != nil {
						return err
					}
					fmt.Printf("material %d: %s (1 %s = %s %s)\n", m.ID, m.Name, m.PurchaseUnit, m.ConversionFactor, m.UsageUnit)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List materials with current price",
				Action: func(c *cli.Context) error {
					a, err := env(c)
					if err != nil {
						return err
					}
					defer a.Close()
					mats, err := a.Materials.List(c.Context, true)
					if err != nil {
						return err
					}
					for _, m := range mats {
						price := "-"
						if rec, err := a.Ledger.CurrentPrice(c.Context, m.ID); err == nil {
							price = rec.UnitPrice.StringFixed(2) + "/" + string(m.PurchaseUnit)
						}
						fmt.Printf("%5d  %-40s %s\n", m.ID, m.Name, price)
					}
					return nil
				},
			},
		},
	}
}

func productCommand() *cli.Command {
	return &cli.Command{
		Name:  "product",
		Usage: "Manage products and their components",
		Subcommands: []*cli.Command{
			{
				Name: "add",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "code", Required: true},
				},
				Action: func(c *cli.Context) error {
					a, err := env(c)
					if err != nil {
						return err
					}
					defer a.Close()
					p, err := a.Products.Create(c.Context, c.String("name"), c.String("code"))
					if err != nil {
						return err
					}
					fmt.Printf("product %d: %s (%s)\n", p.ID, p.Name, p.Code)
					return nil
				},
			},
			{
				Name:  "component",
				Usage: "Add a material to a product",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "product", Required: true},
					&cli.Int64Flag{Name: "material", Required: true},
					&cli.StringFlag{Name: "qty", Required: true},
					&cli.StringFlag{Name: "unit", Usage: "Defaults to the material usage unit"},
				},
				Action: func(c *cli.Context) error {
					qty, err := decimal.NewFromString(c.String("qty"))
					if err != nil {
						return fmt.Errorf("invalid qty: %w", err)
					}
					a, err := env(c)
					if err != nil {
						return err
					}
					defer a.Close()
					m, err := a.Materials.GetByID(c.Context, c.Int64("material"))
					if err != nil {
						return err
					}
					if m == nil {
						return fmt.Errorf("material %d not found", c.Int64("material"))
					}
					unit := units.Code(c.String("unit"))
					if unit == "" {
						unit = m.UsageUnit
					}
					comp, err := a.Products.AddComponent(c.Context, c.Int64("product"), m.ID, qty, unit)
					if err != nil {
						return err
					}
					if comp == nil {
						return fmt.Errorf("product %d not found", c.Int64("product"))
					}
					fmt.Printf("component %d: %s %s of %s\n", comp.ID, comp.Quantity, comp.Unit, m.Name)
					return nil
				},
			},
		},
	}
}
