package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	_ "time/tzdata"

	"field-service-scheduler/internal/adapters/repositories"
	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/db"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/services"

	"github.com/alecthomas/kong"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

var CLI struct {
	Driver string `help:"Database driver (sqlite or pgx)." env:"DB_DRIVER" default:"sqlite" enum:"sqlite,pgx"`
	DSN    string `help:"SQLite file path or PostgreSQL URL." env:"DATABASE_URL" default:"data/app.db"`
	Tenant string `help:"Tenant id for scoped rows." env:"APP_TENANT_ID" default:"default"`
	Policy string `help:"Scheduling policy YAML file." env:"POLICY_PATH" type:"existingfile"`

	Init   InitCmd   `cmd:"" help:"Create the database schema."`
	Seed   SeedCmd   `cmd:"" help:"Load engineers, engineer days and appointments from JSON."`
	Offers OffersCmd `cmd:"" help:"Print the offers for a location and month."`
	Lanes  LanesCmd  `cmd:"" help:"Print calendar lanes for a day."`
}

type appContext struct {
	ctx    context.Context
	db     *sqlx.DB
	store  *repositories.SQLStore
	policy config.Policy
}

type InitCmd struct{}

func (c *InitCmd) Run(app *appContext) error {
	obs.Logger.Info("initializing database schema")
	if err := repositories.InitSchema(app.ctx, app.db); err != nil {
		return err
	}
	obs.Logger.Info("schema ready")
	return nil
}

type SeedCmd struct {
	Path string `arg:"" help:"Seed JSON file." type:"existingfile" default:"data/seeds/demo.json"`
}

func (c *SeedCmd) Run(app *appContext) error {
	if err := repositories.InitSchema(app.ctx, app.db); err != nil {
		return err
	}
	obs.Logger.Info("seeding database", "path", c.Path)
	if err := repositories.SeedFromJSON(app.ctx, app.store, c.Path, app.policy); err != nil {
		return err
	}
	obs.Logger.Info("seeding complete")
	return nil
}

type OffersCmd struct {
	Lat   float64 `help:"Customer latitude." required:""`
	Lng   float64 `help:"Customer longitude." required:""`
	Month string  `help:"Month as YYYY-MM." required:""`
}

func (c *OffersCmd) Run(app *appContext) error {
	calc := services.NewAvailabilityCalculator(app.store, nil, app.policy)
	res, err := calc.ComputeOffers(app.ctx, domain.Coordinates{Lat: c.Lat, Lng: c.Lng}, c.Month)
	if err != nil {
		return err
	}
	if !res.OK {
		fmt.Println(res.Reason)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tENGINEER")
	for _, o := range res.Offers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Date, o.Time, o.EngineerID)
	}
	return w.Flush()
}

type LanesCmd struct {
	Date     string `help:"Day as YYYY-MM-DD." required:""`
	Engineer string `help:"Only this engineer."`
}

func (c *LanesCmd) Run(app *appContext) error {
	cal := &services.CalendarService{Store: app.store, Policy: app.policy}
	entries, err := cal.DayLanes(app.ctx, c.Date, c.Engineer)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENGINEER\tAPPOINTMENT\tSTATUS\tSTART\tEND\tLANE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			e.EngineerID, e.AppointmentID, e.Status,
			app.policy.FormatClock(e.Start), app.policy.FormatClock(e.End),
			e.Lane.Lane+1, e.LaneCount)
	}
	return w.Flush()
}

func main() {
	if err := godotenv.Load(); err != nil {
		obs.Logger.Debug("no .env file found (using environment variables)")
	}

	kctx := kong.Parse(&CLI,
		kong.Name("dbtool"),
		kong.Description("Database and scheduling operator tool."),
		kong.UsageOnError(),
	)

	policy := config.DefaultPolicy()
	if CLI.Policy != "" {
		p, err := config.LoadPolicy(CLI.Policy)
		if err != nil {
			obs.Logger.Fatal("load policy", "err", err)
		}
		policy = p
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, CLI.Driver, CLI.DSN)
	if err != nil {
		obs.Logger.Fatal("open database", "err", err)
	}
	defer conn.Close()

	app := &appContext{
		ctx:    ctx,
		db:     conn,
		store:  repositories.NewSQLStore(conn, CLI.Tenant),
		policy: policy,
	}

	if err := kctx.Run(app); err != nil {
		conn.Close()
		obs.Logger.Fatal("command failed", "err", err)
	}
}
