package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/alem-hub/alem-rewards/internal/application"
	"github.com/alem-hub/alem-rewards/internal/application/query"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND TABLE
// ══════════════════════════════════════════════════════════════════════════════

type command struct {
	name    string
	args    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

func commandTable() []command {
	return []command{
		{"migrate", "[-status | -down]", "apply, list or roll back schema migrations", (*app).cmdMigrate},
		{"seed", "", "load the default catalog", (*app).cmdSeed},
		{"user", "-name NAME <user>", "register a user (idempotent)", (*app).cmdUser},
		{"profile", "<user>", "show points, level and achievements", (*app).cmdProfile},
		{"missions", "<user>", "list active missions and cooldowns", (*app).cmdMissions},
		{"complete", "<user> <mission>", "complete a mission", (*app).cmdComplete},
		{"shop", "", "list shop items", (*app).cmdShop},
		{"redeem", "<user> <item>", "redeem a shop item", (*app).cmdRedeem},
		{"ranking", "[-n 10]", "show the top users", (*app).cmdRanking},
		{"event", "", "show the multiplier in effect", (*app).cmdEvent},
		{"activate-event", "-name NAME -multiplier X -hours H", "start a multiplier event", (*app).cmdActivateEvent},
		{"deactivate-events", "", "end every multiplier event", (*app).cmdDeactivateEvents},
		{"reset-season", "", "archive standings and reset points", (*app).cmdResetSeason},
		{"archives", "[archive]", "list season archives or show one", (*app).cmdArchives},
		{"export", "[-o FILE]", "write all users as CSV", (*app).cmdExport},
		{"create-mission", "-id ID -name NAME -points N [-type daily] [-cooldown-hours H]", "add a mission", (*app).cmdCreateMission},
		{"set-mission-active", "[-active=false] <mission>", "activate or retire a mission", (*app).cmdSetMissionActive},
		{"create-item", "-id ID -name NAME -cost N [-stock -1]", "add a shop item", (*app).cmdCreateItem},
		{"restock", "<item> <units>", "add units to an item", (*app).cmdRestock},
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ledgerctl [-timeout 30s] <command> [flags] [args]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commandTable() {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.summary)
	}
	tw.Flush()
}

// execute runs one command line.
func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage(a.errOut)
		return usageError{errors.New("no command given")}
	}

	for _, c := range commandTable() {
		if c.name == args[0] {
			return c.run(a, ctx, args[1:])
		}
	}

	printUsage(a.errOut)
	return usageError{fmt.Errorf("unknown command %q", args[0])}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parse parses flags and checks the positional argument count.
func parse(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError{err}
	}
	if fs.NArg() != want {
		return nil, usageError{fmt.Errorf("%s: want %d argument(s), got %d", fs.Name(), want, fs.NArg())}
	}
	return fs.Args(), nil
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA AND CATALOG
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) cmdMigrate(ctx context.Context, args []string) error {
	fs := a.flags("migrate")
	status := fs.Bool("status", false, "list migrations")
	down := fs.Bool("down", false, "roll back the latest migration")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if a.migrator == nil {
		return fmt.Errorf("migrate: store %q has no schema", a.cfg.Database.Store)
	}

	switch {
	case *status:
		migrations, err := a.migrator.Status(ctx)
		if err != nil {
			return err
		}
		tw := a.table()
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "pending"
			if m.IsApplied {
				applied = m.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return tw.Flush()

	case *down:
		if err := a.migrator.Rollback(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "rolled back one migration")
		return nil

	default:
		n, err := a.migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "applied %d migration(s)\n", n)
		return nil
	}
}

func (a *app) cmdSeed(ctx context.Context, args []string) error {
	if _, err := parse(a.flags("seed"), args, 0); err != nil {
		return err
	}

	report, err := a.core.Seed(ctx, application.DefaultCatalog(a.cfg.Progression.FirstStepsName))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "seeded: %d created, %d already present\n", report.Created, report.Skipped)
	return nil
}

func (a *app) cmdCreateMission(ctx context.Context, args []string) error {
	fs := a.flags("create-mission")
	var p mission.NewMissionParams
	id := fs.String("id", "", "mission id")
	typ := fs.String("type", string(mission.TypeCustom), "daily, weekly or custom")
	fs.StringVar(&p.Name, "name", "", "display name")
	fs.StringVar(&p.Description, "description", "", "description")
	fs.IntVar(&p.PointValue, "points", 0, "points per completion")
	fs.IntVar(&p.CooldownHours, "cooldown-hours", 0, "cooldown; 0 uses the type default")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	p.ID = mission.ID(*id)
	p.Type = mission.Type(*typ)

	m, err := a.core.AdminCreateMission(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created mission %s (%d points, cooldown %s)\n", m.ID, m.PointValue, m.Cooldown)
	return nil
}

func (a *app) cmdSetMissionActive(ctx context.Context, args []string) error {
	fs := a.flags("set-mission-active")
	active := fs.Bool("active", true, "whether users can complete the mission")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	m, err := a.core.AdminSetMissionActive(ctx, rest[0], *active)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "mission %s active=%t\n", m.ID, m.Active)
	return nil
}

func (a *app) cmdCreateItem(ctx context.Context, args []string) error {
	fs := a.flags("create-item")
	var p shop.NewItemParams
	id := fs.String("id", "", "item id")
	fs.StringVar(&p.Name, "name", "", "display name")
	fs.StringVar(&p.Description, "description", "", "description")
	fs.IntVar(&p.Cost, "cost", 0, "price in points")
	fs.IntVar(&p.Stock, "stock", shop.Unlimited, "units; -1 is unlimited")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	p.ID = shop.ItemID(*id)

	item, err := a.core.AdminCreateItem(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created item %s (cost %d, stock %s)\n", item.ID, item.Cost, stockString(item.Stock))
	return nil
}

func (a *app) cmdRestock(ctx context.Context, args []string) error {
	rest, err := parse(a.flags("restock"), args, 2)
	if err != nil {
		return err
	}
	units, err := strconv.Atoi(rest[1])
	if err != nil {
		return usageError{fmt.Errorf("restock: units must be an integer: %w", err)}
	}

	item, err := a.core.AdminRestockItem(ctx, rest[0], units)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "item %s stock %s\n", item.ID, stockString(item.Stock))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) cmdUser(ctx context.Context, args []string) error {
	fs := a.flags("user")
	name := fs.String("name", "", "display name")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	u, err := a.core.EnsureUser(ctx, rest[0], *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %s (%s): %d points, level %d\n", u.ID, u.DisplayName, u.Points, u.Level)
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	rest, err := parse(a.flags("profile"), args, 1)
	if err != nil {
		return err
	}

	p, err := a.core.GetProfile(ctx, rest[0])
	if err != nil {
		return err
	}

	tw := a.table()
	fmt.Fprintf(tw, "user\t%s (%s)\n", p.UserID, p.DisplayName)
	fmt.Fprintf(tw, "points\t%d\n", p.Points)
	if p.Progress.MaxReached {
		fmt.Fprintf(tw, "level\t%d (max)\n", p.Level)
	} else {
		fmt.Fprintf(tw, "level\t%d (%d to level %d)\n", p.Level, p.Progress.Remaining, p.Level+1)
	}
	fmt.Fprintf(tw, "missions completed\t%d\n", p.Completions)
	fmt.Fprintf(tw, "items redeemed\t%d\n", p.Redemptions)
	for _, ach := range p.Achievements {
		fmt.Fprintf(tw, "achievement\t%s %s\n", ach.Icon, ach.Name)
	}
	return tw.Flush()
}

func (a *app) cmdMissions(ctx context.Context, args []string) error {
	rest, err := parse(a.flags("missions"), args, 1)
	if err != nil {
		return err
	}

	res, err := a.core.AvailableMissions(ctx, rest[0])
	if err != nil {
		return err
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tAWARD\tSTATUS")
	for _, m := range res.Missions {
		status := "available"
		if !m.Eligible {
			status = "in " + timeutil.FormatRemaining(m.Remaining)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.Mission.ID, m.Mission.Name, m.Mission.Type, m.Award, status)
	}
	if res.Multiplier != 1 {
		fmt.Fprintf(tw, "\nmultiplier x%.2f\n", res.Multiplier)
	}
	return tw.Flush()
}

func (a *app) cmdComplete(ctx context.Context, args []string) error {
	rest, err := parse(a.flags("complete"), args, 2)
	if err != nil {
		return err
	}

	res, err := a.core.CompleteMission(ctx, rest[0], rest[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "+%d points (x%.2f), balance %d\n", res.PointsAwarded, res.Multiplier, res.Points)
	if res.NewLevel != nil {
		fmt.Fprintf(a.out, "level up: %d\n", *res.NewLevel)
	}
	for _, ach := range res.Unlocked {
		fmt.Fprintf(a.out, "unlocked: %s %s\n", ach.Icon, ach.Name)
	}
	return nil
}

func (a *app) cmdShop(ctx context.Context, args []string) error {
	if _, err := parse(a.flags("shop"), args, 0); err != nil {
		return err
	}

	items, err := a.core.ListShop(ctx)
	if err != nil {
		return err
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tCOST\tSTOCK")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.ID, it.Name, it.Cost, stockString(it.Stock))
	}
	return tw.Flush()
}

func (a *app) cmdRedeem(ctx context.Context, args []string) error {
	rest, err := parse(a.flags("redeem"), args, 2)
	if err != nil {
		return err
	}

	res, err := a.core.RedeemItem(ctx, rest[0], rest[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "-%d points, balance %d, level %d, stock left %s\n",
		res.Redemption.Cost, res.Points, res.Level, stockString(res.RemainingStock))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING AND SEASONS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) cmdRanking(ctx context.Context, args []string) error {
	fs := a.flags("ranking")
	n := fs.Int("n", 10, "number of users")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	standings, err := a.core.GetRanking(ctx, *n)
	if err != nil {
		return err
	}
	return a.printStandings(standings)
}

func (a *app) printStandings(standings []season.Standing) error {
	tw := a.table()
	fmt.Fprintln(tw, "RANK\tUSER\tNAME\tPOINTS\tLEVEL")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", s.Rank, s.UserID, s.DisplayName, s.Points, s.Level)
	}
	return tw.Flush()
}

func (a *app) cmdEvent(ctx context.Context, args []string) error {
	if _, err := parse(a.flags("event"), args, 0); err != nil {
		return err
	}

	e, err := a.core.ActiveEvent(ctx)
	if err != nil {
		return err
	}
	if e == nil {
		fmt.Fprintln(a.out, "no event in effect (x1.00)")
		return nil
	}
	fmt.Fprintf(a.out, "%s x%.2f until %s\n", e.Name, e.Multiplier, e.EndTime.UTC().Format(time.RFC3339))
	return nil
}

func (a *app) cmdActivateEvent(ctx context.Context, args []string) error {
	fs := a.flags("activate-event")
	name := fs.String("name", "", "event name")
	multiplier := fs.Float64("multiplier", 2, "points multiplier")
	hours := fs.Float64("hours", 24, "duration in hours")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	id, err := a.core.AdminActivateEvent(ctx, *name, *multiplier, *hours)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "activated event %s\n", id)
	return nil
}

func (a *app) cmdDeactivateEvents(ctx context.Context, args []string) error {
	if _, err := parse(a.flags("deactivate-events"), args, 0); err != nil {
		return err
	}

	n, err := a.core.AdminDeactivateEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deactivated %d event(s)\n", n)
	return nil
}

func (a *app) cmdResetSeason(ctx context.Context, args []string) error {
	if _, err := parse(a.flags("reset-season"), args, 0); err != nil {
		return err
	}

	id, err := a.core.AdminResetSeason(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "season archived as %s\n", id)
	return nil
}

func (a *app) cmdArchives(ctx context.Context, args []string) error {
	fs := a.flags("archives")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	switch fs.NArg() {
	case 0:
		archives, err := a.core.ListArchives(ctx)
		if err != nil {
			return err
		}
		tw := a.table()
		fmt.Fprintln(tw, "ID\tRESET AT\tUSERS")
		for _, s := range archives {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.ResetAt.UTC().Format(time.RFC3339), s.UserCount)
		}
		return tw.Flush()

	case 1:
		archive, err := a.core.GetArchive(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "archive %s, reset at %s\n", archive.ID, archive.ResetAt.UTC().Format(time.RFC3339))
		return a.printStandings(archive.Standings)

	default:
		return usageError{errors.New("archives: want at most one archive id")}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) cmdExport(ctx context.Context, args []string) (err error) {
	fs := a.flags("export")
	out := fs.String("o", "", "output file; stdout when empty")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	t, err := a.core.AdminExport(ctx)
	if err != nil {
		return err
	}

	w := a.out
	if *out != "" {
		f, cerr := os.Create(*out)
		if cerr != nil {
			return fmt.Errorf("export: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if err := writeCSV(w, t); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if *out != "" {
		fmt.Fprintf(a.out, "exported %d user(s) to %s\n", len(t.Rows), *out)
	}
	return nil
}

// writeCSV writes the header row followed by every data row.
func writeCSV(w io.Writer, t *query.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	return cw.WriteAll(t.Rows)
}

func stockString(stock int) string {
	if stock == shop.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(stock)
}
