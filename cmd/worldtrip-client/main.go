// Command worldtrip-client is a terminal view over the booking API that keeps
// working from a local overlay when the API is unreachable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"worldtrip/internal/blob"
	"worldtrip/internal/client"
	"worldtrip/internal/config"
	"worldtrip/internal/core"
	"worldtrip/pkg/domain"
)

var exitFunc = os.Exit

const usage = `usage: worldtrip-client [flags] <command> [command flags]

commands:
  packages                          list the catalog
  add-package  -name -destination -duration -price [-included a,b]
  delete-package -id
  register     -name -email
  login        -email
  book         -package -name -email [-travelers] [-phone] [-date]
  orders       [-email]             list orders, optionally for one customer
  status       -id -status          set an order status
  watch        [-for]               refresh in the background and report counts
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exitFunc(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	apiURL  string
	dataDir string
	token   string
	verbose bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	opts := options{apiURL: cfg.APIURL, dataDir: cfg.Blob.FSRoot}
	fs := flag.NewFlagSet("worldtrip-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	fs.StringVar(&opts.apiURL, "api", opts.apiURL, "booking API base URL")
	fs.StringVar(&opts.dataDir, "data", opts.dataDir, "directory for the local overlay")
	fs.StringVar(&opts.token, "token", os.Getenv("WORLDTRIP_ADMIN_TOKEN"), "bearer token for admin commands")
	fs.BoolVar(&opts.verbose, "v", false, "log fallbacks to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	blobCfg := cfg.Blob
	if blobCfg.Driver == blob.DriverFilesystem || blobCfg.Driver == "" {
		blobCfg.FSRoot = opts.dataDir
	}
	files, err := blob.Open(ctx, blobCfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open overlay store: %v\n", err)
		return 1
	}
	var httpOpts []client.HTTPOption
	if opts.token != "" {
		httpOpts = append(httpOpts, client.WithBearerToken(opts.token))
	}
	remote, err := client.NewHTTPRemote(opts.apiURL, httpOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	repo := client.NewMergingRepository(remote, client.NewLocalOverlay(files, ""),
		client.WithLogger(log),
		client.WithRefreshInterval(cfg.RefreshInterval),
		client.WithFallbackPackages(core.DefaultPackages()),
	)
	defer repo.Close()
	if err := repo.Load(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "load: %v\n", err)
		return 1
	}

	cmd := &command{repo: repo, out: stdout, errOut: stderr}
	if err := cmd.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

type command struct {
	repo   *client.MergingRepository
	out    io.Writer
	errOut io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "packages":
		return c.packages(ctx)
	case "add-package":
		return c.addPackage(ctx, args)
	case "delete-package":
		return c.deletePackage(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "book":
		return c.book(ctx, args)
	case "orders":
		return c.orders(ctx, args)
	case "status":
		return c.status(ctx, args)
	case "watch":
		return c.watch(ctx, args)
	default:
		_, _ = fmt.Fprint(c.errOut, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *command) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *command) packages(ctx context.Context) error {
	pkgs, err := c.repo.Packages(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tDESTINATION\tDURATION\tPRICE\tINCLUDED")
	for _, p := range pkgs {
		_, _ = fmt.Fprintf(tw, "%d\t%s%s\t%s\t%s\t%.2f\t%s\n", p.ID, p.Name, localMark(p.IsLocal), p.Destination, p.Duration, p.Price, strings.Join(p.Included, ", "))
	}
	return tw.Flush()
}

func (c *command) addPackage(ctx context.Context, args []string) error {
	fs := c.flags("add-package")
	var pkg domain.Package
	var included string
	fs.StringVar(&pkg.Name, "name", "", "package name")
	fs.StringVar(&pkg.Destination, "destination", "", "destination")
	fs.StringVar(&pkg.Duration, "duration", "", "duration, e.g. \"7 Days\"")
	fs.Float64Var(&pkg.Price, "price", 0, "price per traveler")
	fs.StringVar(&pkg.Image, "image", "", "image URL")
	fs.StringVar(&pkg.Description, "description", "", "description")
	fs.StringVar(&included, "included", "", "comma separated inclusions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pkg.Included = splitList(included)
	created, err := c.repo.AddPackage(ctx, pkg)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "package %d created%s\n", created.ID, localMark(created.IsLocal))
	return nil
}

func (c *command) deletePackage(ctx context.Context, args []string) error {
	fs := c.flags("delete-package")
	id := fs.Int64("id", 0, "package id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.repo.DeletePackage(ctx, *id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "package %d deleted\n", *id)
	return nil
}

func (c *command) register(ctx context.Context, args []string) error {
	fs := c.flags("register")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	customer, err := c.repo.Register(ctx, *name, *email)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "registered %s <%s> as customer %d%s\n", customer.Name, customer.Email, customer.ID, localMark(customer.IsLocal))
	return nil
}

func (c *command) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	customer, ok, err := c.repo.FindCustomer(ctx, *email)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityCustomer, ID: *email}
	}
	_, _ = fmt.Fprintf(c.out, "welcome back %s <%s>\n", customer.Name, customer.Email)
	return nil
}

func (c *command) book(ctx context.Context, args []string) error {
	fs := c.flags("book")
	pkgID := fs.Int64("package", 0, "package id")
	var order domain.Order
	fs.StringVar(&order.CustomerName, "name", "", "traveler name")
	fs.StringVar(&order.CustomerEmail, "email", "", "traveler email")
	fs.StringVar(&order.CustomerPhone, "phone", "", "phone number")
	fs.StringVar(&order.TravelDate, "date", "", "travel date")
	fs.IntVar(&order.NumberOfTravelers, "travelers", 1, "number of travelers")
	fs.StringVar(&order.SpecialRequests, "requests", "", "special requests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pkgs, err := c.repo.Packages(ctx)
	if err != nil {
		return err
	}
	var pkg *domain.Package
	for i := range pkgs {
		if pkgs[i].ID == *pkgID {
			pkg = &pkgs[i]
			break
		}
	}
	if pkg == nil {
		return domain.ErrNotFound{Entity: domain.EntityPackage, ID: strconv.FormatInt(*pkgID, 10)}
	}
	order.PackageID = &pkg.ID
	order.PackageName = pkg.Name
	order.Destination = pkg.Destination
	order.Price = pkg.Price
	placed, err := c.repo.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "order %d %s: %s for %d, total %.2f%s\n", placed.ID, placed.Status, placed.PackageName, placed.NumberOfTravelers, placed.TotalAmount, localMark(placed.IsLocal))
	return nil
}

func (c *command) orders(ctx context.Context, args []string) error {
	fs := c.flags("orders")
	email := fs.String("email", "", "only orders placed under this email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var (
		orders []domain.Order
		err    error
	)
	if *email != "" {
		orders, err = c.repo.OrdersFor(ctx, *email)
	} else {
		orders, err = c.repo.Orders(ctx)
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPACKAGE\tCUSTOMER\tTRAVELERS\tTOTAL\tSTATUS")
	for _, o := range orders {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\t%s%s\n", o.ID, o.PackageName, o.CustomerEmail, o.NumberOfTravelers, o.TotalAmount, o.Status, localMark(o.IsLocal))
	}
	return tw.Flush()
}

func (c *command) status(ctx context.Context, args []string) error {
	fs := c.flags("status")
	id := fs.Int64("id", 0, "order id")
	raw := fs.String("status", "", "Pending, Confirmed, Completed or Cancelled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := domain.ParseOrderStatus(*raw)
	if err != nil {
		return err
	}
	updated, err := c.repo.UpdateOrderStatus(ctx, *id, status)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "order %d is now %s%s\n", updated.ID, updated.Status, localMark(updated.IsLocal))
	return nil
}

func (c *command) watch(ctx context.Context, args []string) error {
	fs := c.flags("watch")
	limit := fs.Duration("for", 0, "stop after this long; zero runs until interrupted")
	every := fs.Duration("every", client.DefaultRefreshInterval, "report interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *limit)
		defer cancel()
	}
	c.repo.Start(ctx)
	defer c.repo.Stop()
	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		if err := c.report(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *command) report(ctx context.Context) error {
	pkgs, err := c.repo.Packages(ctx)
	if err != nil {
		return ignoreDone(ctx, err)
	}
	orders, err := c.repo.Orders(ctx)
	if err != nil {
		return ignoreDone(ctx, err)
	}
	local := 0
	for _, o := range orders {
		if o.IsLocal {
			local++
		}
	}
	_, _ = fmt.Fprintf(c.out, "%s packages=%d orders=%d local_orders=%d\n", time.Now().Format(time.TimeOnly), len(pkgs), len(orders), local)
	return nil
}

func ignoreDone(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func localMark(local bool) string {
	if local {
		return " (local)"
	}
	return ""
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
