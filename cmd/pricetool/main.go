package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"priceoptool/internal/apiclient"
	"priceoptool/internal/config"
	"priceoptool/internal/credstore"
	"priceoptool/internal/events"
	"priceoptool/internal/notify"
	"priceoptool/internal/session"
	"priceoptool/internal/store"
	"priceoptool/internal/util"
	"priceoptool/pkg/domain"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	refreshInterval, err := config.ParseRefreshInterval(cfg.RefreshInterval)
	if err != nil {
		log.Fatalf("failed to parse refresh interval: %v", err)
	}
	requestTimeout, err := config.ParseRequestTimeout(cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("failed to parse request timeout: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	var creds credstore.Store
	if cfg.RedisAddr != "" {
		creds = credstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		creds, err = credstore.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("failed to init credential store: %v", err)
		}
	}

	bus := events.NewBus()
	sink := notify.NewSink(bus)

	var mgr *session.Manager
	api := apiclient.NewClient(cfg.BackendURL, requestTimeout, apiclient.TokenFunc(func() string {
		if mgr == nil {
			return ""
		}
		return mgr.AccessToken()
	}))
	mgr = session.NewManager(session.Config{
		API:   api,
		Creds: creds,
		Sink:  sink,
		Bus:   bus,
	})
	products := store.NewProducts(api, sink, bus)

	// Transient notifications print as soon as a component publishes one;
	// the console is the displaying view, so it also clears the slot.
	if err := bus.Subscribe(events.TopicNotificationChanged, func() {
		if n := sink.Current(); n.Open {
			fmt.Printf("! %s\n", n.Message)
			sink.Close()
		}
	}); err != nil {
		log.Fatalf("failed to subscribe notifications: %v", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+refreshInterval.String(), func() {
		if !mgr.IsLoggedIn() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := mgr.RefreshToken(ctx); err != nil {
			slog.Warn("scheduled token refresh failed", "err", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule token refresh: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	console := &console{
		api:      api,
		mgr:      mgr,
		products: products,
		timeout:  requestTimeout,
	}
	if user, ok := mgr.User(); ok {
		fmt.Printf("session restored for %s\n", user.Username)
		console.loadAll()
	}
	console.run()
}

type console struct {
	api      *apiclient.Client
	mgr      *session.Manager
	products *store.Products
	timeout  time.Duration
}

func (c *console) run() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`price optimization console; type "help" for commands`)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "help":
			c.printHelp()
		case "login":
			c.login(args)
		case "register":
			c.register(args)
		case "logout":
			ctx, cancel := c.ctx()
			c.mgr.Logout(ctx)
			cancel()
			fmt.Println("logged out")
		case "whoami":
			c.whoami()
		case "products":
			ctx, cancel := c.ctx()
			if c.products.FetchProducts(ctx) == nil {
				c.printProducts(c.products.Products())
			}
			cancel()
		case "pricing":
			ctx, cancel := c.ctx()
			if c.products.FetchPricingOptimization(ctx) == nil {
				c.printProducts(c.products.PricingOptimization())
			}
			cancel()
		case "categories":
			for _, cat := range c.products.Categories() {
				fmt.Println(cat)
			}
		case "filter":
			c.filter(args)
		case "add":
			c.add(args)
		case "update":
			c.update(args)
		case "delete":
			c.delete(args)
		case "forecast":
			c.forecast(args)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q; type \"help\"\n", cmd)
		}
	}
}

func (c *console) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *console) printHelp() {
	fmt.Println(`commands:
  login <email> <password>
  register <email> <username> <role> <password>
  logout
  whoami
  products                       fetch and list the catalog
  pricing                        fetch and list the pricing-optimization view
  categories                     list the category index
  filter <products|pricing> <search> [category]
  add key=value ...              e.g. add name=Widget category=A cost_price=2.50 selling_price=4.00
  update <id> key=value ...
  delete <id>
  forecast <id> [id ...]
  quit`)
}

func (c *console) login(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	user, err := c.api.Login(ctx, args[0], args[1])
	if err != nil {
		fmt.Printf("login failed: %v\n", err)
		return
	}
	if err := c.mgr.Login(user); err != nil {
		slog.Warn("persist session failed", "err", err)
	}
	fmt.Printf("logged in as %s\n", user.Username)
	c.loadAll()
}

func (c *console) register(args []string) {
	if len(args) != 4 {
		fmt.Println("usage: register <email> <username> <role> <password>")
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	msg, err := c.api.Register(ctx, args[0], args[1], args[3], domain.UserRole(args[2]))
	if err != nil {
		fmt.Printf("registration failed: %v\n", err)
		return
	}
	fmt.Println(msg)
}

func (c *console) whoami() {
	user, ok := c.mgr.User()
	if !ok {
		fmt.Println("not logged in")
		return
	}
	fmt.Printf("%s <%s> role=%s\n", user.Username, user.Email, user.Role)
	if claims, err := c.mgr.Claims(); err == nil && claims.ExpiresAt != nil {
		fmt.Printf("access token expires %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
}

// loadAll fetches both collections concurrently after login or restore.
func (c *console) loadAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*c.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.products.FetchProducts(gctx) })
	g.Go(func() error { return c.products.FetchPricingOptimization(gctx) })
	if err := g.Wait(); err != nil {
		slog.Warn("initial load incomplete", "err", err)
	}
}

func (c *console) filter(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: filter <products|pricing> <search> [category]")
		return
	}
	category := ""
	if len(args) > 2 {
		category = args[2]
	}
	c.printProducts(c.products.Filtered(args[1], category, domain.Collection(args[0])))
}

func (c *console) add(args []string) {
	p, err := parseProductArgs(args, domain.Product{})
	if err != nil {
		fmt.Printf("invalid product: %v\n", err)
		return
	}
	if err := validateProduct(p); err != nil {
		fmt.Printf("invalid product: %v\n", err)
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.products.AddProduct(ctx, p)
}

func (c *console) update(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: update <id> key=value ...")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage: update <id> key=value ...")
		return
	}
	base, ok := c.findProduct(id)
	if !ok {
		fmt.Printf("no product with id %d; run \"products\" first\n", id)
		return
	}
	p, err := parseProductArgs(args[1:], base)
	if err != nil {
		fmt.Printf("invalid product: %v\n", err)
		return
	}
	if err := validateProduct(p); err != nil {
		fmt.Printf("invalid product: %v\n", err)
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.products.UpdateProduct(ctx, p)
}

func (c *console) delete(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage: delete <id>")
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.products.DeleteProduct(ctx, id)
}

func (c *console) forecast(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: forecast <id> [id ...]")
		return
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Println("usage: forecast <id> [id ...]")
			return
		}
		ids = append(ids, id)
	}
	ctx, cancel := c.ctx()
	defer cancel()
	rows, err := c.products.DemandForecast(ctx, ids)
	if err != nil {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tCOST\tPRICE\tSTOCK\tSOLD\tYEAR\tFORECAST")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%d\t%d\t%d\t%.2f\n",
			r.ProductName, r.Category, r.CostPrice, r.SellingPrice,
			r.AvailableStock, r.UnitsSold, r.ProductAddedYear, r.DemandForecast)
	}
	w.Flush()
}

func (c *console) findProduct(id int64) (domain.Product, bool) {
	for _, p := range c.products.Products() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (c *console) printProducts(products []domain.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCOST\tPRICE\tSTOCK\tSOLD\tOPTIMIZED\tFORECAST")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			p.ID, p.Name, p.Category, p.CostPrice, p.SellingPrice,
			p.StockAvailable, p.UnitsSold, fmtFloat(p.OptimizedPrice), fmtFloat(p.DemandForecast))
	}
	w.Flush()
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// parseProductArgs applies key=value arguments on top of base. Unknown
// keys are rejected so typos do not silently drop fields.
func parseProductArgs(args []string, base domain.Product) (domain.Product, error) {
	p := base
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return domain.Product{}, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "name":
			p.Name = value
		case "category":
			p.Category = value
		case "cost_price":
			p.CostPrice = domain.Decimal(value)
		case "selling_price":
			p.SellingPrice = domain.Decimal(value)
		case "description":
			p.Description = value
		case "stock_available":
			n, err := strconv.Atoi(value)
			if err != nil {
				return domain.Product{}, fmt.Errorf("stock_available: %w", err)
			}
			p.StockAvailable = n
		case "units_sold":
			n, err := strconv.Atoi(value)
			if err != nil {
				return domain.Product{}, fmt.Errorf("units_sold: %w", err)
			}
			p.UnitsSold = n
		case "customer_rating":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return domain.Product{}, fmt.Errorf("customer_rating: %w", err)
			}
			p.CustomerRating = &f
		default:
			return domain.Product{}, fmt.Errorf("unknown field %q", key)
		}
	}
	return p, nil
}

// validateProduct blocks malformed records before they reach the network.
func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if _, err := p.CostPrice.Float64(); err != nil || p.CostPrice == "" {
		return fmt.Errorf("cost_price must be a number")
	}
	if _, err := p.SellingPrice.Float64(); err != nil || p.SellingPrice == "" {
		return fmt.Errorf("selling_price must be a number")
	}
	return nil
}
