package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/BrunoMartinho00/lab11/internal/cart"
	"github.com/BrunoMartinho00/lab11/internal/catalog"
	"github.com/BrunoMartinho00/lab11/internal/checkout"
	"github.com/BrunoMartinho00/lab11/internal/domain"
	"github.com/BrunoMartinho00/lab11/internal/events"
	"github.com/BrunoMartinho00/lab11/internal/pricing"
	"github.com/BrunoMartinho00/lab11/internal/store"
)

var (
	errUsage    = errors.New("usage: shopcart [flags] products|show|add|remove|clear|cart|buy|watch|orders [args]")
	errNoBroker = errors.New("no event broker configured, set KAFKA_BROKERS")
)

type Catalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type PurchaseFeed interface {
	Run(ctx context.Context, handle func(events.PurchaseEvent) error) error
}

type app struct {
	out       io.Writer
	catalog   Catalog
	cart      *cart.Manager
	checkout  *checkout.Orchestrator
	store     *store.Store
	purchases PurchaseFeed
	imageBase string
	customer  string
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "products":
		return a.products(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "remove":
		return a.remove(ctx, rest)
	case "clear":
		a.cart.Clear(ctx)
		fmt.Fprintln(a.out, "cart cleared")
		return nil
	case "cart":
		return a.showCart(rest)
	case "buy":
		return a.buy(ctx, rest)
	case "watch":
		return a.watch(ctx)
	case "orders":
		return a.orders(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("products", pflag.ContinueOnError)
	search := fs.StringP("search", "s", "", "only titles containing this text")
	sortBy := fs.String("sort", string(catalog.NameAsc), "name_asc, name_desc, price_asc or price_desc")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := a.catalog.Products(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	products = catalog.Sort(catalog.Filter(products, *search), catalog.ParseSortOrder(*sortBy))
	if len(products) == 0 {
		fmt.Fprintln(a.out, "no products found")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s €\n", p.ID, p.Title, p.Category, pricing.Money(p.Price.Decimal()))
	}
	return tw.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	ids, err := parseIDs(args, 1)
	if err != nil {
		return err
	}
	p, err := a.catalog.Product(ctx, ids[0])
	if err != nil {
		return fmt.Errorf("failed to load product %d: %w", ids[0], err)
	}

	fmt.Fprintf(a.out, "%s (#%d)\n", p.Title, p.ID)
	fmt.Fprintf(a.out, "  price:    %s €\n", pricing.Money(p.Price.Decimal()))
	fmt.Fprintf(a.out, "  category: %s\n", p.Category)
	fmt.Fprintf(a.out, "  rating:   %.1f (%d reviews)\n", p.Rating.Rate, p.Rating.Count)
	if img := catalog.ImageURL(a.imageBase, p.Image); img != "" {
		fmt.Fprintf(a.out, "  image:    %s\n", img)
	}
	if p.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", p.Description)
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	ids, err := parseIDs(args, 1)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, err := a.catalog.Product(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load product %d: %w", id, err)
		}
		a.cart.AddProduct(ctx, p)
		fmt.Fprintf(a.out, "added %s\n", p.Title)
	}
	fmt.Fprintf(a.out, "%d item(s) in cart\n", a.cart.TotalUnitCount())
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	ids, err := parseIDs(args, 1)
	if err != nil {
		return err
	}
	for _, id := range ids {
		a.cart.RemoveOneUnit(ctx, id)
	}
	fmt.Fprintf(a.out, "%d item(s) in cart\n", a.cart.TotalUnitCount())
	return nil
}

func (a *app) showCart(args []string) error {
	fs := pflag.NewFlagSet("cart", pflag.ContinueOnError)
	student := fs.Bool("student", false, "apply the student discount")
	coupon := fs.String("coupon", "", "discount coupon")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.printCart(a.cart.Lines(), *student, *coupon)
}

func (a *app) printCart(lines domain.Cart, student bool, coupon string) error {
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "the cart is empty")
		return nil
	}

	q := pricing.NewQuote(lines, student, coupon)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQTY\tTITLE\tUNIT\tSUBTOTAL")
	for _, l := range q.Lines {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s €\t%s €\n", l.ProductID, l.Quantity, l.Title, pricing.Money(l.UnitPrice), pricing.Money(l.Subtotal))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "items:    %d\n", q.Units)
	if q.HasDiscount() {
		fmt.Fprintf(a.out, "subtotal: %s €\n", pricing.Money(q.Subtotal))
		fmt.Fprintf(a.out, "discount: -%s € (%s)\n", pricing.Money(q.Discount), q.Percent())
	}
	fmt.Fprintf(a.out, "total:    %s €\n", pricing.Money(q.Total))
	return nil
}

func (a *app) buy(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("buy", pflag.ContinueOnError)
	name := fs.String("name", a.customer, "name on the order")
	student := fs.Bool("student", false, "apply the student discount")
	coupon := fs.String("coupon", "", "discount coupon")
	if err := fs.Parse(args); err != nil {
		return err
	}

	unsubscribe := a.checkout.OnStatusChange(func(s domain.PurchaseStatus) {
		if s.State == domain.PurchaseInProgress {
			fmt.Fprintln(a.out, "buying...")
		}
	})
	defer unsubscribe()

	total := pricing.Total(a.cart.Lines(), *student, *coupon)
	status, err := a.checkout.Submit(ctx, checkout.Order{Name: *name, Student: *student, Coupon: *coupon})
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		fmt.Fprintln(a.out, "the cart is empty")
		return err
	case err != nil && status.State == domain.PurchaseFailed:
		fmt.Fprintf(a.out, "purchase failed: %s\n", status.Message)
		return err
	case err != nil:
		return err
	}
	fmt.Fprintf(a.out, "purchase completed, order %s, total %s €\n", status.OrderID, pricing.Money(total))
	return nil
}

// watch prints the cart every time another session changes it.
func (a *app) watch(ctx context.Context) error {
	if err := a.printCart(a.cart.Lines(), false, ""); err != nil {
		return err
	}
	unsubscribe := a.store.Subscribe(func(c domain.Cart) {
		fmt.Fprintln(a.out, "-- cart changed --")
		_ = a.printCart(c, false, "")
	})
	defer unsubscribe()

	if err := a.store.Run(ctx); err != nil {
		return fmt.Errorf("watch stopped: %w", err)
	}
	if ctx.Err() == nil {
		fmt.Fprintln(a.out, "this store cannot observe other sessions")
	}
	return nil
}

// orders prints purchase events as they are published by any session.
func (a *app) orders(ctx context.Context) error {
	if a.purchases == nil {
		return errNoBroker
	}
	return a.purchases.Run(ctx, func(e events.PurchaseEvent) error {
		ts := e.OccurredAt.Local().Format("15:04:05")
		switch e.Type {
		case events.EventPurchaseSucceeded:
			order := e.OrderID
			if order == "" {
				order = domain.OrderIDNotAvailable
			}
			fmt.Fprintf(a.out, "%s  %s bought %d item(s), order %s, total %s €\n", ts, e.Customer, len(e.Products), order, pricing.Money(e.Total))
		default:
			fmt.Fprintf(a.out, "%s  %s purchase failed: %s\n", ts, e.Customer, e.Message)
		}
		return nil
	})
}

func parseIDs(args []string, atLeast int) ([]int64, error) {
	if len(args) < atLeast {
		return nil, fmt.Errorf("%w: missing product id", errUsage)
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid product id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
