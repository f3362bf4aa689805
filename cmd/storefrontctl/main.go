package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/noxcraft/storefront/internal/catalog"
	"github.com/noxcraft/storefront/internal/config"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/postgres"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "storefrontctl",
		Short:        "Admin tooling for the storefront database",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("dsn", "", "Postgres DSN (default: POSTGRES_DSN)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(productsCmd())
	rootCmd.AddCommand(ordersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect(cmd *cobra.Command) (*pgxpool.Pool, error) {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		dsn = config.Load().PostgresDSN
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return pool, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("applied %s\n", name)
			}
			return nil
		},
	}
}

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and adjust the catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List products with price and stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ps, err := (&catalog.Repo{DB: db}).ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(os.Stdout).Encode(ps)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
			for _, p := range ps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.StockQuantity)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolP("json", "j", false, "Output as JSON")

	setStock := &cobra.Command{
		Use:   "set-stock [product-id] [quantity]",
		Short: "Overwrite stock_quantity for one product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty < 0 {
				return fmt.Errorf("quantity must be a non-negative integer, got %q", args[1])
			}
			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := (&catalog.Repo{DB: db}).SetStock(cmd.Context(), args[0], qty); err != nil {
				return err
			}
			fmt.Printf("%s stock set to %d\n", args[0], qty)
			return nil
		},
	}

	cmd.AddCommand(list, setStock)
	return cmd
}

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect fulfilled orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "session [checkout-session-id]",
		Short: "Show the orders created for one checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := (&orders.PgStore{DB: db}).ListBySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return fmt.Errorf("no orders for session %s", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		},
	})
	return cmd
}
