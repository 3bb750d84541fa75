package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

// storefront seed — load demo data into the configured store.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo catalog data and an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var st store.Store
		switch config.StoreDriver() {
		case "mongo":
			m, err := store.ConnectMongo(ctx, config.MongoURI(), config.MongoDB())
			if err != nil {
				return err
			}
			st = m
		default:
			return fmt.Errorf("seed requires STORE_DRIVER=mongo, got %q", config.StoreDriver())
		}
		defer st.Close(context.Background())

		return seeders.Run(ctx, st)
	},
}
