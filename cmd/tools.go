package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"listingpilot/backend/internal/config"
	"listingpilot/backend/pkg/auth"
	"listingpilot/backend/pkg/database"
)

func mappingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "mappings",
		Usage: "inspect or reset recorded field mappings",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print every recorded selector",
				Action: listMappings,
			},
			{
				Name:   "clear",
				Usage:  "forget every recorded selector",
				Action: clearMappings,
			},
		},
	}
}

func listMappings(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Mapping.Store == "mysql" {
		if err := database.InitDatabase(cfg); err != nil {
			return err
		}
		defer database.Close()
	}
	store, closeStore, err := openMappingStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	all, err := store.All(c.Context)
	if err != nil {
		return err
	}
	fields := make([]string, 0, len(all))
	for f := range all {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(c.App.Writer, "%-14s %s\n", f, all[f])
	}
	return nil
}

func clearMappings(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Mapping.Store == "mysql" {
		if err := database.InitDatabase(cfg); err != nil {
			return err
		}
		defer database.Close()
	}
	store, closeStore, err := openMappingStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "field mappings cleared")
	return nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an API token for the dealer dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "operator", Value: "dashboard", Usage: "name recorded in the token"},
			&cli.IntFlag{Name: "expire", Usage: "lifetime in seconds, defaults to JWT_EXPIRE_TIME"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			expire := cfg.JWT.ExpireTime
			if c.IsSet("expire") {
				expire = c.Int("expire")
			}
			auth.InitJWT(cfg.JWT.Secret)
			token, err := auth.GenerateToken(c.String("operator"), expire)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
