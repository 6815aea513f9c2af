package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"listingpilot/backend/internal/config"
	"listingpilot/backend/internal/fillers"
	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/orchestrator"
	"listingpilot/backend/internal/page"
)

func rehearseCommand() *cli.Command {
	return &cli.Command{
		Name:      "rehearse",
		Usage:     "fill a saved copy of the vehicle form offline and print what happened",
		ArgsUsage: "<form.html>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listing", Aliases: []string{"l"}, Required: true, Usage: "listing file (YAML or JSON)"},
			&cli.StringFlag{Name: "selectors", Usage: "YAML selector catalog overriding the built-in lists"},
			&cli.BoolFlag{Name: "paced", Usage: "keep the configured delays instead of running flat out"},
			&cli.DurationFlag{Name: "timeout", Value: time.Minute, Usage: "give up after this long"},
		},
		Action: rehearseAction,
	}
}

type rehearsalReport struct {
	Result models.OperationResult `yaml:"result"`
	Fields []models.FieldOutcome  `yaml:"fields"`
	Form   map[string]string      `yaml:"form"`
	Events int                    `yaml:"events"`
}

// captureSink keeps the attempt in memory for the report.
type captureSink struct {
	attempt models.PostingAttempt
}

func (s *captureSink) Record(attempt models.PostingAttempt) {
	s.attempt = attempt
}

func rehearseAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("rehearse needs exactly one form file, got %d arguments", c.NArg())
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !c.Bool("paced") {
		cfg.Timing = config.TimingConfig{
			NavigationPoll: 10 * time.Millisecond,
			ReadyTimeout:   time.Second,
			ElementWait:    200 * time.Millisecond,
		}
	}

	listing, err := loadListing(c.String("listing"))
	if err != nil {
		return err
	}
	markup, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("read form: %w", err)
	}
	catalog, err := fillers.LoadCatalog(c.String("selectors"))
	if err != nil {
		return err
	}

	form, err := page.NewHTMLPage(string(markup), page.WithURL(cfg.Marketplace.CreateURL()))
	if err != nil {
		return fmt.Errorf("parse form: %w", err)
	}

	sink := &captureSink{}
	engine := newEngine(cfg, catalog, form, mapping.NewMemoryStore(), sink)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	result := engine.Post(ctx, orchestrator.Request{Listing: listing, Source: "cli"})

	fields, err := sink.attempt.GetFieldLog()
	if err != nil {
		return fmt.Errorf("decode field outcomes: %w", err)
	}
	report := rehearsalReport{
		Result: result,
		Fields: fields,
		Form:   form.FormState(),
		Events: len(form.Events()),
	}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(report)
}

// loadListing reads a listing in YAML or JSON; JSON parses as YAML.
func loadListing(path string) (models.VehicleListing, error) {
	var v models.VehicleListing
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read listing: %w", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parse listing %s: %w", path, err)
	}
	return v, nil
}
