package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "listingpilot",
		Usage: "fill the marketplace vehicle form from dealership listings",
		Commands: []*cli.Command{
			serveCommand(),
			rehearseCommand(),
			mappingsCommand(),
			tokenCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
