package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "zaptick",
		Usage:                 "Business messaging workflow automation",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			APICommand(),
			EngineCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
