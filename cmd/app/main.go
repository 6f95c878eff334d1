// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/server"
	"codeberg.org/oliverandrich/go-account-template/internal/services/session"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	server.Version = Version

	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Run the account service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "generate-keys",
				Usage:  "Print fresh session hash and block keys",
				Action: generateKeys,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generateKeys(_ context.Context, cmd *cli.Command) error {
	hashKey, err := session.GenerateKey()
	if err != nil {
		return err
	}
	blockKey, err := session.GenerateKey()
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	_, err = fmt.Fprintf(w, "SESSION_HASH_KEY=%s\nSESSION_BLOCK_KEY=%s\n", hashKey, blockKey)
	return err
}
