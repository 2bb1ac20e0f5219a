package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/credvault/cmd/app/commands"
	"github.com/allisson/credvault/internal/app"
	"github.com/allisson/credvault/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-encryption-key",
			Usage: "Generate a new encryption key entry for ENCRYPTION_KEYS",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "name",
					Aliases: []string{"n"},
					Value:   "",
					Usage:   "Key name (e.g., key-2026-01)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				loader, err := container.KeyLoader()
				if err != nil {
					return err
				}

				return commands.RunCreateEncryptionKey(
					ctx,
					loader,
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:    "rotate-encryption-key",
			Aliases: []string{"rotate"},
			Usage:   "Re-encrypt every record held under an inactive key with the active key",
			Flags:   []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotation, err := container.RotationUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateEncryptionKey(
					ctx,
					rotation,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
