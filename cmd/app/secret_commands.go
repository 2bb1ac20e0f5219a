package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/credvault/cmd/app/commands"
	"github.com/allisson/credvault/internal/app"
	"github.com/allisson/credvault/internal/config"
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
	secretsService "github.com/allisson/credvault/internal/secrets/service"
	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

func nameFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Required: true,
		Usage:    "Secret name (e.g., /app/db-password)",
	}
}

func overwriteFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "overwrite",
		Value: true,
		Usage: "Create a new version when the name exists; when false the latest version is returned",
	}
}

// withSecretUseCase runs fn with a secret use case from a fresh container.
func withSecretUseCase(ctx context.Context, fn func(secretsUseCase.SecretUseCase) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() { _ = container.Shutdown(ctx) }()

	secretUseCase, err := container.SecretUseCase()
	if err != nil {
		return err
	}
	return fn(secretUseCase)
}

func getSecretCommands() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Read and write secrets",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store a value as a new version of a secret",
				Flags: []cli.Flag{
					nameFlag(),
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Value:   string(secretsDomain.TypeValue),
						Usage:   "Secret type (value, json, password, certificate, ssh, rsa, user)",
					},
					&cli.StringFlag{
						Name:     "value",
						Aliases:  []string{"v"},
						Required: true,
						Usage:    "Secret value (private key for certificate, ssh and rsa; password for user)",
					},
					&cli.StringFlag{Name: "certificate", Usage: "PEM certificate (certificate type)"},
					&cli.StringFlag{Name: "ca", Usage: "PEM CA certificate (certificate type)"},
					&cli.StringFlag{Name: "ca-name", Usage: "Name of the CA secret (certificate type)"},
					&cli.StringFlag{Name: "public-key", Usage: "Public key (ssh and rsa types)"},
					&cli.StringFlag{Name: "username", Usage: "Username (user type)"},
					overwriteFlag(),
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withSecretUseCase(ctx, func(uc secretsUseCase.SecretUseCase) error {
						return commands.RunSetSecret(
							ctx,
							uc,
							commands.DefaultIO().Writer,
							cmd.String("name"),
							cmd.String("type"),
							cmd.String("value"),
							commands.SecretFlags{
								CAName:      cmd.String("ca-name"),
								CA:          cmd.String("ca"),
								Certificate: cmd.String("certificate"),
								PublicKey:   cmd.String("public-key"),
								Username:    cmd.String("username"),
							},
							cmd.Bool("overwrite"),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "generate",
				Usage: "Generate a password, rsa, ssh or user credential",
				Flags: []cli.Flag{
					nameFlag(),
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Value:   string(secretsDomain.TypePassword),
						Usage:   "Secret type (password, rsa, ssh, user)",
					},
					&cli.IntFlag{
						Name:  "length",
						Value: secretsService.DefaultPasswordLength,
						Usage: "Password length",
					},
					&cli.BoolFlag{Name: "exclude-upper", Usage: "Exclude upper case letters"},
					&cli.BoolFlag{Name: "exclude-lower", Usage: "Exclude lower case letters"},
					&cli.BoolFlag{Name: "exclude-number", Usage: "Exclude digits"},
					&cli.BoolFlag{Name: "include-special", Usage: "Include special characters"},
					&cli.IntFlag{
						Name:  "key-length",
						Value: secretsService.DefaultKeyLength,
						Usage: "RSA or SSH key length (2048, 3072 or 4096)",
					},
					&cli.StringFlag{Name: "ssh-comment", Usage: "Comment appended to the SSH public key"},
					&cli.StringFlag{Name: "username", Usage: "Username (user type, random when empty)"},
					overwriteFlag(),
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					params := secretsDomain.GenerateParameters{
						Password: secretsDomain.PasswordParameters{
							Length:         int(cmd.Int("length")),
							ExcludeUpper:   cmd.Bool("exclude-upper"),
							ExcludeLower:   cmd.Bool("exclude-lower"),
							ExcludeNumber:  cmd.Bool("exclude-number"),
							IncludeSpecial: cmd.Bool("include-special"),
						},
						KeyLength:  int(cmd.Int("key-length")),
						SSHComment: cmd.String("ssh-comment"),
						Username:   cmd.String("username"),
					}

					return withSecretUseCase(ctx, func(uc secretsUseCase.SecretUseCase) error {
						return commands.RunGenerateSecret(
							ctx,
							uc,
							commands.DefaultIO().Writer,
							cmd.String("name"),
							cmd.String("type"),
							params,
							cmd.Bool("overwrite"),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "get",
				Usage: "Print a secret version with its value",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Secret name",
					},
					&cli.UintFlag{
						Name:  "version",
						Usage: "Version number (latest when omitted)",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Version id (UUID); takes precedence over name",
					},
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withSecretUseCase(ctx, func(uc secretsUseCase.SecretUseCase) error {
						return commands.RunGetSecret(
							ctx,
							uc,
							commands.DefaultIO().Writer,
							cmd.String("name"),
							uint(cmd.Uint("version")),
							cmd.String("id"),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "versions",
				Usage: "List the versions of a secret, newest first",
				Flags: []cli.Flag{nameFlag(), formatFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withSecretUseCase(ctx, func(uc secretsUseCase.SecretUseCase) error {
						return commands.RunListSecretVersions(
							ctx,
							uc,
							commands.DefaultIO().Writer,
							cmd.String("name"),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a secret and all its versions",
				Flags: []cli.Flag{nameFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withSecretUseCase(ctx, func(uc secretsUseCase.SecretUseCase) error {
						return commands.RunDeleteSecret(ctx, uc, commands.DefaultIO().Writer, cmd.String("name"))
					})
				},
			},
		},
	}
}
