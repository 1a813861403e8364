package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/samcharles93/sensibility/internal/api"
	"github.com/samcharles93/sensibility/internal/logger"
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/tokenizer"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the tokenizer and the forwards model over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			if fileConfig.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = fileConfig.ServerAddress
			}

			dir := executableDir()
			arch, weights := resolveModelPaths(architecturePath, weightsPath, dir)
			m, err := model.Load(ctx, arch, weights)
			if err != nil {
				return err
			}
			tokCmd, err := resolveTokenizer(tokenizerLine, dir)
			if err != nil {
				return err
			}

			server := api.NewServer(tokenizer.New(tokCmd), m, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "tokenizer", tokCmd.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
