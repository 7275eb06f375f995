package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mileage/auth"
	"mileage/metrics"
	"mileage/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the HTTP API and the event stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("port") {
				a.cfg.Port, _ = cmd.Flags().GetString("port")
			}
			if cmd.Flags().Changed("dev") {
				a.cfg.IsDev, _ = cmd.Flags().GetBool("dev")
			}
			rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
			if a.cfg.JWTSecret == "change-me" && !a.cfg.IsDev {
				a.log.Warn("JWT_SECRET is the default value")
			}
			metrics.RegisterDefault()

			return web.Serve(ctx, web.ServiceConfig{
				IsDev:     a.cfg.IsDev,
				Port:      a.cfg.Port,
				RateLimit: rateLimit,
				RateBurst: int(rateLimit * 2),
				Service:   a.svc,
				Store:     a.store,
				Events:    a.events,
				Tokens:    auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL),
				Log:       a.log,
			})
		},
	}

	cmd.Flags().Bool("dev", true, "Run in development mode")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().Float64("rate-limit", 20, "Requests per second allowed per client IP")

	return cmd
}
