package cmd

import (
	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hildam/harvey-go/biz/chat"
	"github.com/hildam/harvey-go/biz/handler"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := conf.GetCfg()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			app, err := chat.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			h := server.Default(server.WithHostPorts(addr))
			handler.New(app.Service).Register(h)
			slog.Info("serve, listening on %s", addr)
			h.Spin()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to server.addr")
	return cmd
}
