/*
 * MIT License
 *
 * Copyright (c) 2026 meshnet authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Command meshnetd is a minimal host process demonstrating the wiring a
// real caller needs: load configuration, bind a listener, register an
// echo handler, seed peers, and serve the admin introspection
// endpoint.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/meshnet/config"
	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/mesh"
	"github.com/nabbar/meshnet/mesh/admin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		hostname string
		port     uint16
		seeds    []string
		adminBind string
	)

	cmd := &cobra.Command{
		Use:   "meshnetd",
		Short: "Run a meshnet node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg = loaded
			}
			if len(seeds) > 0 {
				cfg.Seeds = seeds
			}
			if hostname == "" {
				hostname, _ = os.Hostname()
			}

			log := logger.New(os.Stderr, logger.InfoLevel)

			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				return fmt.Errorf("binding listener: %w", err)
			}

			ctx, err := mesh.New(hostname, port, cfg, log, mesh.WithListener(listener))
			if err != nil {
				return fmt.Errorf("constructing mesh: %w", err)
			}

			registerDemoHandlers(ctx)
			for _, seed := range cfg.Seeds {
				ctx.AddPeer(seed, 0)
			}

			runCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := ctx.Start(runCtx); err != nil {
				return fmt.Errorf("starting mesh: %w", err)
			}

			if adminBind != "" {
				srv := admin.New(ctx)
				go func() {
					if err := http.ListenAndServe(adminBind, srv.Handler()); err != nil {
						log.Warnf("admin server stopped: %v", err)
					}
				}()
			}

			if cfgPath != "" {
				if _, err := config.WatchReload(cfgPath, func(fresh *config.MeshConfig) {
					cfg.ApplyReloadable(fresh)
				}); err != nil {
					log.Warnf("config hot-reload disabled: %v", err)
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			cancel()
			return ctx.Close()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to a config file (yaml/json/toml)")
	flags.StringVar(&hostname, "hostname", "", "this node's advertised hostname (default: os hostname)")
	flags.Uint16Var(&port, "port", 4700, "TCP port to listen on")
	flags.StringSliceVar(&seeds, "seed", nil, "seed peer hostnames")
	flags.StringVar(&adminBind, "admin-bind", "127.0.0.1:4701", "admin HTTP bind address, empty to disable")

	viper.AutomaticEnv()
	return cmd
}

// registerDemoHandlers wires a toy echo handler on user type 0 so the
// binary does something observable out of the box.
func registerDemoHandlers(ctx *mesh.Context) {
	_ = ctx.RegisterHandler(0, "echo", func(from string, userType int32, body []byte, ack *mesh.AckState) int32 {
		ack.Reply(0, body)
		return 0
	})
}
