// Copyright 2023 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests (0 disables SSH)
	SSHPort int
	// Path of the SSH host key (created when missing)
	HostKeyPath string
}

// Server runs the HTTP server for the service.
type Server struct {
	Config
	log  zerolog.Logger
	ui   UI
	ctrl Controller
}

type UI interface {
	// You can wire any Bubble Tea model up to the middleware with a function that
	// handles the incoming ssh.Session. Here we just grab the terminal info and
	// pass it to the new model. You can also return tea.ProgramOptions (such as
	// tea.WithAltScreen) on a session by session basis.
	Handler(s ssh.Session) (tea.Model, []tea.ProgramOption)
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, ui UI, ctrl Controller) (*Server, error) {
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = ".ssh/id_ed25519"
	}
	return &Server{
		Config: cfg,
		log:    log.With().Str("component", "server").Logger(),
		ui:     ui,
		ctrl:   ctrl,
	}, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	httpRouter := echo.New()
	httpRouter.HideBanner = true
	httpRouter.HidePort = true
	httpRouter.HTTPErrorHandler = s.errorHandler
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	s.registerAPI(httpRouter.Group("/api"))
	return httpRouter
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	// Prepare HTTP listener
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on address %s: %w", httpAddr, err)
	}

	// Prepare HTTP server
	httpSrv := http.Server{
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Serve apis
	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	g.Go(func() error {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP server: %w", err)
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
		return nil
	})

	// Serve UI
	var sshServer *ssh.Server
	if s.SSHPort != 0 && s.ui != nil {
		sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
		sshServer, err = wish.NewServer(
			// The address the server will listen to.
			wish.WithAddress(sshAddr),

			// The SSH server need its own keys, this will create a keypair in the
			// given path if it doesn't exist yet.
			// By default, it will create an ED25519 key.
			wish.WithHostKeyPath(s.HostKeyPath),

			// Middlewares do something on a ssh.Session, and then call the next
			// middleware in the stack.
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui.Handler),
				// The last item in the chain is the first to be called.
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("could not start SSH server: %w", err)
		}
		log.Debug().Str("address", sshAddr).Msg("Serving SSH")
		g.Go(func() error {
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				return fmt.Errorf("failed to serve SSH server: %w", err)
			}
			log.Debug().Str("address", sshAddr).Msg("Done Serving SSH")
			return nil
		})
	}

	// Wait until context closed
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Closing servers")
		httpSrv.Shutdown(context.Background())
		if sshServer != nil {
			sshServer.Shutdown(context.Background())
		}
		return nil
	})

	return g.Wait()
}
