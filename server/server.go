/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server runs the development HTTP server started at the end of
// the bootstrap sequence, or hands off to an external server command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tomoncle/provision/database"
)

// Config configures the dev server.
type Config struct {
	Addr            string        `yaml:"addr"`
	StaticURL       string        `yaml:"static_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Command, when set, is executed instead of the built-in server.
	Command         []string      `yaml:"command"`
}

// DefaultConfig listens on all interfaces, port 8000.
func DefaultConfig() Config {
	return Config{
		Addr:            "0.0.0.0:8000",
		StaticURL:       "/static/",
		ShutdownTimeout: 10 * time.Second,
	}
}

// HealthChecker reports database health for /healthz.
type HealthChecker interface {
	GetHealthStatus(ctx context.Context) *database.HealthStatus
}

// Server serves the static root and a health endpoint.
type Server struct {
	cfg        Config
	staticRoot string
	health     HealthChecker
	logger     database.Logger
}

// New returns a Server. health may be nil, in which case /healthz always reports ok.
func New(cfg Config, staticRoot string, health HealthChecker, logger database.Logger) *Server {
	if logger == nil {
		logger = database.NewNamedLogger("SERVER")
	}
	if cfg.StaticURL == "" {
		cfg.StaticURL = "/static/"
	}
	if !strings.HasSuffix(cfg.StaticURL, "/") {
		cfg.StaticURL += "/"
	}
	return &Server{cfg: cfg, staticRoot: staticRoot, health: health, logger: logger}
}

// Handler returns the routes of the dev server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	if s.staticRoot != "" {
		mux.Handle(s.cfg.StaticURL, http.StripPrefix(s.cfg.StaticURL, http.FileServer(http.Dir(s.staticRoot))))
	}
	return logRequests(s.logger, mux)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := &database.HealthStatus{Healthy: true, Connected: true, LastCheckTime: time.Now()}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		status = s.health.GetHealthStatus(ctx)
		cancel()
	}
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// Run starts the configured server and blocks until ctx is cancelled or
// the server command exits.
func (s *Server) Run(ctx context.Context) error {
	if len(s.cfg.Command) > 0 {
		return s.runCommand(ctx)
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		s.logger.Info("Shutting down server", "timeout", s.shutdownTimeout())
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown error", "error", err)
		}
	}()

	s.logger.Info("Starting development server", "addr", ln.Addr().String(), "static_url", s.cfg.StaticURL)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	<-shutdownDone
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

// runCommand executes the external server with the process's stdio.
func (s *Server) runCommand(ctx context.Context) error {
	s.logger.Info("Starting server command", "command", strings.Join(s.cfg.Command, " "))
	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = s.shutdownTimeout()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("server command %q failed: %w", s.cfg.Command[0], err)
	}
	return nil
}
