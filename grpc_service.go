// grpc_service.go: internal RPC transport lifecycle built from configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// GRPCRegisterFunc registers the host gateway's services on a freshly built
// internal RPC server. It is called every time the transport is rebuilt
// from a new configuration.
type GRPCRegisterFunc func(server *grpc.Server)

// GRPCService owns the gateway's secondary transport: a gRPC server whose
// port, keepalive behavior and message size caps come from the
// grpc_configuration domain. The transport handler tears the service down
// and rebuilds it under swap-and-verify whenever that domain changes.
type GRPCService struct {
	cfg      GRPCConfig
	server   *grpc.Server
	listener net.Listener
	logger   Logger

	mu      sync.Mutex
	stopped bool
}

// NewGRPCService builds, binds and starts serving an internal RPC server
// from cfg. A bind failure is returned immediately so the caller can run
// its revert path; serving errors after startup are logged.
func NewGRPCService(cfg GRPCConfig, register GRPCRegisterFunc, logger Logger) (*GRPCService, error) {
	logger = NewLogger(logger)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ServerPort))
	if err != nil {
		return nil, NewTransportListenError(cfg.ServerPort, err)
	}

	server := grpc.NewServer(serverOptions(cfg)...)
	if register != nil {
		register(server)
	}

	s := &GRPCService{
		cfg:      cfg,
		server:   server,
		listener: listener,
		logger:   logger,
	}

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if !stopped {
				logger.Error("Internal RPC server stopped unexpectedly", "error", serveErr)
			}
		}
	}()

	logger.Info("Internal RPC transport started", "addr", listener.Addr().String())
	return s, nil
}

func serverOptions(cfg GRPCConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if cfg.KeepAliveTimeMS > 0 || cfg.KeepAliveTimeoutMS > 0 {
		params := keepalive.ServerParameters{}
		if cfg.KeepAliveTimeMS > 0 {
			params.Time = time.Duration(cfg.KeepAliveTimeMS) * time.Millisecond
		}
		if cfg.KeepAliveTimeoutMS > 0 {
			params.Timeout = time.Duration(cfg.KeepAliveTimeoutMS) * time.Millisecond
		}
		opts = append(opts, grpc.KeepaliveParams(params))
	}

	if cfg.MinTimeBetweenPingsMS > 0 || cfg.KeepalivePermitWithoutCalls {
		policy := keepalive.EnforcementPolicy{
			PermitWithoutStream: cfg.KeepalivePermitWithoutCalls,
		}
		if cfg.MinTimeBetweenPingsMS > 0 {
			policy.MinTime = time.Duration(cfg.MinTimeBetweenPingsMS) * time.Millisecond
		}
		opts = append(opts, grpc.KeepaliveEnforcementPolicy(policy))
	}

	if cfg.MaxRecvMsgSizeBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSizeBytes))
	}

	return opts
}

// Addr returns the bound listen address, useful when the configured port
// is 0.
func (s *GRPCService) Addr() net.Addr {
	return s.listener.Addr()
}

// Config returns the configuration the service was built from.
func (s *GRPCService) Config() GRPCConfig {
	return s.cfg
}

// Stop shuts the server down, releasing the port. Stop is idempotent.
func (s *GRPCService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.server.Stop()
	s.logger.Debug("Internal RPC transport stopped", "addr", s.listener.Addr().String())
}
