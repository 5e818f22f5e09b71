// Package remoteconfig implements the remote-configuration reconciliation
// engine of an IoT edge gateway. It receives attribute-update batches pushed
// from a central management server, routes each attribute to the subsystem it
// targets, applies the change with a validate/apply/rollback discipline, and
// persists the resulting configuration to durable files with timestamped
// backups.
//
// Key Features:
//   - Ordered attribute dispatch with a catch-all connector route
//   - Single-flight guard: at most one reconciliation batch in flight
//   - Per-domain apply handlers with swap-and-verify rollback
//   - Raced dual-candidate reconnection bounded by a fixed timeout
//   - Timestamp and content-digest change detection to skip redundant work
//   - Human-formatted JSON persistence with pre-overwrite backups
//   - Local connector-file watching through Argus with an audit trail
//
// Basic Usage:
//
//	engine, err := remoteconfig.New(remoteconfig.Dependencies{
//		Client:     client,
//		NewClient:  newClient,
//		NewStorage: newStorage,
//		Connectors: runtime,
//		Subsystems: subsystems,
//		Logger:     logger,
//	}, remoteconfig.Options{ConfigDir: "/etc/gateway", Version: "3.4"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Synchronize state with the server and start local watching
//	if err := engine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	// Feed remotely pushed attribute updates into the engine
//	_ = engine.ProcessUpdate(request)
//
// Error Handling:
// No error inside the engine is fatal to the host process. A failing key in a
// batch is logged and the remaining keys are still processed; a failing apply
// triggers the documented revert path for its domain and leaves the in-memory
// configuration exactly as before the attempt.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package remoteconfig
