// connection.go: raced dual-candidate connection reconfiguration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"context"
	"time"
)

// ConnectionOptions tunes the connection reconfiguration race.
type ConnectionOptions struct {
	// PollInterval is how often each candidate's connection state is polled.
	PollInterval time.Duration

	// Timeout bounds the whole attempt, measured from its start. Neither
	// candidate reporting connected within it triggers the revert path.
	Timeout time.Duration
}

// DefaultConnectionOptions returns the standard race tuning: a 100ms poll
// over a 10 second window.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		PollInterval: 100 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

func (o ConnectionOptions) withDefaults() ConnectionOptions {
	def := DefaultConnectionOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	return o
}

// applyConnectionConfig executes the connection reconfiguration protocol:
// disconnect the current client, construct a candidate from the new
// parameters, and race the candidate against the old client's reconnection.
// Whichever first reports connected becomes the active client and gets the
// required subscriptions re-established.
//
// Any failure -- construction error, neither candidate connecting within the
// timeout -- triggers a full revert to the last-known-good configuration.
// The protocol starts from a clean disconnect, so repeated failures remain
// idempotent.
func (e *Engine) applyConnectionConfig(incoming GeneralConfig) bool {
	old := e.Client()
	if err := old.Disconnect(); err != nil {
		e.logger.Warn("Current client disconnect failed before reconfiguration", "error", err)
	}

	candidate, err := e.deps.NewClient(incoming, e.files.Dir())
	if err != nil {
		e.logger.Error("New transport client construction failed", "error", NewConnectionApplyError(err))
		e.revertConnection()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Connection.Timeout)
	defer cancel()

	winner := raceConnections(ctx, e.opts.Connection.PollInterval, candidate, old)
	if winner == nil {
		e.logger.Error("Connection race failed",
			"error", NewConnectionRaceTimeoutError(e.opts.Connection.Timeout))
		candidate.Stop()
		e.revertConnection()
		return false
	}

	loser := old
	if winner == old {
		loser = candidate
	}
	if err := loser.Disconnect(); err != nil {
		e.logger.Debug("Losing candidate disconnect failed", "error", err)
	}
	loser.Stop()

	e.setClient(winner)
	if err := winner.SubscribeToRequiredTopics(); err != nil {
		e.logger.Error("Resubscribe after client swap failed", "error", err)
	}
	return true
}

// raceConnections starts every candidate's connection attempt concurrently
// and polls each for a connected state, returning the first winner or nil
// when the context expires first. Total wall-clock time is bounded by the
// context deadline, not the sum of the attempts.
func raceConnections(ctx context.Context, poll time.Duration, candidates ...TransportClient) TransportClient {
	winners := make(chan TransportClient, len(candidates))

	for _, client := range candidates {
		go func(c TransportClient) {
			if err := c.Connect(ctx); err != nil {
				return
			}
			ticker := time.NewTicker(poll)
			defer ticker.Stop()
			for {
				if c.IsConnected() {
					winners <- c
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}(client)
	}

	select {
	case winner := <-winners:
		return winner
	case <-ctx.Done():
		return nil
	}
}

// revertConnection rebuilds a client from the last-known-good configuration
// and reconnects it. I/O failures while reverting are the one truly
// unrecoverable condition here; they are logged at error level and leave
// the gateway to the host's supervision.
func (e *Engine) revertConnection() {
	e.logger.Info("Connection configuration will be restored")

	current := e.Client()
	if err := current.Disconnect(); err != nil {
		e.logger.Debug("Disconnect during revert failed", "error", err)
	}
	current.Stop()

	restored, err := e.deps.NewClient(e.store.General(), e.files.Dir())
	if err != nil {
		e.logger.Error("Rebuilding the previous client failed", "error", NewConnectionRevertError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Connection.Timeout)
	defer cancel()
	if err := restored.Connect(ctx); err != nil {
		e.logger.Error("Reconnecting the previous client failed", "error", NewConnectionRevertError(err))
	}

	e.setClient(restored)
	if err := restored.SubscribeToRequiredTopics(); err != nil {
		e.logger.Error("Resubscribe after revert failed", "error", err)
	}
	e.logger.Debug("Connection has been restored")
}
