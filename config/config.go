// Package config holds the per-peer tunables: call timeout, backpressure
// capacity, shutdown grace period and max frame size. Grounded on the
// teacher's Extra struct (transport.Extra) for per-instance overrides and
// on cmn.Rom for the read-mostly access pattern a peer uses on its hot
// path (default timeout is read on every outgoing call).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import "time"

const (
	// DefaultCallTimeout bounds an outgoing call absent an Option override.
	DefaultCallTimeout = 30 * time.Second
	// DefaultGracePeriod is how long a closing peer waits for in-flight
	// handler tasks before dropping them.
	DefaultGracePeriod = 50 * time.Millisecond
	// DefaultMaxFrameSize is the codec's max_size, payload bytes only.
	DefaultMaxFrameSize = 4 << 20
)

// Config is a read-mostly snapshot, built once at peer construction via
// Options and never mutated afterwards; a peer rebuilds a new Config
// rather than updating this one in place, so no lock is needed to read it
// off the hot path.
type Config struct {
	CallTimeout    time.Duration
	GracePeriod    time.Duration
	MaxFrameSize   uint64
	Backpressure   int // 0 disables backpressure
	PeerID         string
	PeerName       string
}

// Option mutates a Config at construction time, following the functional-
// options pattern the teacher uses for transport.Extra.
type Option func(*Config)

func WithCallTimeout(d time.Duration) Option { return func(c *Config) { c.CallTimeout = d } }
func WithGracePeriod(d time.Duration) Option { return func(c *Config) { c.GracePeriod = d } }
func WithMaxFrameSize(n uint64) Option       { return func(c *Config) { c.MaxFrameSize = n } }
func WithBackpressure(n int) Option          { return func(c *Config) { c.Backpressure = n } }
func WithIdentity(id, name string) Option {
	return func(c *Config) { c.PeerID, c.PeerName = id, name }
}

// New builds a Config starting from the package defaults, then applies
// opts in order; later options win.
func New(opts ...Option) Config {
	c := Config{
		CallTimeout:  DefaultCallTimeout,
		GracePeriod:  DefaultGracePeriod,
		MaxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
