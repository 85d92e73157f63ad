// Package timeouts defines shared timeout constants used across the engine.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ChannelDispatch caps a single channel-sender call so one slow recipient
// channel cannot stall a whole queue processing pass.
const ChannelDispatch = 5 * time.Second

// StoreWrite caps a single persistence call issued by the engine.
const StoreWrite = 3 * time.Second

// Shutdown limits how long the worker waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
