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

// Package config holds the Net-context tunables (§3, §6) as a single
// validated, viper-loadable struct, structured like a ConfigGossip/
// ConfigCluster/ConfigNode trio.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	meshErr "github.com/nabbar/meshnet/errors"
)

// Service identifies this node to the name-service hook: app/service/instance.
type Service struct {
	App      string `mapstructure:"app" json:"app" yaml:"app" toml:"app" validate:"required"`
	Service  string `mapstructure:"service" json:"service" yaml:"service" toml:"service" validate:"required"`
	Instance string `mapstructure:"instance" json:"instance" yaml:"instance" toml:"instance"`
}

// MeshConfig is the full set of tunables for one Net-context (one mesh
// membership). Only the subset that ApplyReloadable copies is replaced on
// a live reload.
type MeshConfig struct {
	// Identity.
	Hostname string  `mapstructure:"hostname" json:"hostname" yaml:"hostname" toml:"hostname" validate:"required"`
	Port     int     `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Service  Service `mapstructure:"service" json:"service" yaml:"service" toml:"service"`

	// Seeds for the gossip closure property (§8.10): any one reachable
	// member is sufficient to discover the rest of the mesh.
	Seeds []string `mapstructure:"seeds" json:"seeds" yaml:"seeds" toml:"seeds"`

	// Subnet suffixes for multi-subnet rotation (§4.D), e.g. "_n2", "_n3".
	SubnetSuffixes   []string      `mapstructure:"subnet_suffixes" json:"subnet_suffixes" yaml:"subnet_suffixes" toml:"subnet_suffixes"`
	SubnetBlackout   time.Duration `mapstructure:"subnet_blackout" json:"subnet_blackout" yaml:"subnet_blackout" toml:"subnet_blackout" validate:"gte=0"`

	// Send queue caps (§4.C).
	MaxQueue int `mapstructure:"max_queue" json:"max_queue" yaml:"max_queue" toml:"max_queue" validate:"gt=0"`
	MaxBytes int `mapstructure:"max_bytes" json:"max_bytes" yaml:"max_bytes" toml:"max_bytes" validate:"gt=0"`

	// Reorder window and flush cadence (§4.C).
	ReorderLookahead   int `mapstructure:"reorder_lookahead" json:"reorder_lookahead" yaml:"reorder_lookahead" toml:"reorder_lookahead" validate:"gte=0"`
	EnqueFlushInterval int `mapstructure:"enque_flush_interval" json:"enque_flush_interval" yaml:"enque_flush_interval" toml:"enque_flush_interval" validate:"gt=0"`

	// Throttle (§4.C).
	ThrottlePercent int `mapstructure:"throttle_percent" json:"throttle_percent" yaml:"throttle_percent" toml:"throttle_percent" validate:"gte=0,lte=100"`

	// Heartbeat & liveness (§4.F).
	HeartbeatSendTime  time.Duration `mapstructure:"heartbeat_send_time" json:"heartbeat_send_time" yaml:"heartbeat_send_time" toml:"heartbeat_send_time" validate:"gt=0"`
	HeartbeatCheckTime time.Duration `mapstructure:"heartbeat_check_time" json:"heartbeat_check_time" yaml:"heartbeat_check_time" toml:"heartbeat_check_time" validate:"gt=0"`
	PortmuxRegisterInterval time.Duration `mapstructure:"portmux_register_interval" json:"portmux_register_interval" yaml:"portmux_register_interval" toml:"portmux_register_interval" validate:"gt=0"`

	// Socket tunables (§4.D).
	NetPollTimeout time.Duration `mapstructure:"net_poll_timeout" json:"net_poll_timeout" yaml:"net_poll_timeout" toml:"net_poll_timeout" validate:"gt=0"`
	SocketBufSize  int           `mapstructure:"socket_buf_size" json:"socket_buf_size" yaml:"socket_buf_size" toml:"socket_buf_size" validate:"gte=0"`

	// Writer poll floor (§4.E).
	WriterPollInterval time.Duration `mapstructure:"writer_poll_interval" json:"writer_poll_interval" yaml:"writer_poll_interval" toml:"writer_poll_interval" validate:"gt=0"`

	// Appsock idle timers (§4.I). AppsockIdleTimeout is the watchlist's
	// read-idle and write-idle timeout alike, and zero disables both
	// axes; AppsockSweepInterval governs
	// how often the watchlist is scanned for expired sessions.
	AppsockIdleTimeout   time.Duration `mapstructure:"appsock_idle_timeout" json:"appsock_idle_timeout" yaml:"appsock_idle_timeout" toml:"appsock_idle_timeout" validate:"gte=0"`
	AppsockSweepInterval time.Duration `mapstructure:"appsock_sweep_interval" json:"appsock_sweep_interval" yaml:"appsock_sweep_interval" toml:"appsock_sweep_interval" validate:"gt=0"`

	// MaxUserType bounds the handler table, a runtime-configurable
	// replacement for what would otherwise be a compile-time constant.
	MaxUserType int `mapstructure:"max_user_type" json:"max_user_type" yaml:"max_user_type" toml:"max_user_type" validate:"gt=0"`

	// TLS policy for the connection engine's pluggable hook (§6).
	TLSPolicy string `mapstructure:"tls_policy" json:"tls_policy" yaml:"tls_policy" toml:"tls_policy" validate:"omitempty,oneof=disabled allow require"`

	// MinEngineVersion gates startup to builds at or above this
	// wire-engine revision, so a rolling upgrade can refuse to bring up
	// a node whose connect/envelope layout predates the rest of the
	// mesh. Empty disables the gate.
	MinEngineVersion string `mapstructure:"min_engine_version" json:"min_engine_version" yaml:"min_engine_version" toml:"min_engine_version"`
}

// Default returns a MeshConfig with sane defaults for a moderate-size
// mesh: a 10000-frame/64MiB send queue, 2s heartbeats with a 6s
// liveness timeout, and TLS disabled.
func Default() *MeshConfig {
	return &MeshConfig{
		SubnetBlackout:           30 * time.Second,
		MaxQueue:                 10000,
		MaxBytes:                 64 << 20,
		ReorderLookahead:         32,
		EnqueFlushInterval:       16,
		ThrottlePercent:          80,
		HeartbeatSendTime:        2 * time.Second,
		HeartbeatCheckTime:       6 * time.Second,
		PortmuxRegisterInterval:  60 * time.Second,
		NetPollTimeout:           100 * time.Millisecond,
		SocketBufSize:            0,
		WriterPollInterval:       time.Second,
		AppsockIdleTimeout:       0,
		AppsockSweepInterval:     10 * time.Second,
		MaxUserType:              256,
		TLSPolicy:                "disabled",
	}
}

// Validate runs struct-tag validation the way ConfigGossip.Validate does,
// folding every field violation into one chained meshErr.Error.
func (c *MeshConfig) Validate() error {
	val := validator.New()
	err := val.Struct(c)
	if err == nil {
		return nil
	}

	verr, ok := err.(validator.ValidationErrors)
	if !ok {
		return meshErr.New(meshErr.ConfigInvalid, err)
	}

	var cause error
	for _, fe := range verr {
		//nolint #goerr113
		next := fmt.Errorf("field %q failed constraint %q", fe.Namespace(), fe.ActualTag())
		if cause == nil {
			cause = next
		} else {
			cause = fmt.Errorf("%w; %s", cause, next)
		}
	}
	return meshErr.New(meshErr.ConfigInvalid, cause)
}
