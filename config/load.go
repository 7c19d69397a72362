package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load reads a MeshConfig from path (any format viper supports: yaml, json,
// toml) layered onto Default().
func Load(path string) (*MeshConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyReloadable copies the fields a live reload is allowed to mutate from
// fresh into c. Identity (Hostname, Port, Service), Seeds and
// SubnetSuffixes never change underneath a running mesh: they would
// violate Invariant 1 (a peer is identified by its name) and the
// multi-subnet rotation's bookkeeping. Every other field not assigned
// below keeps its current value as well.
func (c *MeshConfig) ApplyReloadable(fresh *MeshConfig) {
	c.MaxQueue = fresh.MaxQueue
	c.MaxBytes = fresh.MaxBytes
	c.ReorderLookahead = fresh.ReorderLookahead
	c.EnqueFlushInterval = fresh.EnqueFlushInterval
	c.ThrottlePercent = fresh.ThrottlePercent
	c.HeartbeatSendTime = fresh.HeartbeatSendTime
	c.HeartbeatCheckTime = fresh.HeartbeatCheckTime
	c.PortmuxRegisterInterval = fresh.PortmuxRegisterInterval
	c.AppsockIdleTimeout = fresh.AppsockIdleTimeout
	c.AppsockSweepInterval = fresh.AppsockSweepInterval
}

// WatchReload starts a fsnotify watch on path and invokes onReload with a
// freshly parsed MeshConfig every time the file changes on disk. A running
// mesh.Context that shares the updated *MeshConfig reads EnqueFlushInterval
// on every send and WriterPollInterval per new connection; the queue caps,
// reorder lookahead and throttle percent are copied when the mesh is built
// and the heartbeat, portmux and appsock timers when it starts, so a
// reload does not change those in a running mesh.
func WatchReload(path string, onReload func(*MeshConfig)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if cfg, err := Load(path); err == nil {
					onReload(cfg)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return w, nil
}
