package logger

import (
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

// hcBridge adapts our Logger to hashicorp/go-hclog's interface so
// components of an embedding host that already standardized on hclog
// (e.g. a raft/consensus layer running above the transport) can share one
// sink instead of interleaving two independent log streams.
type hcBridge struct {
	Logger
	name string
}

// AsHCLog wraps l as an hclog.Logger under the given subsystem name.
func AsHCLog(l Logger, name string) hclog.Logger {
	return &hcBridge{Logger: l, name: name}
}

func (h *hcBridge) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.Debugf("%s: %s %v", h.name, msg, args)
	case hclog.Warn:
		h.Warnf("%s: %s %v", h.name, msg, args)
	case hclog.Error:
		h.Errorf("%s: %s %v", h.name, msg, args)
	default:
		h.Infof("%s: %s %v", h.name, msg, args)
	}
}

func (h *hcBridge) Trace(msg string, args ...interface{}) { h.Log(hclog.Trace, msg, args...) }
func (h *hcBridge) Debug(msg string, args ...interface{}) { h.Log(hclog.Debug, msg, args...) }
func (h *hcBridge) Info(msg string, args ...interface{})  { h.Log(hclog.Info, msg, args...) }
func (h *hcBridge) Warn(msg string, args ...interface{})  { h.Log(hclog.Warn, msg, args...) }
func (h *hcBridge) Error(msg string, args ...interface{}) { h.Log(hclog.Error, msg, args...) }

func (h *hcBridge) IsTrace() bool { return true }
func (h *hcBridge) IsDebug() bool { return true }
func (h *hcBridge) IsInfo() bool  { return true }
func (h *hcBridge) IsWarn() bool  { return true }
func (h *hcBridge) IsError() bool { return true }

func (h *hcBridge) ImpliedArgs() []interface{} { return nil }
func (h *hcBridge) With(args ...interface{}) hclog.Logger {
	fields := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			fields[k] = args[i+1]
		}
	}
	return &hcBridge{Logger: h.Logger.WithFields(fields), name: h.name}
}

func (h *hcBridge) Name() string { return h.name }
func (h *hcBridge) Named(name string) hclog.Logger {
	return &hcBridge{Logger: h.Logger, name: h.name + "." + name}
}
func (h *hcBridge) ResetNamed(name string) hclog.Logger {
	return &hcBridge{Logger: h.Logger, name: name}
}

func (h *hcBridge) SetLevel(level hclog.Level) {}
func (h *hcBridge) GetLevel() hclog.Level       { return hclog.Info }

func (h *hcBridge) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return h.Logger.GetStdLogger()
}

func (h *hcBridge) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return h.Logger.GetStdLogger().Writer()
}
