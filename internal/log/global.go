package log

import "sync"

// The process-wide logger. Packages that are not handed a *Logger
// explicitly (registry fallback, cobra commands) log through it.
var (
	globalMu sync.RWMutex
	global   *Logger
)

// SetDefaultLogger installs the process-wide logger. The CLI calls this
// once from PersistentPreRun after the logging flags are parsed.
func SetDefaultLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = logger
}

// DefaultLogger returns the process-wide logger, building one from
// DefaultConfig on first use.
func DefaultLogger() *Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	l = Default()
	SetDefaultLogger(l)
	return l
}
