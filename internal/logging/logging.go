package logging

import "log"

// Debug controls whether debug logs are printed.
var Debug bool

// Debugf logs a formatted debug message when Debug is enabled.
func Debugf(format string, v ...any) {
	if Debug {
		log.Printf("DEBUG: "+format, v...)
	}
}

// Warnf logs a degraded-but-recoverable condition, such as a panel that
// failed to load while the rest of the view stayed intact.
func Warnf(format string, v ...any) {
	log.Printf("WARN: "+format, v...)
}
