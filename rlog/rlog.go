// Package rlog provides the engine's file-backed loggers: one each
// for info, warning, and error severity, opened append-only the same
// way the reference engine's core manager does.
package rlog

import (
	"log"
	"os"
	"path/filepath"
)

// Loggers bundles the three severities used across the engine.
type Loggers struct {
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

// Open creates (or appends to) info.log, warn.log and error.log under dir.
func Open(dir string) (*Loggers, error) {
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	}
	infoFile, err := open("info.log")
	if err != nil {
		return nil, err
	}
	warnFile, err := open("warn.log")
	if err != nil {
		return nil, err
	}
	errFile, err := open("error.log")
	if err != nil {
		return nil, err
	}
	return &Loggers{
		Info:  log.New(infoFile, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		Warn:  log.New(warnFile, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile),
		Error: log.New(errFile, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
	}, nil
}

// Fatalf writes a single diagnostic line, prefixed with component, to
// the error log, then terminates the process. cmd/engine calls it for
// any error that reaches main, whatever its kind.
func (l *Loggers) Fatalf(component string, format string, args ...any) {
	l.Error.Printf(component+": "+format, args...)
	os.Exit(1)
}
