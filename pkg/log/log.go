// Copyright 2024 The Osprey Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the kernel's logging facade.
//
// Kernel code logs through the package-level helpers; the emitter behind
// them is swappable so the CLI can direct output to a file or change the
// wire format without the kernel caring.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Level is the log level.
type Level int

// The set of supported levels, lowest first.
const (
	// Warning is a very high priority.
	Warning Level = iota

	// Info is a default priority.
	Info

	// Debug is a low priority.
	Debug
)

// Emitter receives formatted log lines.
type Emitter interface {
	// Emit writes a single log line at the given level.
	Emit(level Level, format string, args ...any)
}

// logrusEmitter adapts a logrus logger to the Emitter interface.
type logrusEmitter struct {
	l *logrus.Logger
}

// Emit implements Emitter.Emit.
func (e logrusEmitter) Emit(level Level, format string, args ...any) {
	switch level {
	case Warning:
		e.l.Warnf(format, args...)
	case Info:
		e.l.Infof(format, args...)
	default:
		e.l.Debugf(format, args...)
	}
}

// NewEmitter returns an Emitter writing to w in the given format: "text"
// or "json". Unknown formats fall back to text.
func NewEmitter(format string, w io.Writer) Emitter {
	l := logrus.New()
	l.SetOutput(w)
	// Filtering happens in this package; the backing logger passes
	// everything through.
	l.SetLevel(logrus.DebugLevel)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	}
	return logrusEmitter{l}
}

// DiscardEmitter drops all log lines.
type DiscardEmitter struct{}

// Emit implements Emitter.Emit.
func (DiscardEmitter) Emit(Level, string, ...any) {}

var (
	level  = Info
	target Emitter = NewEmitter("text", io.Discard)
)

// SetLevel sets the log level; lines above it are dropped.
func SetLevel(l Level) {
	level = l
}

// CurrentLevel returns the active log level.
func CurrentLevel() Level {
	return level
}

// SetTarget sets the emitter all package helpers write to.
func SetTarget(e Emitter) {
	target = e
}

// IsLogging returns whether the given level would be emitted.
func IsLogging(l Level) bool {
	return l <= level
}

// Debugf logs at the Debug level.
func Debugf(format string, args ...any) {
	if IsLogging(Debug) {
		target.Emit(Debug, format, args...)
	}
}

// Infof logs at the Info level.
func Infof(format string, args ...any) {
	if IsLogging(Info) {
		target.Emit(Info, format, args...)
	}
}

// Warningf logs at the Warning level.
func Warningf(format string, args ...any) {
	if IsLogging(Warning) {
		target.Emit(Warning, format, args...)
	}
}
