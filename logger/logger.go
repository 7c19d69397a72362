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

// Package logger is a thin, field-structured logging facade over logrus.
// The core never talks to logrus directly: every component takes a Logger
// at construction so a host process can route logs wherever it wants.
package logger

import (
	"io"
	"log"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging surface every transport component
// depends on. It is intentionally small: field injection plus the four
// levels actually used in the error taxonomy (§7).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger

	SetLevel(lvl Level)
	GetLevel() Level

	// GetStdLogger bridges to the standard library log.Logger for
	// third-party code that only accepts *log.Logger.
	GetStdLogger() *log.Logger
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing JSON-ish text lines to w at the given level.
func New(w io.Writer, lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.toLogrus())
	return &logger{entry: logrus.NewEntry(l)}
}

func (l *logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return &logger{entry: l.entry.WithFields(fields)}
}

func (l *logger) SetLevel(lvl Level) {
	l.entry.Logger.SetLevel(lvl.toLogrus())
}

func (l *logger) GetLevel() Level {
	return fromLogrus(l.entry.Logger.GetLevel())
}

func (l *logger) GetStdLogger() *log.Logger {
	return log.New(l.entry.Logger.Out, "", log.LstdFlags)
}
