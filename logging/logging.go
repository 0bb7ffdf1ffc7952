// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging configures the logrus logger shared by the dcm2xml packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFormat names a logrus.Formatter configuration
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"

	// DefaultLogFormat is the format used when none is configured
	DefaultLogFormat = LogFormatText

	// DefaultLogLevel keeps a successful conversion silent on stderr
	DefaultLogLevel = logrus.WarnLevel
)

// DefaultLogger is the base logrus logger. It writes to stderr since stdout carries the
// converted document.
var DefaultLogger = initializeDefaultLogger()

func initializeDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(GetFormatter(DefaultLogFormat))
	logger.SetLevel(DefaultLogLevel)
	return logger
}

// GetFormatter returns a configured logrus.Formatter for the format, or nil for an unknown format
func GetFormatter(format LogFormat) logrus.Formatter {
	switch format {
	case LogFormatText:
		return &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		}
	case LogFormatJSON:
		return &logrus.JSONFormatter{
			DisableTimestamp: true,
		}
	}

	return nil
}

// ParseLogFormat returns the LogFormat for the case-insensitive name
func ParseLogFormat(name string) (LogFormat, error) {
	format := LogFormat(strings.ToLower(name))
	if GetFormatter(format) == nil {
		return "", fmt.Errorf("incorrect log format %q, expected %q or %q", name, LogFormatText, LogFormatJSON)
	}
	return format, nil
}

// SetupLogging configures DefaultLogger with the level and format names and directs it to out.
func SetupLogging(out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logFormat, err := ParseLogFormat(format)
	if err != nil {
		return err
	}

	DefaultLogger.SetOutput(out)
	DefaultLogger.SetLevel(lvl)
	DefaultLogger.SetFormatter(GetFormatter(logFormat))
	return nil
}
