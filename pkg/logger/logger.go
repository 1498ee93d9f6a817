/*
 * Copyright 2025 StructHealth Analytics.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

type instance struct {
	logger zerolog.Logger
}

// New builds a Logger from config. A nil config yields the env-driven
// defaults.
func New(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout

	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &instance{logger: zlog}, nil
}

func (i *instance) Trace() *zerolog.Event { return i.logger.Trace() }
func (i *instance) Debug() *zerolog.Event { return i.logger.Debug() }
func (i *instance) Info() *zerolog.Event  { return i.logger.Info() }
func (i *instance) Warn() *zerolog.Event  { return i.logger.Warn() }
func (i *instance) Error() *zerolog.Event { return i.logger.Error() }
func (i *instance) Fatal() *zerolog.Event { return i.logger.Fatal() }

func (i *instance) With() zerolog.Context {
	return i.logger.With()
}

func (i *instance) WithComponent(component string) zerolog.Logger {
	return i.logger.With().Str("component", component).Logger()
}

func (i *instance) SetLevel(level zerolog.Level) {
	i.logger = i.logger.Level(level)
}
