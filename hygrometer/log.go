// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hygrometer

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a logrus logger writing timestamped text to w at level
// ("debug", "info", "warn", ...).
func NewLogger(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	l := logrus.New()
	l.Out = w
	l.Level = lvl
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}
	return l, nil
}
