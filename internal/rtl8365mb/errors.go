// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

var (
	ErrInvalid     = errors.New("invalid argument")
	ErrNoSpace     = errors.New("no space left")
	ErrIO          = errors.New("i/o error")
	ErrUnsupported = errors.New("not supported")
	ErrNotFound    = errors.New("not found")
	ErrTimeout     = regmap.ErrTimeout
)
