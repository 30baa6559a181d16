/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "errors"

// Domain errors shared by services. Handlers map them to HTTP statuses.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrNoPublishableVersion = errors.New("no publishable version")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUpstream             = errors.New("upstream failure")
)
