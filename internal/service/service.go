// Package service implements the support decision engine: intent
// classification, escalation, reply generation, the account store and the
// conversation workflow that sequences them.
package service

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("service")

// errNoModel is the fallback trigger when no inference backend is configured.
var errNoModel = errors.New("no inference model configured")
