// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package validate provides the public API for ember's model checks.
//
// Validation collects findings instead of failing fast, so one run
// reports everything wrong with a model. Errors make a graph unfit for
// compilation; warnings are advisory.
package validate

import (
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/validate"
)

// Result collects the findings of one validation run.
type Result = validate.Result

// Validate runs every structural check against g.
func Validate(g *graph.Graph) Result {
	return validate.Validate(g)
}

// ValidateEmbedded runs the structural checks plus embedded-target
// suitability warnings (parameter count, weight size, dynamic shapes).
func ValidateEmbedded(g *graph.Graph) Result {
	return validate.ValidateEmbedded(g)
}
