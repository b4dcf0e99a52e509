// Package consistency compares the direction of the effect estimators run for
// the same treatment definition.
package consistency

import (
	"math"

	"gocausal/domain/causal"
)

// Epsilon is the magnitude under which an effect counts as zero.
const Epsilon = 1e-9

// DefaultMethods is the method order used in verdicts.
var DefaultMethods = []causal.Method{causal.MethodNaive, causal.MethodMatched, causal.MethodStratified}

// SignOf returns the direction of an effect.
func SignOf(effect float64) causal.Sign {
	switch {
	case math.Abs(effect) < Epsilon:
		return causal.SignZero
	case effect > 0:
		return causal.SignPositive
	default:
		return causal.SignNegative
	}
}

// Positive reports whether an effect points upward. Agreement is decided on this
// binary direction, so a zero effect agrees with a negative one even though
// SignOf reports it as zero.
func Positive(effect float64) bool {
	return effect >= Epsilon
}

// Compare builds one verdict per estimate over the given methods (DefaultMethods
// when none are given). Undefined methods are left out of the verdict. Methods
// agree when at least two are defined and all point in the same direction.
func Compare(estimates []causal.EffectEstimate, methods ...causal.Method) []causal.ConsistencyVerdict {
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	out := make([]causal.ConsistencyVerdict, 0, len(estimates))
	for _, est := range estimates {
		out = append(out, verdict(est, methods))
	}
	return out
}

func verdict(est causal.EffectEstimate, methods []causal.Method) causal.ConsistencyVerdict {
	v := causal.ConsistencyVerdict{
		Definition: est.Definition,
		Metric:     est.Metric,
	}
	for _, m := range methods {
		effect, ok := est.Effect(m)
		if !ok {
			continue
		}
		v.Methods = append(v.Methods, causal.MethodSign{Method: m, Effect: effect, Sign: SignOf(effect)})
	}

	v.Agree = len(v.Methods) >= 2
	for _, ms := range v.Methods {
		if Positive(ms.Effect) != Positive(v.Methods[0].Effect) {
			v.Agree = false
			break
		}
	}
	return v
}
