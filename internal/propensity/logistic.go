package propensity

import (
	"errors"
	"fmt"
	"math"

	"gocausal/domain/causal"
	"gocausal/domain/core"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const logisticParams = 3 // intercept, units, duration

// Logistic fits P(treated | covariates) by penalised maximum likelihood using
// iteratively reweighted least squares.
type Logistic struct {
	MaxIter int
	Tol     float64
	// Ridge is an L2 penalty on all coefficients. It keeps the fit finite when
	// the groups are perfectly separable, which is common with tens of agents.
	Ridge float64
}

// DefaultLogistic returns a model with conservative solver settings.
func DefaultLogistic() Logistic {
	return Logistic{MaxIter: 50, Tol: 1e-8, Ridge: 1e-2}
}

func (Logistic) Name() string { return causal.ModelLogistic }

// Fit runs Newton-Raphson on the penalised log-likelihood.
func (m Logistic) Fit(vectors []causal.CovariateVector, treated map[core.AgentID]bool) (Scorer, error) {
	n := len(vectors)
	if n == 0 {
		return nil, fmt.Errorf("logistic propensity: empty population")
	}
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 50
	}

	x := mat.NewDense(n, logisticParams, nil)
	y := make([]float64, n)
	for i, v := range vectors {
		x.SetRow(i, []float64{1, v.Units, v.Duration})
		if treated[v.AgentID] {
			y[i] = 1
		}
	}

	beta := mat.NewVecDense(logisticParams, nil)
	eta := mat.NewVecDense(n, nil)
	for iter := 0; iter < maxIter; iter++ {
		eta.MulVec(x, beta)

		grad := mat.NewVecDense(logisticParams, nil)
		hess := mat.NewSymDense(logisticParams, nil)
		for i := 0; i < n; i++ {
			p := sigmoid(eta.AtVec(i))
			w := p * (1 - p)
			r := y[i] - p
			row := x.RawRowView(i)
			for a := 0; a < logisticParams; a++ {
				grad.SetVec(a, grad.AtVec(a)+row[a]*r)
				for b := a; b < logisticParams; b++ {
					hess.SetSym(a, b, hess.At(a, b)+w*row[a]*row[b])
				}
			}
		}
		for a := 0; a < logisticParams; a++ {
			grad.SetVec(a, grad.AtVec(a)-m.Ridge*beta.AtVec(a))
			hess.SetSym(a, a, hess.At(a, a)+m.Ridge)
		}

		var step mat.VecDense
		if err := step.SolveVec(hess, grad); err != nil {
			// mat.Condition means ill-conditioned but solved.
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, fmt.Errorf("logistic propensity: newton step failed at iteration %d: %w", iter, err)
			}
		}
		beta.AddVec(beta, &step)

		if floats.Norm(step.RawVector().Data, math.Inf(1)) < m.Tol {
			break
		}
	}

	coef := [logisticParams]float64{}
	for a := range coef {
		coef[a] = beta.AtVec(a)
		if math.IsNaN(coef[a]) || math.IsInf(coef[a], 0) {
			return nil, fmt.Errorf("logistic propensity: fit diverged")
		}
	}
	return logisticScorer{coef: coef}, nil
}

type logisticScorer struct {
	coef [logisticParams]float64
}

func (s logisticScorer) Score(v causal.CovariateVector) float64 {
	return sigmoid(s.coef[0] + s.coef[1]*v.Units + s.coef[2]*v.Duration)
}

// Coefficients returns intercept, units and duration coefficients.
func (s logisticScorer) Coefficients() []float64 {
	return s.coef[:]
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
