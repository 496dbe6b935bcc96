package scheduler

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/taskplan/core/model"
)

// OptimalBenefit returns the maximum total benefit achievable for tasks within
// horizon. It solves the task/slot assignment LP in standard form:
//
//	minimize  -Σ benefit_i · x_id
//	s.t.      Σ_d x_id + s_i = 1   for every task i
//	          Σ_i x_id + s_d = 1   for every slot d
//	          x, s >= 0
//
// where x_id exists only for d <= deadline_i. The constraint matrix is the
// incidence matrix of a bipartite graph, so the optimum is integral.
// Invalid tasks are ignored, as Schedule would reject them.
func OptimalBenefit(tasks []model.Task, horizon int) (float64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	type pair struct{ task, slot int }
	var (
		valid []model.Task
		pairs []pair
	)
	for _, t := range tasks {
		if !t.ValidBenefit() || !t.WithinHorizon(horizon) {
			continue
		}
		for d := 1; d <= t.Deadline; d++ {
			pairs = append(pairs, pair{task: len(valid), slot: d})
		}
		valid = append(valid, t)
	}
	if len(pairs) == 0 {
		return 0, nil
	}

	rows := len(valid) + horizon
	cols := len(pairs) + rows
	c := make([]float64, cols)
	A := mat.NewDense(rows, cols, nil)
	for j, p := range pairs {
		c[j] = -valid[p.task].Benefit
		A.Set(p.task, j, 1)
		A.Set(len(valid)+p.slot-1, j, 1)
	}
	b := make([]float64, rows)
	for r := 0; r < rows; r++ {
		A.Set(r, len(pairs)+r, 1)
		b[r] = 1
	}

	opt, _, err := lp.Simplex(c, A, b, 1e-9, nil)
	if err != nil {
		return 0, fmt.Errorf("simplex: %w", err)
	}
	return math.Round(-opt*1e6) / 1e6, nil
}
