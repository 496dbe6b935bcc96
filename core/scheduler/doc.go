// Package scheduler assigns deadline-bound, benefit-valued tasks to day slots.
//
// Tasks are considered in descending benefit order (ties keep their input
// order) and each one takes the latest free slot at or before its deadline.
// For unit tasks on unit-capacity slots this greedy choice maximizes the total
// benefit. OptimalBenefit solves the same problem as a linear program and is
// used to audit the greedy result.
package scheduler
