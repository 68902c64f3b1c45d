package fu

import (
	"math"
)

func Mean(a []float64) float64 {
	var c float64
	for _, x := range a {
		c += x
	}
	return c / float64(len(a))
}

func Mse(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		q := x - b[i]
		c += q * q
	}
	return c / float64(len(a))
}

func Mae(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		c += math.Abs(x - b[i])
	}
	return c / float64(len(a))
}

/*
Finite returns true if all values are neither NaN nor Inf
*/
func Finite(a []float64) bool {
	for _, x := range a {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

/*
Column returns j-th value of every row
*/
func Column(a [][]float64, j int) []float64 {
	r := make([]float64, len(a))
	for i, x := range a {
		r[i] = x[j]
	}
	return r
}
