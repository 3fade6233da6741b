// Package vecmath содержит базовые операции над float32-векторами.
package vecmath

import "math"

// Dot возвращает скалярное произведение. Длины векторов должны совпадать.
func Dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm возвращает евклидову норму вектора.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Normalize приводит вектор к единичной длине на месте.
// Возвращает false для нулевого или невалидного вектора.
func Normalize(v []float32) bool {
	n := Norm(v)
	if n == 0 || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
	return true
}

// Normalized возвращает нормализованную копию вектора.
func Normalized(v []float32) ([]float32, bool) {
	out := make([]float32, len(v))
	copy(out, v)
	ok := Normalize(out)
	return out, ok
}

// Add прибавляет b к dst на месте.
func Add(dst, b []float32) {
	for i := range dst {
		dst[i] += b[i]
	}
}
