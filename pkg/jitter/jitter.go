// Package jitter добавляет случайность к интервалам повторов,
// чтобы перестроения индекса на нескольких репликах не совпадали по времени.
package jitter

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

var (
	globalRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMutex  sync.Mutex
)

// Duration возвращает d с джиттером в диапазоне [d, d*(1+factor)].
func Duration(d time.Duration, factor float64) time.Duration {
	randMutex.Lock()
	j := globalRand.Float64() * factor * float64(d)
	randMutex.Unlock()
	return d + time.Duration(j)
}

// Backoff описывает политику экспоненциального отступления.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	// Rand подменяет глобальный генератор, nil — глобальный.
	Rand *rand.Rand
}

// Next возвращает задержку перед попыткой attempt (нумерация с нуля).
func (b Backoff) Next(attempt int) time.Duration {
	d := capped(b.Base, b.Max, attempt)
	if b.Rand != nil {
		return d + time.Duration(b.Rand.Float64()*b.Factor*float64(d))
	}
	return Duration(d, b.Factor)
}

func capped(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
