package closer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Closer закрывает зарегистрированные ресурсы в обратном порядке (LIFO).
type Closer struct {
	entries       []entry
	mu            sync.Mutex
	once          sync.Once
	forcedTimeout time.Duration
}

// Func — сигнатура функции закрытия ресурса.
type Func func(ctx context.Context) error

type entry struct {
	name string
	fn   Func
}

// NewCloser создает Closer. forcedTimeout — время на принудительное
// закрытие оставшихся ресурсов, если контекст Close истёк.
func NewCloser(forcedTimeout time.Duration) *Closer {
	const defaultForcedTimeout = 2 * time.Second

	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout}
}

// Add регистрирует функцию закрытия под именем, которое попадёт в ошибки.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{name: name, fn: f})
}

// Close последовательно закрывает ресурсы. Повторные вызовы ничего не делают.
// Если ctx истекает до конца, оставшиеся ресурсы закрываются параллельно.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		entries := c.entries
		c.mu.Unlock()

		pending, errs := c.gracefulClose(ctx, entries)
		if len(pending) == 0 {
			if len(errs) > 0 {
				err = fmt.Errorf("shutdown finished with error(s):\n%s", strings.Join(errs, "\n"))
			}
			return
		}

		errs = append(errs, c.forcedClose(pending)...)
		err = fmt.Errorf(
			"shutdown interrupted after %d/%d funcs:\n%s",
			len(entries)-len(pending),
			len(entries),
			strings.Join(errs, "\n"),
		)
	})

	return err
}

// gracefulClose возвращает ресурсы, до которых не дошла очередь.
func (c *Closer) gracefulClose(ctx context.Context, entries []entry) ([]entry, []string) {
	var errs []string
	for i := len(entries) - 1; i >= 0; i-- {
		en := entries[i]
		done := make(chan error, 1)

		go func() {
			done <- en.fn(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Sprintf("[!] %s: %v", en.name, err))
			}
		case <-ctx.Done():
			// текущий ресурс мог не закрыться, повторяем его принудительно
			return entries[:i+1], errs
		}
	}

	return nil, errs
}

func (c *Closer) forcedClose(entries []entry) []string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []string
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	for _, en := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := en.fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("[FORCED] %s: %v", en.name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
