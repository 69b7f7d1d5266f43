package flags

import (
	"context"
	"sync"
	"time"
)

// Operation names used for failure injection and the call log.
const (
	OpEnable   = "enable"
	OpDisable  = "disable"
	OpGetValue = "get_value"
	OpEvaluate = "evaluate"
	OpList     = "list"
)

// Call records one controller invocation.
type Call struct {
	Op   string
	Flag string
}

// MemoryController implements Controller in memory.
// It is intended for tests and dry runs.
type MemoryController struct {
	mu       sync.Mutex
	flags    map[string]*Flag
	failures map[string]error
	delays   map[string]time.Duration
	calls    []Call
}

// NewMemoryController creates a controller with the named boolean flags
// defined and turned off.
func NewMemoryController(names ...string) *MemoryController {
	c := &MemoryController{
		flags:    make(map[string]*Flag),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
	for _, name := range names {
		c.flags[name] = NewBooleanFlag(name)
	}
	return c
}

// Define adds or replaces a flag definition.
func (c *MemoryController) Define(flag *Flag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[flag.Name] = flag.Clone()
}

// SetFailure makes every call to op fail with err until cleared with nil.
func (c *MemoryController) SetFailure(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// SetDelay makes every call to op wait d (or until ctx is done) before it
// runs. A cancelled wait fails with a connection error.
func (c *MemoryController) SetDelay(op string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays[op] = d
}

// Calls returns the call log in invocation order.
func (c *MemoryController) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount returns how many times op was invoked.
func (c *MemoryController) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// begin logs the call, applies any injected delay and failure, and returns
// with c.mu held on success.
func (c *MemoryController) begin(ctx context.Context, op, name string) error {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Op: op, Flag: name})
	delay := c.delays[op]
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return NewConnectionError(name, ctx.Err())
		case <-timer.C:
		}
	}

	c.mu.Lock()
	if err := c.failures[op]; err != nil {
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *MemoryController) lookup(name string) (*Flag, error) {
	flag, ok := c.flags[name]
	if !ok {
		return nil, NewNotFoundError(name)
	}
	return flag, nil
}

// Enable points the flag at its "on" variant.
func (c *MemoryController) Enable(ctx context.Context, name string) error {
	if err := c.begin(ctx, OpEnable, name); err != nil {
		return err
	}
	defer c.mu.Unlock()

	flag, err := c.lookup(name)
	if err != nil {
		return err
	}
	return setVariant(name, flag, VariantOn)
}

// Disable points the flag at its "off" variant.
func (c *MemoryController) Disable(ctx context.Context, name string) error {
	if err := c.begin(ctx, OpDisable, name); err != nil {
		return err
	}
	defer c.mu.Unlock()

	flag, err := c.lookup(name)
	if err != nil {
		return err
	}
	return setVariant(name, flag, VariantOff)
}

// GetValue returns the boolean value of the flag's default variant.
func (c *MemoryController) GetValue(ctx context.Context, name string) (bool, error) {
	if err := c.begin(ctx, OpGetValue, name); err != nil {
		return false, err
	}
	defer c.mu.Unlock()

	flag, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	return boolValue(name, flag)
}

// Evaluate resolves the flag for evalCtx.
func (c *MemoryController) Evaluate(ctx context.Context, name string, evalCtx EvaluationContext) (*Evaluation, error) {
	if err := c.begin(ctx, OpEvaluate, name); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	flag, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return evaluate(name, flag, evalCtx)
}

// List returns every defined flag, sorted by name.
func (c *MemoryController) List(ctx context.Context) ([]*Flag, error) {
	if err := c.begin(ctx, OpList, ""); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return sortedFlags(c.flags), nil
}

var _ Controller = (*MemoryController)(nil)
