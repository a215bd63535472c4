package entrypoint

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana"
	"github.com/code-payments/code-program-sdk/pkg/solana/host"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// Context is the per-invocation state handed to a program.
type Context struct {
	Input  *Input
	Host   host.Host
	Memory *vm.MemoryMap

	// Heap is the scratch arena for this invocation. It is nil when the
	// host maps no heap.
	Heap *vm.Arena
}

// ProgramID returns the id of the running program.
func (c *Context) ProgramID() ed25519.PublicKey {
	return c.Input.ProgramID
}

// Account returns the raw view of the account at index.
func (c *Context) Account(index int) (*AccountInfo, error) {
	return c.Input.Account(index)
}

// Deriver returns a solana.Deriver backed by the host.
func (c *Context) Deriver() solana.Deriver {
	return host.NewDeriver(c.Host)
}

// Logf formats a message and logs it through the host.
func (c *Context) Logf(format string, args ...interface{}) {
	c.Host.Log(fmt.Sprintf(format, args...))
}

// NewContext decodes the input mapped in mem and returns the Context for
// one invocation.
func NewContext(h host.Host, mem *vm.MemoryMap, maxAccounts int, opts ...DecodeOption) (*Context, error) {
	region, ok := mem.Region(vm.InputStart)
	if !ok {
		return nil, errors.New("no input region mapped")
	}

	input, err := Deserialize(region, maxAccounts, opts...)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Input:  input,
		Host:   h,
		Memory: mem,
	}
	if heap, ok := mem.Region(vm.HeapStart); ok {
		c.Heap = vm.NewArena(heap)
	}
	return c, nil
}

// ProcessFunc handles one decoded invocation.
type ProcessFunc func(ctx context.Context, c *Context) error

// Entrypoint adapts process to the host program ABI: it decodes the input,
// runs process, and maps its error to a status.
func Entrypoint(process ProcessFunc, opts ...DecodeOption) host.ProgramFunc {
	return func(ctx context.Context, h host.Host, mem *vm.MemoryMap) uint64 {
		c, err := NewContext(h, mem, MaxAccounts, opts...)
		if err != nil {
			h.Log(fmt.Sprintf("failed to decode input: %v", err))
			return StatusFromError(err)
		}

		if err := process(ctx, c); err != nil {
			h.Log(fmt.Sprintf("program failed: %v", err))
			return StatusFromError(err)
		}
		return solana.StatusSuccess
	}
}
