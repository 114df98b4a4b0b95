package security

import (
	"context"
	"runtime"
)

// PasswordService is the context-aware hashing API consumed by the services.
type PasswordService interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// HashPool bounds the number of concurrent hash computations. Callers wait
// for a free slot or give up when their context ends.
type HashPool struct {
	hasher PasswordHasher
	sem    chan struct{}
}

func NewHashPool(hasher PasswordHasher, workers int) *HashPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &HashPool{
		hasher: hasher,
		sem:    make(chan struct{}, workers),
	}
}

func (p *HashPool) Workers() int {
	return cap(p.sem)
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()
	return p.hasher.Hash(password)
}

func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()
	return p.hasher.Verify(password, hash), nil
}

func (p *HashPool) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.sem <- struct{}{}:
		return nil
	}
}

func (p *HashPool) release() {
	<-p.sem
}

var _ PasswordService = (*HashPool)(nil)
