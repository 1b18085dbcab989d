package direction

import "gonum.org/v1/gonum/mat"

// MatrixPool keeps matrices and vectors for reuse between solves of the same
// dimension. Returned values are zeroed.
//
// MatrixPool is not safe for concurrent use.
type MatrixPool struct {
	symPools []*mat.SymDense
	vecPools []*mat.VecDense
}

// NewMatrixPool creates a new MatrixPool
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		symPools: make([]*mat.SymDense, 0, 2),
		vecPools: make([]*mat.VecDense, 0, 8),
	}
}

// GetSymDense returns an n×n symmetric matrix from the pool or creates a new one.
func (p *MatrixPool) GetSymDense(n int) *mat.SymDense {
	for i := len(p.symPools) - 1; i >= 0; i-- {
		m := p.symPools[i]
		if m.SymmetricDim() != n {
			continue
		}
		p.symPools = append(p.symPools[:i], p.symPools[i+1:]...)
		m.Zero()
		return m
	}
	return mat.NewSymDense(n, nil)
}

// PutSymDense returns a symmetric matrix to the pool.
func (p *MatrixPool) PutSymDense(m *mat.SymDense) {
	if m == nil {
		return
	}
	p.symPools = append(p.symPools, m)
}

// GetVecDense returns a vector of length n from the pool or creates a new one.
func (p *MatrixPool) GetVecDense(n int) *mat.VecDense {
	for i := len(p.vecPools) - 1; i >= 0; i-- {
		v := p.vecPools[i]
		if v.Len() != n {
			continue
		}
		p.vecPools = append(p.vecPools[:i], p.vecPools[i+1:]...)
		v.Zero()
		return v
	}
	return mat.NewVecDense(n, nil)
}

// PutVecDense returns a vector to the pool.
func (p *MatrixPool) PutVecDense(v *mat.VecDense) {
	if v == nil {
		return
	}
	p.vecPools = append(p.vecPools, v)
}

// Len returns the number of pooled matrices and vectors.
func (p *MatrixPool) Len() int {
	return len(p.symPools) + len(p.vecPools)
}
