package tensor

import "fmt"

// ParamSet is an ordered mapping from parameter name to tensor. The order
// of first insertion fixes the layout used by ToVector and FromVector, so
// snapshots taken from the same network flatten identically.
type ParamSet struct {
	names []string
	m     map[string]*Tensor
}

// NewParamSet returns an empty parameter set.
func NewParamSet() *ParamSet {
	return &ParamSet{m: make(map[string]*Tensor)}
}

// Set inserts or replaces the named parameter. Replacing keeps the original
// position in the flattening order.
func (p *ParamSet) Set(name string, t *Tensor) {
	if _, ok := p.m[name]; !ok {
		p.names = append(p.names, name)
	}
	p.m[name] = t
}

// Get returns the named parameter or nil.
func (p *ParamSet) Get(name string) *Tensor {
	return p.m[name]
}

// Names returns the parameter names in flattening order.
func (p *ParamSet) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Tensors returns the parameters in flattening order.
func (p *ParamSet) Tensors() []*Tensor {
	out := make([]*Tensor, len(p.names))
	for i, n := range p.names {
		out[i] = p.m[n]
	}
	return out
}

// Len returns the number of parameters.
func (p *ParamSet) Len() int {
	return len(p.names)
}

// Size returns the total number of scalar values across all parameters.
func (p *ParamSet) Size() (n int) {
	for _, name := range p.names {
		n += p.m[name].Size()
	}
	return
}

// Clone returns a deep copy with fresh storage. Gradient-tracked leaves stay
// gradient-tracked; nothing in the copy aliases the source.
func (p *ParamSet) Clone() *ParamSet {
	out := NewParamSet()
	for _, n := range p.names {
		out.Set(n, p.m[n].Clone())
	}
	return out
}

// Detach returns a copy severed from any recorded graph and from gradient
// tracking altogether.
func (p *ParamSet) Detach() *ParamSet {
	out := NewParamSet()
	for _, n := range p.names {
		out.Set(n, p.m[n].Detach())
	}
	return out
}

// ToVector flattens all parameters into one slice in flattening order.
func (p *ParamSet) ToVector() []float64 {
	out := make([]float64, 0, p.Size())
	for _, n := range p.names {
		out = append(out, p.m[n].data...)
	}
	return out
}

// FromVector writes the flat vector back into the existing parameter
// storage in place. This is one of the defined parameter mutation points.
func (p *ParamSet) FromVector(v []float64) error {
	if len(v) != p.Size() {
		return fmt.Errorf("tensor: vector size %d, parameters hold %d", len(v), p.Size())
	}
	off := 0
	for _, n := range p.names {
		t := p.m[n]
		copy(t.data, v[off:off+len(t.data)])
		off += len(t.data)
	}
	return nil
}
