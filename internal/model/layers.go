package model

import (
	"fmt"

	"github.com/samcharles93/sensibility/internal/tensor"
)

// Layer is one inference step of a sequential model. Forward maps a sequence
// of timestep vectors to a new sequence and never mutates its input.
type Layer interface {
	Name() string
	Class() string
	OutputSize() int
	ParamCount() int
	Forward(seq [][]float32) [][]float32
}

type embedding struct {
	name  string
	table tensor.Mat
}

func (e *embedding) lookup(seq []int) ([][]float32, error) {
	out := make([][]float32, len(seq))
	for t, id := range seq {
		if id < 0 || id >= e.table.R {
			return nil, fmt.Errorf("%w: index %d at position %d outside vocabulary of %d", ErrInvalidInput, id, t, e.table.R)
		}
		out[t] = append([]float32(nil), e.table.Row(id)...)
	}
	return out, nil
}

type dense struct {
	name   string
	class  string
	kernel tensor.Mat
	bias   []float32
	act    tensor.Activation
}

func (d *dense) Name() string    { return d.name }
func (d *dense) Class() string   { return d.class }
func (d *dense) OutputSize() int { return d.kernel.C }
func (d *dense) ParamCount() int { return len(d.kernel.Data) + len(d.bias) }

func (d *dense) Forward(seq [][]float32) [][]float32 {
	out := make([][]float32, len(seq))
	for t, x := range seq {
		y := make([]float32, d.kernel.C)
		tensor.VecMat(y, x, d.kernel)
		if d.bias != nil {
			tensor.Add(y, d.bias)
		}
		d.act(y)
		out[t] = y
	}
	return out
}

type activation struct {
	name  string
	width int
	act   tensor.Activation
}

func (a *activation) Name() string    { return a.name }
func (a *activation) Class() string   { return "Activation" }
func (a *activation) OutputSize() int { return a.width }
func (a *activation) ParamCount() int { return 0 }

func (a *activation) Forward(seq [][]float32) [][]float32 {
	out := make([][]float32, len(seq))
	for t, x := range seq {
		y := append([]float32(nil), x...)
		a.act(y)
		out[t] = y
	}
	return out
}

// dropout is the identity at inference time.
type dropout struct {
	name  string
	width int
}

func (d *dropout) Name() string                        { return d.name }
func (d *dropout) Class() string                       { return "Dropout" }
func (d *dropout) OutputSize() int                     { return d.width }
func (d *dropout) ParamCount() int                     { return 0 }
func (d *dropout) Forward(seq [][]float32) [][]float32 { return seq }

type cellState struct {
	h []float32
	c []float32
}

type cell interface {
	step(x []float32, st *cellState)
	params() int
}

// recurrent runs a cell over the sequence, carrying state between timesteps.
type recurrent struct {
	name      string
	class     string
	units     int
	returnSeq bool
	backwards bool
	cell      cell
}

func (r *recurrent) Name() string    { return r.name }
func (r *recurrent) Class() string   { return r.class }
func (r *recurrent) OutputSize() int { return r.units }
func (r *recurrent) ParamCount() int { return r.cell.params() }

func (r *recurrent) Forward(seq [][]float32) [][]float32 {
	st := &cellState{
		h: make([]float32, r.units),
		c: make([]float32, r.units),
	}
	var out [][]float32
	if r.returnSeq {
		out = make([][]float32, len(seq))
	}
	for i := range seq {
		t := i
		if r.backwards {
			t = len(seq) - 1 - i
		}
		r.cell.step(seq[t], st)
		if r.returnSeq {
			out[i] = append([]float32(nil), st.h...)
		}
	}
	if r.returnSeq {
		return out
	}
	return [][]float32{append([]float32(nil), st.h...)}
}

type simpleCell struct {
	kernel, recurrent tensor.Mat
	bias              []float32
	act               tensor.Activation
}

func (c *simpleCell) params() int {
	return len(c.kernel.Data) + len(c.recurrent.Data) + len(c.bias)
}

func (c *simpleCell) step(x []float32, st *cellState) {
	z := make([]float32, c.kernel.C)
	tensor.VecMat(z, x, c.kernel)
	tensor.AddVecMat(z, st.h, c.recurrent)
	if c.bias != nil {
		tensor.Add(z, c.bias)
	}
	c.act(z)
	copy(st.h, z)
}

// lstmCell uses the Keras gate order i, f, c, o.
type lstmCell struct {
	units             int
	kernel, recurrent tensor.Mat
	bias              []float32
	act, recAct       tensor.Activation
}

func (c *lstmCell) params() int {
	return len(c.kernel.Data) + len(c.recurrent.Data) + len(c.bias)
}

func (c *lstmCell) step(x []float32, st *cellState) {
	u := c.units
	z := make([]float32, 4*u)
	tensor.VecMat(z, x, c.kernel)
	tensor.AddVecMat(z, st.h, c.recurrent)
	if c.bias != nil {
		tensor.Add(z, c.bias)
	}
	in, forget, cand, out := z[:u], z[u:2*u], z[2*u:3*u], z[3*u:]
	c.recAct(in)
	c.recAct(forget)
	c.act(cand)
	c.recAct(out)
	for k := 0; k < u; k++ {
		st.c[k] = forget[k]*st.c[k] + in[k]*cand[k]
	}
	copy(st.h, st.c)
	c.act(st.h)
	tensor.Mul(st.h, out)
}

// gruCell uses the Keras gate order z, r, h. With resetAfter the reset gate
// is applied after the recurrent projection and the bias has two rows.
type gruCell struct {
	units             int
	kernel, recurrent tensor.Mat
	inBias, recBias   []float32
	resetAfter        bool
	act, recAct       tensor.Activation

	// Column splits of recurrent for the classic formulation.
	recZR, recH tensor.Mat
}

func (c *gruCell) params() int {
	return len(c.kernel.Data) + len(c.recurrent.Data) + len(c.inBias) + len(c.recBias)
}

func (c *gruCell) step(x []float32, st *cellState) {
	u := c.units
	xz := make([]float32, 3*u)
	tensor.VecMat(xz, x, c.kernel)
	if c.inBias != nil {
		tensor.Add(xz, c.inBias)
	}

	var hh []float32
	update := xz[:u]
	reset := xz[u : 2*u]
	if c.resetAfter {
		hr := make([]float32, 3*u)
		tensor.VecMat(hr, st.h, c.recurrent)
		if c.recBias != nil {
			tensor.Add(hr, c.recBias)
		}
		tensor.Add(update, hr[:u])
		tensor.Add(reset, hr[u:2*u])
		c.recAct(update)
		c.recAct(reset)
		hh = xz[2*u:]
		for k := 0; k < u; k++ {
			hh[k] += reset[k] * hr[2*u+k]
		}
	} else {
		hzr := make([]float32, 2*u)
		tensor.VecMat(hzr, st.h, c.recZR)
		tensor.Add(update, hzr[:u])
		tensor.Add(reset, hzr[u:])
		c.recAct(update)
		c.recAct(reset)
		rh := make([]float32, u)
		for k := 0; k < u; k++ {
			rh[k] = reset[k] * st.h[k]
		}
		hh = xz[2*u:]
		tensor.AddVecMat(hh, rh, c.recH)
	}
	c.act(hh)
	for k := 0; k < u; k++ {
		st.h[k] = update[k]*st.h[k] + (1-update[k])*hh[k]
	}
}
