// Package brain holds the small feed-forward network that drives the
// learned opponent.
package brain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type layer struct {
	w *tensor.Dense // in x out
	b *tensor.Dense // 1 x out
}

// Network is a fully connected network with ReLU between layers and a
// linear output layer. Weights are frozen once built or loaded.
type Network struct {
	sizes  []int
	layers []layer
}

// New builds a network with the given layer sizes (input first, output
// last) and Glorot-uniform weights drawn from rng with zero biases.
func New(rng *rand.Rand, sizes ...int) (*Network, error) {
	if len(sizes) < 2 {
		return nil, errors.New("network needs at least an input and an output size")
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("layer sizes must be positive, got %v", sizes)
		}
	}

	if rng == nil {
		return nil, errors.New("network needs a random source")
	}

	initW := glorotU(rng, 1.0)
	n := &Network{sizes: append([]int(nil), sizes...)}
	for i := 0; i+1 < len(sizes); i++ {
		in, out := sizes[i], sizes[i+1]
		weights := initW(tensor.Float64, in, out).([]float64)
		n.layers = append(n.layers, layer{
			w: tensor.New(tensor.WithShape(in, out), tensor.WithBacking(weights)),
			b: tensor.New(tensor.WithShape(1, out), tensor.WithBacking(make([]float64, out))),
		})
	}
	return n, nil
}

// glorotU is gorgonia.GlorotU drawing from rng instead of the package
// source, so a seed reproduces the weights.
func glorotU(rng *rand.Rand, gain float64) gorgonia.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		in, out := s[0], s[len(s)-1]
		limit := gain * math.Sqrt(6/float64(in+out))
		size := tensor.Shape(s).TotalSize()
		switch dt {
		case tensor.Float32:
			ws := make([]float32, size)
			for i := range ws {
				ws[i] = float32((rng.Float64()*2 - 1) * limit)
			}
			return ws
		default:
			ws := make([]float64, size)
			for i := range ws {
				ws[i] = (rng.Float64()*2 - 1) * limit
			}
			return ws
		}
	}
}

// Sizes returns the layer sizes, input first
func (n *Network) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// Scores runs one forward pass and returns the output layer
func (n *Network) Scores(input []float64) ([]float64, error) {
	if len(input) != n.sizes[0] {
		return nil, fmt.Errorf("input has %d values, network expects %d", len(input), n.sizes[0])
	}

	g := gorgonia.NewGraph()
	backing := append([]float64(nil), input...)
	x := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(1, len(backing)),
		gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, len(backing)), tensor.WithBacking(backing))))

	cur := x
	for i, l := range n.layers {
		w := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(l.w.Shape()...),
			gorgonia.WithName(fmt.Sprintf("w%d", i)),
			gorgonia.WithValue(l.w))
		b := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(l.b.Shape()...),
			gorgonia.WithName(fmt.Sprintf("b%d", i)),
			gorgonia.WithValue(l.b))

		cur = gorgonia.Must(gorgonia.Add(gorgonia.Must(gorgonia.Mul(cur, w)), b))
		if i < len(n.layers)-1 {
			cur = gorgonia.Must(gorgonia.Rectify(cur))
		}
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}

	out, ok := cur.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", cur.Value().Data())
	}
	return append([]float64(nil), out...), nil
}

// Argmax returns the index of the largest value; ties go to the lowest index
func Argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
