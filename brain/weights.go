package brain

import (
	"encoding/gob"
	"fmt"
	"os"
	"slices"

	"gorgonia.org/tensor"
)

// header precedes the tensors in a weight file
type header struct {
	Sizes []int
}

// Save writes the network's weights to path as a gob stream
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weight file: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(header{Sizes: n.sizes}); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i, l := range n.layers {
		if err := enc.Encode(l.w); err != nil {
			return fmt.Errorf("failed to encode w%d: %w", i, err)
		}
		if err := enc.Encode(l.b); err != nil {
			return fmt.Errorf("failed to encode b%d: %w", i, err)
		}
	}
	return f.Close()
}

// Load replaces the network's weights with the ones stored at path. The
// file must describe a network of the same shape. On error the current
// weights are left untouched; a missing file yields an error wrapping
// fs.ErrNotExist.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open weight file: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	var h header
	if err := dec.Decode(&h); err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	if !slices.Equal(h.Sizes, n.sizes) {
		return fmt.Errorf("weight file shape %v does not match network %v", h.Sizes, n.sizes)
	}

	layers := make([]layer, len(n.layers))
	for i := range layers {
		var w, b *tensor.Dense
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("failed to decode w%d: %w", i, err)
		}
		if err := dec.Decode(&b); err != nil {
			return fmt.Errorf("failed to decode b%d: %w", i, err)
		}
		if !slices.Equal([]int(w.Shape()), []int(n.layers[i].w.Shape())) ||
			!slices.Equal([]int(b.Shape()), []int(n.layers[i].b.Shape())) {
			return fmt.Errorf("layer %d has shape %v/%v, want %v/%v",
				i, w.Shape(), b.Shape(), n.layers[i].w.Shape(), n.layers[i].b.Shape())
		}
		layers[i] = layer{w: w, b: b}
	}

	n.layers = layers
	return nil
}
