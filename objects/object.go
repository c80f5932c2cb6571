// Package objects holds the similarity objects sift stores and searches:
// float32 vectors addressed by a locator, compared under a small closed set
// of metric distance families.
package objects

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Object is one similarity object: a float32 vector with a stable unique id
// and a human-assigned locator.
type Object struct {
	ID      uuid.UUID `cbor:"id" json:"id"`
	Locator string    `cbor:"locator,omitempty" json:"locator,omitempty"`
	Data    []float32 `cbor:"data" json:"data"`
}

func New(locator string, data []float32) *Object {
	return &Object{ID: uuid.New(), Locator: locator, Data: data}
}

// Random creates an object with dimension values drawn uniformly from
// [min, max).
func Random(locator string, dimension int, min, max float32) *Object {
	data := make([]float32, dimension)
	for i := range data {
		data[i] = min + rand.Float32()*(max-min)
	}
	return New(locator, data)
}

func (o *Object) Dimension() int {
	return len(o.Data)
}

func (o *Object) String() string {
	return fmt.Sprintf("Object(%s, dim=%d)", o.Locator, len(o.Data))
}
