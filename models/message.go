package models

import (
	"math"

	"github.com/aukilabs/dagaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

const (
	ErrTypeInvalidBox = "invalid_box"
)

// Box is the JSON representation of a bounding box.
type Box struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

func NewBox(b spatial.BoundingBox) Box {
	return Box{
		Min: [3]float64{b.Min.X, b.Min.Y, b.Min.Z},
		Max: [3]float64{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// BoundingBox converts the box to a bounding box. Min and max coordinates are
// swapped when given in the wrong order.
func (b Box) BoundingBox() (spatial.BoundingBox, error) {
	for i := 0; i < 3; i++ {
		if !isFinite(b.Min[i]) || !isFinite(b.Max[i]) {
			return spatial.BoundingBox{}, errors.New("box coordinates must be finite numbers").
				WithType(ErrTypeInvalidBox).
				WithTag("min", b.Min).
				WithTag("max", b.Max)
		}
	}

	return spatial.NewBoundingBox(
		r3.Vector{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
		r3.Vector{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
	), nil
}

// ObjectBoundingBox converts the box to the bounds of an object, which must
// have a volume.
func (b Box) ObjectBoundingBox() (spatial.BoundingBox, error) {
	bounds, err := b.BoundingBox()
	if err != nil {
		return spatial.BoundingBox{}, err
	}
	if err := checkObjectBounds(bounds); err != nil {
		return spatial.BoundingBox{}, err
	}
	return bounds, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ObjectMessage is the JSON representation of an object.
type ObjectMessage struct {
	ID   uuid.UUID         `json:"id"`
	Kind string            `json:"kind"`
	Box  Box               `json:"box"`
	Tags map[string]string `json:"tags,omitempty"`
}

func NewObjectMessage(o Object) ObjectMessage {
	return ObjectMessage{
		ID:   o.ID,
		Kind: o.Kind,
		Box:  NewBox(o.Bounds),
		Tags: o.Tags,
	}
}

func NewObjectMessages(objects []Object) []ObjectMessage {
	msgs := make([]ObjectMessage, len(objects))
	for i, o := range objects {
		msgs[i] = NewObjectMessage(o)
	}
	return msgs
}
