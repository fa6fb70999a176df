package models

import (
	"github.com/aukilabs/dagaz/spatial"
	"github.com/google/uuid"
)

// Object is something placed in a scene.
type Object struct {
	ID     uuid.UUID
	Kind   string
	Bounds spatial.BoundingBox
	Tags   map[string]string

	indexID uint32
}

// Copy returns a copy of the object that does not share its tags.
func (o *Object) Copy() Object {
	c := *o
	c.Tags = copyTags(o.Tags)
	return c
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}

	c := make(map[string]string, len(tags))
	for k, v := range tags {
		c[k] = v
	}
	return c
}

func ObjectsToValues(objects []*Object) []Object {
	values := make([]Object, len(objects))
	for i, o := range objects {
		values[i] = o.Copy()
	}
	return values
}
