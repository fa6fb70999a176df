package models

import (
	"io"
	"sync"

	"github.com/aukilabs/dagaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

const (
	ErrTypeObjectNotFound = "object_not_found"
)

// Scene is a set of objects indexed by their bounds. It serializes the access
// to its spatial index and can be used from multiple goroutines.
type Scene struct {
	Name string

	mutex   sync.Mutex
	index   *spatial.Index[*Object]
	objects map[uuid.UUID]*Object
}

func NewScene(name string, index *spatial.Index[*Object]) *Scene {
	return &Scene{
		Name:    name,
		index:   index,
		objects: make(map[uuid.UUID]*Object),
	}
}

// Add places a new object in the scene. Objects must have a volume: bounds
// that are flat on an axis are rejected.
func (s *Scene) Add(kind string, bounds spatial.BoundingBox, tags map[string]string) (Object, error) {
	if err := checkObjectBounds(bounds); err != nil {
		return Object{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	o := &Object{
		ID:     uuid.New(),
		Kind:   kind,
		Bounds: bounds,
		Tags:   copyTags(tags),
	}
	o.indexID = s.index.Insert(o, bounds)
	s.objects[o.ID] = o

	instrumentObjectCount(s.Name, len(s.objects))
	return o.Copy(), nil
}

// Move changes the bounds of an object.
func (s *Scene) Move(id uuid.UUID, bounds spatial.BoundingBox) (Object, error) {
	if err := checkObjectBounds(bounds); err != nil {
		return Object{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return Object{}, objectNotFound(id)
	}

	if !s.index.Remove(o.indexID, o.Bounds) {
		return Object{}, errors.New("object is missing from the spatial index").
			WithType(spatial.ErrTypeInvariant).
			WithTag("scene", s.Name).
			WithTag("object_id", id)
	}

	o.Bounds = bounds
	o.indexID = s.index.Insert(o, bounds)

	instrumentObjectMove(s.Name)
	return o.Copy(), nil
}

// Remove deletes an object from the scene.
func (s *Scene) Remove(id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return objectNotFound(id)
	}

	if !s.index.Remove(o.indexID, o.Bounds) {
		logs.Warn(errors.New("removed object was missing from the spatial index").
			WithTag("scene", s.Name).
			WithTag("object_id", id))
	}
	delete(s.objects, id)

	instrumentObjectCount(s.Name, len(s.objects))
	return nil
}

// Get returns the object with the given id.
func (s *Scene) Get(id uuid.UUID) (Object, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return Object{}, false
	}
	return o.Copy(), true
}

// Query returns the objects whose bounds intersect the given bounds.
func (s *Scene) Query(bounds spatial.BoundingBox) []Object {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	objects := ObjectsToValues(s.index.Query(bounds))
	instrumentQuery(s.Name, len(objects))
	return objects
}

// Len returns the number of objects in the scene.
func (s *Scene) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.objects)
}

// Bounds returns the bounds that describe the shape of the scene index.
func (s *Scene) Bounds() []spatial.BoundingBox {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.index.AllBounds()
}

func (s *Scene) DebugInfo() spatial.DebugInfo {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.index.DebugInfo()
}

func (s *Scene) Snapshot() spatial.NodeSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.index.Snapshot()
}

// Dump writes the tree of the scene index as JSON.
func (s *Scene) Dump(w io.Writer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.index.Dump(w)
}

// Validate checks the scene index and that every object can be found in it.
func (s *Scene) Validate() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.index.Validate(); err != nil {
		return err
	}

	if s.index.Len() != len(s.objects) {
		return errors.New("scene and spatial index sizes differ").
			WithType(spatial.ErrTypeInvariant).
			WithTag("scene", s.Name).
			WithTag("objects", len(s.objects)).
			WithTag("entries", s.index.Len())
	}

	for id, o := range s.objects {
		if found, ok := s.index.Get(o.indexID, o.Bounds); !ok || found != o {
			return errors.New("object cannot be found in the spatial index").
				WithType(spatial.ErrTypeInvariant).
				WithTag("scene", s.Name).
				WithTag("object_id", id)
		}
	}
	return nil
}

func (s *Scene) deleteMetrics() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	deleteSceneMetrics(s.Name)
	s.index.DeleteMetrics()
}

// checkObjectBounds rejects bounds without volume. They never intersect a
// search box, so their entry could not be found again in the index.
func checkObjectBounds(bounds spatial.BoundingBox) error {
	if !bounds.HasVolume() {
		return errors.New("object box must have a volume").
			WithType(ErrTypeInvalidBox).
			WithTag("box", bounds.String())
	}
	return nil
}

func objectNotFound(id uuid.UUID) error {
	return errors.New("object not found").
		WithType(ErrTypeObjectNotFound).
		WithTag("object_id", id)
}
