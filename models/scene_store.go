package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/dagaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeSceneNotFound = "scene_not_found"
	ErrTypeInvalidScene  = "invalid_scene"
)

// SceneStore holds the scenes served by a Dagaz server.
type SceneStore struct {
	// Creates the spatial index of a new scene. Defaults to an index with
	// the default node sizes.
	NewIndex func(sceneName string) (*spatial.Index[*Object], error)

	initOnce sync.Once
	mutex    sync.RWMutex
	scenes   map[string]*Scene
}

func (s *SceneStore) init() {
	s.scenes = make(map[string]*Scene)

	if s.NewIndex == nil {
		s.NewIndex = func(sceneName string) (*spatial.Index[*Object], error) {
			return spatial.NewDefault[*Object](spatial.WithName(sceneName)), nil
		}
	}
}

// GetOrCreate returns the scene with the given name, creating it when it does
// not exist.
func (s *SceneStore) GetOrCreate(name string) (*Scene, error) {
	s.initOnce.Do(s.init)

	if name == "" {
		return nil, errors.New("scene name is empty").
			WithType(ErrTypeInvalidScene)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if scene, ok := s.scenes[name]; ok {
		return scene, nil
	}

	index, err := s.NewIndex(name)
	if err != nil {
		return nil, errors.New("creating scene index failed").
			WithTag("scene", name).
			Wrap(err)
	}

	scene := NewScene(name, index)
	s.scenes[name] = scene
	return scene, nil
}

// Get returns the scene with the given name.
func (s *SceneStore) Get(name string) (*Scene, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scene, ok := s.scenes[name]
	return scene, ok
}

// Remove deletes the scene with the given name and all its objects.
func (s *SceneStore) Remove(name string) error {
	s.initOnce.Do(s.init)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	scene, ok := s.scenes[name]
	if !ok {
		return errors.New("scene not found").
			WithType(ErrTypeSceneNotFound).
			WithTag("scene", name)
	}

	delete(s.scenes, name)
	scene.deleteMetrics()
	return nil
}

// Names returns the sorted names of the scenes.
func (s *SceneStore) Names() []string {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.scenes))
	for name := range s.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
