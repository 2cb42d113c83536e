package catalog

import (
	"errors"
	"fmt"
)

var ErrEntityNotFound = errors.New("entity not found")

// Catalog is an ordered registry of entities.
type Catalog struct {
	entities []*Entity
	byName   map[string]*Entity
}

// New returns a catalog holding the given entities. It does not validate them;
// call Validate once every entity is registered.
func New(entities ...*Entity) *Catalog {
	c := &Catalog{byName: make(map[string]*Entity)}
	for _, e := range entities {
		c.Register(e)
	}
	return c
}

// Register adds e, replacing an entity with the same name.
func (c *Catalog) Register(e *Entity) {
	if _, ok := c.byName[e.Name]; !ok {
		c.entities = append(c.entities, e)
	} else {
		for i, existing := range c.entities {
			if existing.Name == e.Name {
				c.entities[i] = e
			}
		}
	}
	c.byName[e.Name] = e
}

// Entity returns the entity registered under name.
func (c *Catalog) Entity(name string) (*Entity, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}
	return e, nil
}

// Entities returns all entities in registration order.
func (c *Catalog) Entities() []*Entity {
	out := make([]*Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Validate checks every entity and resolves relation targets. Errors for all
// entities are joined.
func (c *Catalog) Validate() error {
	var errs []error
	paths := make(map[string]string)
	for _, e := range c.entities {
		if err := e.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if e.Path != "" {
			if other, dup := paths[e.Path]; dup {
				errs = append(errs, fmt.Errorf("entity %s: path %q already used by %s", e.Name, e.Path, other))
			}
			paths[e.Path] = e.Name
		}
		for _, f := range e.Relations() {
			if _, ok := c.byName[f.Relation.Target]; !ok {
				errs = append(errs, fmt.Errorf("entity %s: relation %s targets unknown entity %q", e.Name, f.Name, f.Relation.Target))
			}
		}
	}
	return errors.Join(errs...)
}
