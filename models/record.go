// ABOUTME: Shared vocabulary for synchronized entities across both stores
// ABOUTME: Defines EntityType, Side, Direction, Record, and ForeignKey
package models

import (
	"errors"
	"fmt"
)

// ErrUnknownDirection is returned for any direction other than push or pull.
var ErrUnknownDirection = errors.New("unknown sync direction")

// EntityType identifies a kind of synchronized record independent of store.
type EntityType string

// Entity types.
const (
	EntityContact  EntityType = "contact"
	EntityProject  EntityType = "project"
	EntityCase     EntityType = "case"
	EntityTask     EntityType = "task"
	EntityActivity EntityType = "activity"
)

// AllEntities lists every synchronized entity type.
var AllEntities = []EntityType{EntityContact, EntityProject, EntityCase, EntityTask, EntityActivity}

// Side names one of the two stores.
type Side string

const (
	SidePrimary Side = "primary"
	SidePartner Side = "partner"
)

// Collection returns the store-native collection name for the entity on the given side.
// Contacts are called clients on the partner platform; every other collection shares its name.
func (e EntityType) Collection(side Side) string {
	switch e {
	case EntityContact:
		if side == SidePartner {
			return "clients"
		}
		return "contacts"
	case EntityProject:
		return "projects"
	case EntityCase:
		return "cases"
	case EntityTask:
		return "tasks"
	case EntityActivity:
		return "activities"
	}
	return string(e)
}

// EntityForCollection resolves a store-native collection name back to its entity type.
func EntityForCollection(side Side, collection string) (EntityType, bool) {
	for _, e := range AllEntities {
		if e.Collection(side) == collection {
			return e, true
		}
	}
	return "", false
}

// Direction is the direction of one sync run.
type Direction string

const (
	// DirectionPush replays primary rows onto the partner store.
	DirectionPush Direction = "push"
	// DirectionPull replays partner rows onto the primary store.
	DirectionPull Direction = "pull"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPush, DirectionPull:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Validate reports whether d is a known direction.
func (d Direction) Validate() error {
	_, err := ParseDirection(string(d))
	return err
}

// Source is the side rows are read from.
func (d Direction) Source() Side {
	if d == DirectionPull {
		return SidePartner
	}
	return SidePrimary
}

// Target is the side rows are written to.
func (d Direction) Target() Side {
	if d == DirectionPull {
		return SidePrimary
	}
	return SidePartner
}

// Record is a typed row of either schema, keyed by an id shared across both stores.
type Record interface {
	RecordID() string
	Entity() EntityType
	ForeignKeys() []ForeignKey
}

// ForeignKey is a nullable reference held by a record.
// Ref points at the record's own field so the value can be cleared in place.
type ForeignKey struct {
	Field  string
	Target EntityType
	Ref    **string
}

// Value returns the referenced id, or "" when the reference is null.
func (fk ForeignKey) Value() string {
	if fk.Ref == nil || *fk.Ref == nil {
		return ""
	}
	return **fk.Ref
}

// Clear nulls the reference.
func (fk ForeignKey) Clear() {
	if fk.Ref != nil {
		*fk.Ref = nil
	}
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
