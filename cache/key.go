package cache

import (
	"strconv"
	"strings"
)

// Wildcard matches any value at its position in a Pattern.
const Wildcard = "*"

// Key identifies a cached read: an entity name followed by filter values in
// the order the owning facade fixes for that entity.
type Key []string

// NewKey builds a key for entity with the given filter values.
func NewKey(entity string, params ...string) Key {
	k := make(Key, 0, len(params)+1)
	k = append(k, entity)
	return append(k, params...)
}

// Entity returns the entity name, or "" for an empty key.
func (k Key) Entity() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Params returns the filter values.
func (k Key) Params() []string {
	if len(k) == 0 {
		return nil
	}
	return k[1:]
}

// Equal reports whether both keys have identical components.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// id is the map form of the key. Each component is length-prefixed so no
// filter value can make two different keys collide.
func (k Key) id() string {
	var b strings.Builder
	for _, c := range k {
		b.WriteString(strconv.Itoa(len(c)))
		b.WriteByte(':')
		b.WriteString(c)
	}
	return b.String()
}

func (k Key) String() string {
	if len(k) == 0 {
		return "()"
	}
	return k[0] + "(" + strings.Join(k[1:], ",") + ")"
}

// Pattern selects keys by entity and leading filter values. A key matches
// when the entity is equal and every pattern param equals the key param at
// the same position or is Wildcard. Keys may be longer than the pattern;
// a trailing Wildcard also matches keys that stop before it.
type Pattern struct {
	Entity string
	Params []string
}

// Match builds a pattern.
func Match(entity string, params ...string) Pattern {
	return Pattern{Entity: entity, Params: params}
}

// All matches every key of entity.
func All(entity string) Pattern {
	return Pattern{Entity: entity}
}

// Matches reports whether k is selected by p.
func (p Pattern) Matches(k Key) bool {
	if k.Entity() != p.Entity {
		return false
	}
	params := k.Params()
	for i, want := range p.Params {
		if want == Wildcard {
			continue
		}
		if i >= len(params) || params[i] != want {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	return p.Entity + "(" + strings.Join(p.Params, ",") + ")"
}
