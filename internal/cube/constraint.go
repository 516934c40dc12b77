package cube

import (
	"fmt"
	"strings"
)

// Constraint selects cubes.
type Constraint interface {
	Match(c *Cube) bool
}

// NameConstraint matches cubes by variable name.
type NameConstraint struct {
	Name string
}

func (n NameConstraint) Match(c *Cube) bool { return c.Name == n.Name }

func (n NameConstraint) String() string { return fmt.Sprintf("name == %q", n.Name) }

// AttributeConstraint matches cubes carrying an attribute with the given value.
type AttributeConstraint struct {
	Attribute string
	Value     string
}

func (a AttributeConstraint) Match(c *Cube) bool {
	v, ok := c.Attributes[a.Attribute]
	return ok && v == a.Value
}

func (a AttributeConstraint) String() string {
	return fmt.Sprintf("attributes[%q] == %q", a.Attribute, a.Value)
}

// AllOf matches cubes satisfying every constraint. An empty AllOf matches everything.
type AllOf []Constraint

func (all AllOf) Match(c *Cube) bool {
	for _, con := range all {
		if !con.Match(c) {
			return false
		}
	}
	return true
}

func (all AllOf) String() string {
	parts := make([]string, len(all))
	for i, con := range all {
		parts[i] = fmt.Sprint(con)
	}
	return strings.Join(parts, " && ")
}
