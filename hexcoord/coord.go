// Package hexcoord implements the hexagonal coordinate codec used to address
// map items. A coordinate names a user/group tree and a path of direction
// steps from that tree's root; its canonical string form is
// "user,group" followed by one ":dir" segment per path step, e.g. "1,2:1:3".
package hexcoord

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction is one step in a coordinate path. Valid child steps are NW..W;
// Center is a sentinel that only appears in malformed self-referencing paths
// and is filtered out at the cache boundary.
type Direction int

const (
	Center Direction = iota
	NorthWest
	NorthEast
	East
	SouthEast
	SouthWest
	West
)

// ChildDirections enumerates the six valid child steps, in canonical order.
var ChildDirections = [6]Direction{NorthWest, NorthEast, East, SouthEast, SouthWest, West}

// Coord is a structural tree address. Two coords are equal iff UserID,
// GroupID and the full Path sequence match.
type Coord struct {
	UserID  int
	GroupID int
	Path    []Direction
}

// Parse decodes a canonical coordinate id. It is the inverse of String:
// Parse(x).String() == x for every valid x.
func Parse(id string) (Coord, error) {
	head, rest, hasPath := strings.Cut(id, ":")
	userPart, groupPart, ok := strings.Cut(head, ",")
	if !ok {
		return Coord{}, fmt.Errorf("hexcoord: malformed id %q: missing user,group header", id)
	}
	userID, err := strconv.Atoi(userPart)
	if err != nil {
		return Coord{}, fmt.Errorf("hexcoord: malformed id %q: bad user id: %w", id, err)
	}
	groupID, err := strconv.Atoi(groupPart)
	if err != nil {
		return Coord{}, fmt.Errorf("hexcoord: malformed id %q: bad group id: %w", id, err)
	}

	c := Coord{UserID: userID, GroupID: groupID}
	if !hasPath {
		return c, nil
	}
	if rest == "" {
		return Coord{}, fmt.Errorf("hexcoord: malformed id %q: trailing separator", id)
	}
	for _, seg := range strings.Split(rest, ":") {
		d, err := strconv.Atoi(seg)
		if err != nil {
			return Coord{}, fmt.Errorf("hexcoord: malformed id %q: bad path segment %q: %w", id, seg, err)
		}
		if d < int(Center) || d > int(West) {
			return Coord{}, fmt.Errorf("hexcoord: malformed id %q: direction %d out of range", id, d)
		}
		c.Path = append(c.Path, Direction(d))
	}
	return c, nil
}

// MustParse is Parse with panic-on-error semantics (for tests and literals).
func MustParse(id string) Coord {
	c, err := Parse(id)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the canonical id.
func (c Coord) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.UserID))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(c.GroupID))
	for _, d := range c.Path {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(d)))
	}
	return b.String()
}

// Depth is the number of path steps below the tree root.
func (c Coord) Depth() int { return len(c.Path) }

// IsRoot reports whether the coordinate addresses a tree root.
func (c Coord) IsRoot() bool { return len(c.Path) == 0 }

// Parent returns the coordinate one level up. ok is false for roots.
func (c Coord) Parent() (Coord, bool) {
	if len(c.Path) == 0 {
		return Coord{}, false
	}
	p := Coord{
		UserID:  c.UserID,
		GroupID: c.GroupID,
		Path:    append([]Direction(nil), c.Path[:len(c.Path)-1]...),
	}
	return p, true
}

// Child returns the coordinate one step down in direction d.
func (c Coord) Child(d Direction) Coord {
	path := make([]Direction, len(c.Path)+1)
	copy(path, c.Path)
	path[len(c.Path)] = d
	return Coord{UserID: c.UserID, GroupID: c.GroupID, Path: path}
}

// ChildIDs returns the canonical ids of all six children of id.
func ChildIDs(id string) ([6]string, error) {
	var out [6]string
	c, err := Parse(id)
	if err != nil {
		return out, err
	}
	for i, d := range ChildDirections {
		out[i] = c.Child(d).String()
	}
	return out, nil
}

// Equal reports structural equality.
func (c Coord) Equal(o Coord) bool {
	if c.UserID != o.UserID || c.GroupID != o.GroupID || len(c.Path) != len(o.Path) {
		return false
	}
	for i := range c.Path {
		if c.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}

// SameTree reports whether two coords address the same user/group tree.
func (c Coord) SameTree(o Coord) bool {
	return c.UserID == o.UserID && c.GroupID == o.GroupID
}

// IsAncestorOf reports whether o lies strictly below c in the same tree.
func (c Coord) IsAncestorOf(o Coord) bool {
	if !c.SameTree(o) || len(o.Path) <= len(c.Path) {
		return false
	}
	for i, d := range c.Path {
		if o.Path[i] != d {
			return false
		}
	}
	return true
}

// ContainsCenter reports whether any path step is the Center sentinel.
// Such coordinates are structurally valid but semantically malformed.
func (c Coord) ContainsCenter() bool {
	for _, d := range c.Path {
		if d == Center {
			return true
		}
	}
	return false
}

// Rebase re-roots a descendant of oldRoot under newRoot, preserving the
// descendant's offset relative to oldRoot. It is the primitive behind
// subtree migration during moves and swaps.
func Rebase(desc, oldRoot, newRoot Coord) (Coord, error) {
	if !oldRoot.Equal(desc) && !oldRoot.IsAncestorOf(desc) {
		return Coord{}, fmt.Errorf("hexcoord: %s is not within subtree of %s", desc.String(), oldRoot.String())
	}
	offset := desc.Path[len(oldRoot.Path):]
	path := make([]Direction, 0, len(newRoot.Path)+len(offset))
	path = append(path, newRoot.Path...)
	path = append(path, offset...)
	return Coord{UserID: newRoot.UserID, GroupID: newRoot.GroupID, Path: path}, nil
}
