package videopath

import (
	"fmt"
	"strconv"
	"strings"

	"glossvideo/internal/failure"
)

// Kind enumerates the asset role variants.
type Kind string

const (
	KindPrimary     Kind = "primary"
	KindBackup      Kind = "backup"
	KindPerspective Kind = "perspective"
	KindNME         Kind = "nme"
)

// Side tags perspective and NME clips.
type Side string

const (
	SideNone   Side = ""
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideCenter Side = "center"
)

// Role is the tagged variant describing what an asset is for. Side is only
// meaningful for perspective and NME roles, Offset only for NME.
type Role struct {
	Kind   Kind
	Side   Side
	Offset int
}

func Primary() Role { return Role{Kind: KindPrimary} }

func Backup() Role { return Role{Kind: KindBackup} }

func Perspective(side Side) Role { return Role{Kind: KindPerspective, Side: side} }

func NME(offset int, side Side) Role { return Role{Kind: KindNME, Offset: offset, Side: side} }

// IsNormal reports whether the role belongs to the primary/backup family that
// carries versions.
func (r Role) IsNormal() bool {
	return r.Kind == KindPrimary || r.Kind == KindBackup
}

// Validate checks that the role, its tags and the version are consistent.
func (r Role) Validate(version int) error {
	switch r.Kind {
	case KindPrimary:
		if version != 0 {
			return invalidRole(r, version, "primary assets must have version 0")
		}
		if r.Side != SideNone || r.Offset != 0 {
			return invalidRole(r, version, "primary assets carry no side or offset")
		}
	case KindBackup:
		if version < 1 {
			return invalidRole(r, version, "backup assets must have version >= 1")
		}
		if r.Side != SideNone || r.Offset != 0 {
			return invalidRole(r, version, "backup assets carry no side or offset")
		}
	case KindPerspective:
		if version != 0 {
			return invalidRole(r, version, "perspective assets are never versioned")
		}
		if r.Side != SideLeft && r.Side != SideRight {
			return invalidRole(r, version, "perspective side must be left or right")
		}
		if r.Offset != 0 {
			return invalidRole(r, version, "perspective assets carry no offset")
		}
	case KindNME:
		if version != 0 {
			return invalidRole(r, version, "nme assets are never versioned")
		}
		if r.Offset < 0 {
			return invalidRole(r, version, "nme offset must not be negative")
		}
		switch r.Side {
		case SideNone, SideLeft, SideRight, SideCenter:
		default:
			return invalidRole(r, version, "unknown nme side")
		}
	default:
		return invalidRole(r, version, "unknown role kind")
	}
	return nil
}

// Suffix returns the filename fragment inserted before the extension.
func (r Role) Suffix() string {
	switch r.Kind {
	case KindPerspective:
		return "_" + string(r.Side)
	case KindNME:
		suffix := "_nme_" + strconv.Itoa(r.Offset)
		if r.Side != SideNone {
			suffix += "_" + string(r.Side)
		}
		return suffix
	default:
		return ""
	}
}

// GroupKey identifies the slot a version-0 asset occupies for an entry. Two
// live assets with the same key are duplicates.
func (r Role) GroupKey() string {
	switch r.Kind {
	case KindPrimary, KindBackup:
		return string(KindPrimary)
	case KindPerspective:
		return string(KindPerspective) + ":" + string(r.Side)
	case KindNME:
		return fmt.Sprintf("%s:%d:%s", KindNME, r.Offset, r.Side)
	default:
		return string(r.Kind)
	}
}

func (r Role) String() string {
	switch r.Kind {
	case KindPerspective:
		return fmt.Sprintf("perspective(%s)", r.Side)
	case KindNME:
		if r.Side == SideNone {
			return fmt.Sprintf("nme(%d)", r.Offset)
		}
		return fmt.Sprintf("nme(%d,%s)", r.Offset, r.Side)
	default:
		return string(r.Kind)
	}
}

// ParseKind maps a stored or user-supplied kind name onto Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindPrimary:
		return KindPrimary, nil
	case KindBackup:
		return KindBackup, nil
	case KindPerspective:
		return KindPerspective, nil
	case KindNME:
		return KindNME, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", failure.ErrInvalidRole, value)
}

// ParseSide maps a stored or user-supplied side name onto Side.
func ParseSide(value string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(value))) {
	case SideNone:
		return SideNone, nil
	case SideLeft:
		return SideLeft, nil
	case SideRight:
		return SideRight, nil
	case SideCenter:
		return SideCenter, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", failure.ErrInvalidRole, value)
}

func invalidRole(r Role, version int, reason string) error {
	return fmt.Errorf("%w: %s version %d: %s", failure.ErrInvalidRole, r, version, reason)
}
