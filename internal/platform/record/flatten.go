package record

import (
	"errors"
	"fmt"
	"strings"
)

var ErrKeyCollision = errors.New("flattened key collision")

// CollisionPolicy decides what happens when two paths produce the same
// flattened key. Only strip mode can produce collisions.
type CollisionPolicy string

const (
	CollisionLastWins  CollisionPolicy = "last"
	CollisionFirstWins CollisionPolicy = "first"
	CollisionFail      CollisionPolicy = "fail"
)

func ParseCollisionPolicy(raw string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CollisionLastWins:
		return CollisionLastWins, nil
	case CollisionFirstWins:
		return CollisionFirstWins, nil
	case CollisionFail:
		return CollisionFail, nil
	default:
		return "", fmt.Errorf("invalid collision policy %q: valid values are last, first, fail", raw)
	}
}

type FlattenOptions struct {
	Separator string
	// Strip keeps only the leaf key name and drops all ancestor segments.
	Strip     bool
	Collision CollisionPolicy
}

func DefaultFlattenOptions() FlattenOptions {
	return FlattenOptions{
		Separator: ".",
		Collision: CollisionLastWins,
	}
}

// Flatten collapses nested objects into a single-level Object. Keys appear in
// depth-first insertion order. The input is not modified.
func Flatten(src *Object, opts FlattenOptions) (*Object, error) {
	if opts.Separator == "" {
		opts.Separator = "."
	}
	if opts.Collision == "" {
		opts.Collision = CollisionLastWins
	}

	out := NewObject()
	if err := flattenInto(out, src, "", opts); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(dst, src *Object, parent string, opts FlattenOptions) error {
	for _, f := range src.Fields() {
		key := f.Key
		if parent != "" && !opts.Strip {
			key = parent + opts.Separator + f.Key
		}

		if nested, ok := f.Value.(*Object); ok {
			if err := flattenInto(dst, nested, key, opts); err != nil {
				return err
			}
			continue
		}

		if dst.Has(key) {
			switch opts.Collision {
			case CollisionFirstWins:
				continue
			case CollisionFail:
				return fmt.Errorf("%w: %q", ErrKeyCollision, key)
			}
		}
		dst.Set(key, f.Value)
	}
	return nil
}
