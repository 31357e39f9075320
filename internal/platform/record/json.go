package record

import (
	"encoding/json"
	"fmt"

	sonic "github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

// ParseObject decodes a JSON object keeping key order at every level.
// Numbers become int64 when integral and float64 otherwise; arrays are kept
// as opaque decoded values.
func ParseObject(raw []byte) (*Object, error) {
	root, err := sonic.Get(raw)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := root.LoadAll(); err != nil {
		return nil, fmt.Errorf("load json: %w", err)
	}
	return objectFromNode(&root)
}

func objectFromNode(node *ast.Node) (*Object, error) {
	if node.TypeSafe() != ast.V_OBJECT {
		return nil, fmt.Errorf("expected json object, got type %d", node.TypeSafe())
	}

	it, err := node.Properties()
	if err != nil {
		return nil, fmt.Errorf("iterate object: %w", err)
	}

	out := NewObject()
	var pair ast.Pair
	for it.Next(&pair) {
		value, err := nodeValue(&pair.Value)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", pair.Key, err)
		}
		out.Set(pair.Key, value)
	}
	return out, nil
}

func nodeValue(node *ast.Node) (any, error) {
	switch node.TypeSafe() {
	case ast.V_OBJECT:
		return objectFromNode(node)
	case ast.V_NULL:
		return nil, nil
	case ast.V_TRUE:
		return true, nil
	case ast.V_FALSE:
		return false, nil
	case ast.V_STRING:
		return node.String()
	case ast.V_NUMBER:
		num, err := node.Number()
		if err != nil {
			return nil, err
		}
		return numberValue(num)
	default:
		return node.InterfaceUseNumber()
	}
}

func numberValue(num json.Number) (any, error) {
	if n, err := num.Int64(); err == nil {
		return n, nil
	}
	return num.Float64()
}
