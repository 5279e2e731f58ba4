package tool

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/schema"
)

// TypedFunc is a statically-typed tool body: the ADK-Go-style shape the
// teacher's functiontool package wraps.
type TypedFunc[Args any] func(ctx *execctx.Context, args Args) (any, error)

// Toolify builds a Tool from a typed Go function, deriving its Argument
// list from Args' jsonschema struct tags (github.com/invopop/jsonschema)
// and decoding caller kwargs into Args with mapstructure.
func Toolify[Args any](name, description string, fn TypedFunc[Args]) (*BaseTool, error) {
	raw, err := schema.JSONSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool: %s: %w", name, err)
	}
	args := argumentsFromJSONSchema(raw)

	invoke := func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		var typed Args
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &typed,
			WeaklyTypedInput: true,
			TagName:          "json",
		})
		if err != nil {
			return nil, fmt.Errorf("tool: %s: build decoder: %w", name, err)
		}
		if err := dec.Decode(kwargs); err != nil {
			return nil, fmt.Errorf("tool: %s: decode arguments: %w", name, err)
		}
		return fn(ctx, typed)
	}

	return New(name, description, args, invoke), nil
}

// argumentsFromJSONSchema projects a reflected JSON Schema object
// (properties + required) into the Argument list Tool.Arguments exposes.
// BaseTool fills defaults and validates the caller's kwargs map against
// this list (schema.MissingRequired/Extraneous) before decoding it.
func argumentsFromJSONSchema(raw map[string]any) []schema.Argument {
	props, _ := raw["properties"].(map[string]any)
	var required map[string]bool
	if reqList, ok := raw["required"].([]any); ok {
		required = make(map[string]bool, len(reqList))
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	args := make([]schema.Argument, 0, len(props))
	for name, v := range props {
		prop, _ := v.(map[string]any)
		a := schema.Argument{Name: name}
		if t, ok := prop["type"].(string); ok {
			a.Type = t
		}
		if d, ok := prop["description"].(string); ok {
			a.Description = d
		}
		if def, ok := prop["default"]; ok {
			a.Default = def
			a.HasDefault = true
		}
		a.Required = required[name]
		args = append(args, a)
	}
	return args
}

var contextType = reflect.TypeOf((*execctx.Context)(nil))

// WrapStepFunc toolifies an arbitrary single-input step function, the
// shape Linear uses for raw (non-Tool) steps. Two signatures are
// accepted:
//
//	func(*execctx.Context, In) (Out, error)
//	func(In) (Out, error)
//
// The context-accepting capability is detected once via reflection at
// construction time and cached, rather than inspected on every call.
func WrapStepFunc(name string, fn any) (*BaseTool, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("tool: WrapStepFunc(%s): expected a func, got %s", name, ft.Kind())
	}
	if ft.NumOut() != 2 {
		return nil, fmt.Errorf("tool: WrapStepFunc(%s): expected (Out, error) return, got %d results", name, ft.NumOut())
	}

	wantsContext := ft.NumIn() == 2 && ft.In(0) == contextType
	switch {
	case wantsContext && ft.NumIn() == 2:
	case !wantsContext && ft.NumIn() == 1:
	default:
		return nil, fmt.Errorf("tool: WrapStepFunc(%s): unsupported signature %s", name, ft)
	}

	inType := ft.In(ft.NumIn() - 1)
	args := []schema.Argument{{Name: "input", Description: "step input", Type: "any", Required: true}}

	invoke := func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		input := kwargs["input"]
		inVal := reflect.New(inType).Elem()
		if input != nil && reflect.TypeOf(input).AssignableTo(inType) {
			inVal.Set(reflect.ValueOf(input))
		} else if input != nil {
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           inVal.Addr().Interface(),
				WeaklyTypedInput: true,
			})
			if err != nil {
				return nil, fmt.Errorf("tool: %s: build decoder: %w", name, err)
			}
			if err := dec.Decode(input); err != nil {
				return nil, fmt.Errorf("tool: %s: decode step input: %w", name, err)
			}
		}

		callArgs := make([]reflect.Value, 0, 2)
		if wantsContext {
			callArgs = append(callArgs, reflect.ValueOf(ctx))
		}
		callArgs = append(callArgs, inVal)

		results := fv.Call(callArgs)
		var outErr error
		if errVal := results[1]; !errVal.IsNil() {
			outErr = errVal.Interface().(error)
		}
		return results[0].Interface(), outErr
	}

	return New(name, fmt.Sprintf("wrapped step function %s", name), args, invoke), nil
}
