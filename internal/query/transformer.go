package query

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
)

// Transformer turns one raw entry into the value a query yields.
type Transformer interface {
	Transform(e *directory.Entry) (any, error)
	// Default is the value a query of this shape yields for "no result".
	Default() any
}

type entityTransformer struct {
	mapping   *mapping.ObjectMapping
	requested []string
	// wildcard is set when "*" is among the requested attributes.
	wildcard bool
}

func newEntityTransformer(om *mapping.ObjectMapping, requested []string) *entityTransformer {
	return &entityTransformer{
		mapping:   om,
		requested: requested,
		wildcard:  slices.Contains(requested, directory.AllUserAttributes),
	}
}

func (t *entityTransformer) Default() any {
	return reflect.Zero(t.mapping.ResultType()).Interface()
}

func (t *entityTransformer) Transform(e *directory.Entry) (any, error) {
	var (
		v   any
		err error
	)
	if t.mapping.IsAnonymous() {
		v, err = t.construct(e)
	} else {
		v, err = t.populate(e)
	}
	if err != nil {
		return nil, fmt.Errorf("query: materialize %q: %w", e.DN, err)
	}
	return v, nil
}

// construct resolves every argument before calling the constructor.
func (t *entityTransformer) construct(e *directory.Entry) (any, error) {
	props := t.mapping.Properties()
	args := make([]any, len(props))
	for i, p := range props {
		switch {
		case p.IsDistinguishedName():
			args[i] = e.DN
		case p.IsCatchAll():
			args[i] = e.Attributes
		default:
			raw, ok := e.Attributes.Get(p.AttributeName())
			v, err := instanceValue(p, raw, ok)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
	}
	return t.mapping.Construct(args)
}

type snapshotValue struct {
	position int
	value    mapping.OriginalValue
}

func (t *entityTransformer) populate(e *directory.Entry) (any, error) {
	m := t.mapping
	if m.HasSubtypes() {
		m = m.Resolve(e.ObjectClasses())
	}
	instance := m.New()
	tracker, tracking := instance.(mapping.OriginalValuesTracker)

	var snapshot []snapshotValue
	assigned := make(map[*mapping.PropertyMapping]bool)
	assign := func(p *mapping.PropertyMapping, v any) {
		p.Set(instance, v)
		assigned[p] = true
		if tracking {
			snapshot = append(snapshot, snapshotValue{p.Position(), mapping.OriginalValue{Property: p.PropertyName(), Value: v}})
		}
	}

	names := t.requested
	if ca := m.CatchAll(); ca != nil {
		ca.Set(instance, e.Attributes)
		names = e.Attributes.Names()
	} else if t.wildcard {
		names = append(e.Attributes.Names(), t.requested...)
	}
	if dn := m.DistinguishedName(); dn != nil {
		assign(dn, e.DN)
	}

	for _, name := range names {
		p, ok := t.mapping.LookupByAttributeName(name, m.Type())
		if !ok || assigned[p] {
			continue
		}
		raw, present := e.Attributes.Get(name)
		v, err := instanceValue(p, raw, present)
		if err != nil {
			return nil, err
		}
		assign(p, v)
	}

	if tracking {
		slices.SortStableFunc(snapshot, func(a, b snapshotValue) int { return a.position - b.position })
		values := make([]mapping.OriginalValue, len(snapshot))
		for i, s := range snapshot {
			values[i] = s.value
		}
		tracker.SetOriginalValues(values)
	}
	return instance, nil
}

// instanceValue converts raw, falling back to the property default for an
// absent attribute without a not-set conversion.
func instanceValue(p *mapping.PropertyMapping, raw [][]byte, present bool) (any, error) {
	if !present && !p.HasNotSetConversion() {
		return p.DefaultValue(), nil
	}
	return p.ToInstanceValue(raw)
}

type projectionTransformer struct {
	base       *entityTransformer
	fn         ProjectionFunc
	returnType reflect.Type
}

func (t *projectionTransformer) Transform(e *directory.Entry) (any, error) {
	instance, err := t.base.Transform(e)
	if err != nil {
		return nil, err
	}
	return t.fn(instance)
}

func (t *projectionTransformer) Default() any {
	return reflect.Zero(t.returnType).Interface()
}

type listingTransformer struct{}

func (listingTransformer) Transform(e *directory.Entry) (any, error) {
	return directory.Listing{DN: e.DN, Attributes: e.Attributes}, nil
}

func (listingTransformer) Default() any { return directory.Listing{} }

type dictionaryTransformer struct{}

func (dictionaryTransformer) Transform(e *directory.Entry) (any, error) {
	return directory.NewDictionary(e), nil
}

func (dictionaryTransformer) Default() any { return directory.Dictionary(nil) }

// countTransformer stands in for count plans, which never materialize
// entries.
type countTransformer struct {
	mode CountMode
}

func (countTransformer) Transform(e *directory.Entry) (any, error) {
	return nil, fmt.Errorf("%w: count plans yield numbers, not %q", ErrResultType, e.DN)
}

func (t countTransformer) Default() any {
	if t.mode == CountLong {
		return int64(0)
	}
	return 0
}
