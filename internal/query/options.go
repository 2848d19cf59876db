package query

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
)

// Shape selects what a query yields for each entry.
type Shape int

const (
	// ShapeEntity yields instances of a mapped type.
	ShapeEntity Shape = iota
	// ShapeProjection yields the result of a function over a mapped instance.
	ShapeProjection
	// ShapeListing yields directory.Listing values.
	ShapeListing
	// ShapeDictionary yields directory.Dictionary values.
	ShapeDictionary
)

func (s Shape) String() string {
	switch s {
	case ShapeEntity:
		return "entity"
	case ShapeProjection:
		return "projection"
	case ShapeListing:
		return "listing"
	case ShapeDictionary:
		return "dictionary"
	default:
		return "unknown"
	}
}

// CountMode marks a plan whose result is a number of entries.
type CountMode int

const (
	// CountNone yields entries.
	CountNone CountMode = iota
	// CountInt yields a single int.
	CountInt
	// CountLong yields a single int64.
	CountLong
)

// ProjectionFunc maps a materialized instance to the value a projection
// query yields.
type ProjectionFunc func(instance any) (any, error)

// Options is an immutable query plan. Build one with NewEntityOptions,
// NewProjectionOptions, Project, NewListingOptions or NewDictionaryOptions.
type Options struct {
	shape      Shape
	mapping    *mapping.ObjectMapping
	projection ProjectionFunc
	returnType reflect.Type

	filter     string
	baseDN     string
	baseSet    bool
	scope      ldap.SearchScope
	attributes []string
	properties []string
	sort       []ldap.SortKey
	controls   []ldap.Control
	timeLimit  int

	pageSize       int
	skip           int
	take           int
	countMode      CountMode
	withoutPaging  bool
	yieldNoResults bool
}

// Option configures a plan.
type Option func(*Options)

// WithBaseDN sets the search base. Entity plans default to the naming
// context of their mapping.
func WithBaseDN(dn string) Option {
	return func(o *Options) {
		o.baseDN = dn
		o.baseSet = true
	}
}

// WithScope sets the search scope. The default is the whole subtree.
func WithScope(scope ldap.SearchScope) Option {
	return func(o *Options) { o.scope = scope }
}

// WithAttributes restricts the attributes requested from the server.
func WithAttributes(names ...string) Option {
	return func(o *Options) { o.attributes = append(o.attributes, names...) }
}

// WithProperties restricts an entity or projection plan to the attributes
// backing the named properties.
func WithProperties(names ...string) Option {
	return func(o *Options) { o.properties = append(o.properties, names...) }
}

// WithSort adds server-side sort keys.
func WithSort(keys ...ldap.SortKey) Option {
	return func(o *Options) { o.sort = append(o.sort, keys...) }
}

// OrderBy adds an ascending sort key.
func OrderBy(attribute string) Option {
	return WithSort(ldap.SortKey{Attribute: attribute})
}

// OrderByDescending adds a descending sort key.
func OrderByDescending(attribute string) Option {
	return WithSort(ldap.SortKey{Attribute: attribute, Reverse: true})
}

// WithPageSize sets the paged results page size.
func WithPageSize(n int) Option {
	return func(o *Options) { o.pageSize = n }
}

// WithSkip discards the first n entries.
func WithSkip(n int) Option {
	return func(o *Options) { o.skip = n }
}

// WithTake stops after n results.
func WithTake(n int) Option {
	return func(o *Options) { o.take = n }
}

// WithoutPaging sends a single request without the paged results control.
func WithoutPaging() Option {
	return func(o *Options) { o.withoutPaging = true }
}

// WithControls attaches extra controls to every request.
func WithControls(controls ...ldap.Control) Option {
	return func(o *Options) { o.controls = append(o.controls, controls...) }
}

// WithTimeLimit sets the server-side time limit in seconds.
func WithTimeLimit(seconds int) Option {
	return func(o *Options) { o.timeLimit = seconds }
}

// WithYieldNoResults makes the plan produce nothing without contacting the
// server.
func WithYieldNoResults() Option {
	return func(o *Options) { o.yieldNoResults = true }
}

// WithCount marks the plan as an int count.
func WithCount() Option {
	return func(o *Options) { o.countMode = CountInt }
}

// WithLongCount marks the plan as an int64 count.
func WithLongCount() Option {
	return func(o *Options) { o.countMode = CountLong }
}

func newOptions(shape Shape, filter string, opts []Option) *Options {
	o := &Options{
		shape:  shape,
		filter: filter,
		scope:  ldap.ScopeWholeSubtree,
		take:   -1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewEntityOptions builds a plan yielding instances of the type described
// by om. The filter is narrowed by the mapping's object classes and
// category.
func NewEntityOptions(om *mapping.ObjectMapping, filter string, opts ...Option) (*Options, error) {
	if om == nil {
		return nil, invalidOption("entity plan needs a mapping")
	}
	o := newOptions(ShapeEntity, filter, opts)
	if err := o.bindMapping(om); err != nil {
		return nil, err
	}
	o.returnType = om.ResultType()
	return o, o.validate()
}

// NewProjectionOptions builds a plan that materializes om's type and yields
// fn's result. returnType is the type fn produces; Default returns its zero
// value. WithProperties declares the properties fn reads.
func NewProjectionOptions(om *mapping.ObjectMapping, filter string, fn ProjectionFunc, returnType reflect.Type, opts ...Option) (*Options, error) {
	if om == nil {
		return nil, invalidOption("projection plan needs a mapping")
	}
	if fn == nil || returnType == nil {
		return nil, invalidOption("projection plan needs a function and its return type")
	}
	o := newOptions(ShapeProjection, filter, opts)
	if err := o.bindMapping(om); err != nil {
		return nil, err
	}
	o.projection = fn
	o.returnType = returnType
	return o, o.validate()
}

// Project is the typed form of NewProjectionOptions. T must be the type
// the mapping materializes, or an interface every subtype satisfies.
func Project[T, R any](om *mapping.ObjectMapping, filter string, fn func(T) R, opts ...Option) (*Options, error) {
	if fn == nil {
		return nil, invalidOption("projection plan needs a function")
	}
	pf := func(instance any) (any, error) {
		t, ok := instance.(T)
		if !ok {
			return nil, fmt.Errorf("%w: projection takes %v, got %T", ErrResultType, reflect.TypeFor[T](), instance)
		}
		return fn(t), nil
	}
	return NewProjectionOptions(om, filter, pf, reflect.TypeFor[R](), opts...)
}

// NewListingOptions builds a plan yielding directory.Listing values with
// the requested attributes, or all of them.
func NewListingOptions(filter string, opts ...Option) (*Options, error) {
	o := newOptions(ShapeListing, filter, opts)
	if len(o.properties) > 0 {
		return nil, invalidOption("properties need a mapping")
	}
	o.returnType = reflect.TypeFor[directory.Listing]()
	return o, o.validate()
}

// NewDictionaryOptions builds a plan yielding a directory.Dictionary of
// every attribute present on each entry.
func NewDictionaryOptions(filter string, opts ...Option) (*Options, error) {
	o := newOptions(ShapeDictionary, filter, opts)
	if len(o.properties) > 0 {
		return nil, invalidOption("properties need a mapping")
	}
	o.returnType = reflect.TypeFor[directory.Dictionary]()
	return o, o.validate()
}

func (o *Options) bindMapping(om *mapping.ObjectMapping) error {
	o.mapping = om
	o.filter = om.ScopeFilter(o.filter)
	if !o.baseSet {
		o.baseDN = om.NamingContext()
	}

	if len(o.attributes) == 0 && len(o.properties) == 0 {
		o.attributes = om.AttributeNames()
		return nil
	}

	seen := make(map[string]bool)
	var attrs []string
	add := func(name string) {
		if key := directory.Fold(name); !seen[key] {
			seen[key] = true
			attrs = append(attrs, name)
		}
	}
	for _, name := range o.properties {
		p, ok := om.LookupByPropertyName(name)
		if !ok {
			return fmt.Errorf("%w: %s", mapping.ErrUnknownProperty, name)
		}
		switch {
		case p.IsDistinguishedName():
		case p.IsCatchAll():
			add("*")
		default:
			add(p.AttributeName())
		}
	}
	for _, name := range o.attributes {
		add(name)
	}
	if om.HasSubtypes() {
		add(directory.ObjectClassAttribute)
	}
	o.attributes = attrs
	return nil
}

func (o *Options) validate() error {
	switch {
	case o.pageSize < 0:
		return invalidOption("page size %d", o.pageSize)
	case o.skip < 0:
		return invalidOption("skip %d", o.skip)
	case o.take < -1:
		return invalidOption("take %d", o.take)
	case o.timeLimit < 0:
		return invalidOption("time limit %d", o.timeLimit)
	case o.scope < ldap.ScopeBaseObject || o.scope > ldap.ScopeWholeSubtree:
		return invalidOption("scope %d", o.scope)
	}
	for _, k := range o.sort {
		if k.Attribute == "" {
			return invalidOption("sort key without attribute")
		}
	}
	return nil
}

// Shape returns what the plan yields per entry.
func (o *Options) Shape() Shape { return o.shape }

// Mapping returns the mapping of entity and projection plans, or nil.
func (o *Options) Mapping() *mapping.ObjectMapping { return o.mapping }

// Filter returns the search filter, narrowed by the mapping's scope.
func (o *Options) Filter() string { return o.filter }

// BaseDN returns the search base.
func (o *Options) BaseDN() string { return o.baseDN }

// Scope returns the search scope.
func (o *Options) Scope() ldap.SearchScope { return o.scope }

// Attributes returns the attributes requested from the server.
func (o *Options) Attributes() []string { return slices.Clone(o.attributes) }

// Sort returns the server-side sort keys.
func (o *Options) Sort() []ldap.SortKey { return slices.Clone(o.sort) }

// Controls returns the extra request controls.
func (o *Options) Controls() []ldap.Control { return slices.Clone(o.controls) }

// TimeLimit returns the server-side time limit in seconds.
func (o *Options) TimeLimit() int { return o.timeLimit }

// CountMode reports whether the plan counts entries.
func (o *Options) CountMode() CountMode { return o.countMode }

// WithoutPaging reports whether the plan sends a single request.
func (o *Options) WithoutPaging() bool { return o.withoutPaging }

// YieldNoResults reports whether the plan skips the server entirely.
func (o *Options) YieldNoResults() bool { return o.yieldNoResults }

// DeclaredReturnType is the type of the values the plan yields.
func (o *Options) DeclaredReturnType() reflect.Type {
	switch o.countMode {
	case CountInt:
		return reflect.TypeFor[int]()
	case CountLong:
		return reflect.TypeFor[int64]()
	}
	return o.returnType
}

// PageSize returns the explicit page size, or 0 when the command default
// applies.
func (o *Options) PageSize() int { return o.pageSize }

// Skip returns the number of entries discarded before the first result.
func (o *Options) Skip() int { return o.skip }

// Take returns the result limit, or -1 when unbounded.
func (o *Options) Take() (int, bool) { return o.take, o.take >= 0 }

// MakeTransformer returns the transformer for the plan's shape.
func (o *Options) MakeTransformer() Transformer {
	if o.countMode != CountNone {
		return countTransformer{mode: o.countMode}
	}
	switch o.shape {
	case ShapeProjection:
		return &projectionTransformer{
			base:       newEntityTransformer(o.mapping, o.attributes),
			fn:         o.projection,
			returnType: o.returnType,
		}
	case ShapeListing:
		return listingTransformer{}
	case ShapeDictionary:
		return dictionaryTransformer{}
	default:
		return newEntityTransformer(o.mapping, o.attributes)
	}
}
