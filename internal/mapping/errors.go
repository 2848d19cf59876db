package mapping

import (
	"errors"
	"fmt"
	"reflect"
)

// Registration errors wrapped by MappingDefinitionError.
var (
	ErrNotStruct           = errors.New("mapping: type must be a struct")
	ErrAlreadyRegistered   = errors.New("mapping: type already registered")
	ErrDuplicateAttribute  = errors.New("mapping: attribute mapped more than once")
	ErrDuplicateProperty   = errors.New("mapping: property mapped more than once")
	ErrMultipleDN          = errors.New("mapping: more than one distinguished name property")
	ErrMultipleCatchAll    = errors.New("mapping: more than one catch-all property")
	ErrNoConstructor       = errors.New("mapping: no constructor matches the mapped properties")
	ErrDuplicateConversion = errors.New("mapping: duplicate key in conversion table")
	ErrInvalidConversion   = errors.New("mapping: conversion value does not match property type")
	ErrUnsupportedType     = errors.New("mapping: unsupported property type")
	ErrUnknownProperty     = errors.New("mapping: no such field")
	ErrInvalidTag          = errors.New("mapping: invalid ldap tag")
	ErrNoDiscriminators    = errors.New("mapping: subtype needs at least one discriminator")
	ErrInvalidSubtype      = errors.New("mapping: invalid subtype")
)

// MappingDefinitionError reports a schema that cannot be registered.
type MappingDefinitionError struct {
	Type     reflect.Type
	Property string
	Err      error
}

func (e *MappingDefinitionError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%v (type %v, property %s)", e.Err, e.Type, e.Property)
	}
	return fmt.Sprintf("%v (type %v)", e.Err, e.Type)
}

func (e *MappingDefinitionError) Unwrap() error {
	return e.Err
}

func definitionError(t reflect.Type, property string, err error) *MappingDefinitionError {
	return &MappingDefinitionError{Type: t, Property: property, Err: err}
}

// ConversionError reports a directory value that cannot be coerced to the
// declared property type, or an instance value that cannot be written back.
type ConversionError struct {
	Property  string
	Attribute string
	Type      reflect.Type
	Value     string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("mapping: cannot convert %q of attribute %s to %v for property %s: %v",
		e.Value, e.Attribute, e.Type, e.Property, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
