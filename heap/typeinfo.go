package heap

import (
	"reflect"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/verdantvm/gcutils"
)

// maxScalarAlign is the strictest alignment of any Go scalar on supported targets.
// The half-space bases and every object slot are aligned to it, so a managed type
// may not demand more.
const maxScalarAlign uint = 8

// Visitor receives a pointer to each managed-handle field embedded in an object.
// The collector retargets the handle through this pointer, so implementations of
// VisitPointers must pass the address of the actual field, never a copy.
type Visitor func(ref *Ref)

// TypeInfo is the immutable per-type descriptor the heap consumes for every managed
// type: the object slot size (header plus payload, aligned up), the field-visit
// callback used during the evacuation scan, an optional relocation override for
// types that are not trivially movable, and an optional finalizer.
type TypeInfo struct {
	id   uint32
	size int
	name string

	visitPointers func(obj unsafe.Pointer, visit Visitor)
	relocate      func(src unsafe.Pointer, dst unsafe.Pointer)
	finalize      func(obj unsafe.Pointer)
}

// Size returns the full object slot size in bytes, including the header and
// alignment padding.
func (t *TypeInfo) Size() int { return t.size }

// TypeName returns the Go name of the registered type, for diagnostics.
func (t *TypeInfo) TypeName() string { return t.name }

// HasFinalizer returns true if objects of this type run a finalizer when they
// become unreachable.
func (t *TypeInfo) HasFinalizer() bool { return t.finalize != nil }

// TypeInfoCreateInfo contains the embedder-supplied callbacks for a managed type
type TypeInfoCreateInfo struct {
	// VisitPointers must call visit once with the address of every Handle field
	// embedded in the object. It may be left nil for types with no handle fields.
	VisitPointers func(obj unsafe.Pointer, visit Visitor)
	// Relocate overrides the default whole-slot byte copy used when the object is
	// evacuated. It receives payload pointers for the source and the (zeroed)
	// destination, and must leave the source in a state its finalizer can accept.
	Relocate func(src unsafe.Pointer, dst unsafe.Pointer)
	// Finalize is invoked once when the object is found unreachable during a
	// collection, or during heap teardown. Leave nil for trivially destructible types.
	Finalize func(obj unsafe.Pointer)
}

var typesByKey = swiss.NewMap[reflect.Type, *TypeInfo](42)
var typesByID []*TypeInfo

// RegisterType makes T allocatable and returns its descriptor. Registration is
// get-or-create: registering an already-known type returns the existing descriptor
// and ignores the provided callbacks.
//
// T must not require alignment beyond maxScalarAlign and must not contain Go
// pointers - managed objects live in untyped heap bytes the Go runtime does not
// scan, so the only reference type permitted inside them is Handle.
func RegisterType[T any](createInfo TypeInfoCreateInfo) (*TypeInfo, error) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if existing, ok := typesByKey.Get(key); ok {
		return existing, nil
	}

	if uint(key.Align()) > maxScalarAlign {
		return nil, errors.Errorf("type %s requires %d-byte alignment, but object slots only guarantee %d bytes", key.String(), key.Align(), maxScalarAlign)
	}
	err := checkPointerFree(key, key)
	if err != nil {
		return nil, err
	}

	info := &TypeInfo{
		id:   uint32(len(typesByID)) + 1,
		size: gcutils.AlignUp(headerSize+int(key.Size()), maxScalarAlign),
		name: key.String(),

		visitPointers: createInfo.VisitPointers,
		relocate:      createInfo.Relocate,
		finalize:      createInfo.Finalize,
	}
	typesByID = append(typesByID, info)
	typesByKey.Put(key, info)

	return info, nil
}

// TypeInfoFor retrieves the descriptor for a previously-registered type T
func TypeInfoFor[T any]() (*TypeInfo, error) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	info, ok := typesByKey.Get(key)
	if !ok {
		return nil, errors.Errorf("type %s has not been registered with the heap", key.String())
	}

	return info, nil
}

func typeInfoByID(id uint32) *TypeInfo {
	return typesByID[id-1]
}

func checkPointerFree(typ reflect.Type, root reflect.Type) error {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPointerFree(typ.Elem(), root)
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			err := checkPointerFree(typ.Field(i).Type, root)
			if err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("type %s embeds a field of kind %s; managed objects may only contain scalars, arrays, structs, and handles", root.String(), typ.Kind())
	}
}
