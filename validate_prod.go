//go:build !debug_gc_utils

package gcutils

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_gc_utils build tag is present
func DebugValidate(validatable Validatable) {
}
