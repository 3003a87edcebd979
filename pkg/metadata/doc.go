// Package metadata keeps the checks declared for each type.
//
// An Index resolves the ClassChecks of a type on first access by running
// its Configurers, then serves it lock-free. The programmatic API
// (AddFieldChecks, AddMethodPreChecks, SetGuarded, ...) validates its
// arguments, applies the change to a copy and publishes the copy, so
// concurrent readers always see a consistent snapshot.
//
//	idx := metadata.New(metadata.Options{})
//	err := idx.AddFieldChecks(reflect.TypeOf(Person{}), "Name", checks.NewNotNull())
package metadata
