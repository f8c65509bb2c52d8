// Package codegen emits Laravel source artifacts from an entity description: an Eloquent model
// class and a create-table migration.
//
// Generation is a pure function of its input. Identifiers (entity, table, field and relation
// names) and math formulas are interpolated into the output as given; only the separator of a
// concat accessor has its single quotes escaped. Callers must only pass descriptions from a
// trusted operator.
package codegen
