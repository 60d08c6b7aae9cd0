// Package schema declares record tables and validates writes against them.
//
// Schemas are written in CUE and compiled with the CUE Go API:
//
//	table: widget: {
//		primary_key: "widget_id"
//		tombstone:   "removed"
//		fields: {
//			widget_id: {type: "string", required: true}
//			width:     {type: "int", min: 1}
//			removed:   {type: "bool"}
//		}
//	}
//
// Field types are "string", "int" and "bool". A partial write is valid when
// every field it names exists and holds a value of the declared type; it
// need not name every field. Violations are *SchemaError values, which are
// programmer errors: callers abort the whole operation on them.
package schema
