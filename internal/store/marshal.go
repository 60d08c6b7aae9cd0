package store

import (
	"fmt"

	"github.com/roach88/dashstore/internal/ir"
)

// marshalRecord converts a widget to canonical JSON TEXT for storage.
func marshalRecord(w ir.WidgetInfo) (string, error) {
	data, err := ir.MarshalCanonical(w.Object())
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses a stored record back into a widget.
func unmarshalRecord(data string) (ir.WidgetInfo, error) {
	var obj ir.IRObject
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return ir.WidgetInfo{}, fmt.Errorf("unmarshal record: %w", err)
	}
	w, err := ir.WidgetFromObject(obj)
	if err != nil {
		return ir.WidgetInfo{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return w, nil
}
