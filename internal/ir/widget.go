package ir

import "fmt"

// Default size given to a widget created without an explicit size.
const (
	DefaultWidth  int64 = 500
	DefaultHeight int64 = 100
)

// WidgetTable is the name of the table holding widget placement records.
const WidgetTable = "widget"

// Widget record field names.
const (
	FieldWidgetID   = "widget_id"
	FieldNotebookID = "notebook_id"
	FieldCellID     = "cell_id"
	FieldLeft       = "left"
	FieldTop        = "top"
	FieldWidth      = "width"
	FieldHeight     = "height"
	FieldChanged    = "changed"
	FieldRemoved    = "removed"
)

// WidgetFields lists every widget field in declaration order.
var WidgetFields = []string{
	FieldWidgetID,
	FieldNotebookID,
	FieldCellID,
	FieldLeft,
	FieldTop,
	FieldWidth,
	FieldHeight,
	FieldChanged,
	FieldRemoved,
}

// PositionFields lists the fields a move touches, besides the dirty flag.
var PositionFields = []string{FieldLeft, FieldTop, FieldWidth, FieldHeight}

// WidgetPosition is a canvas-relative rectangle in pixels.
// Left and Top may be negative; Width and Height must be positive.
type WidgetPosition struct {
	Left   int64 `json:"left" yaml:"left"`
	Top    int64 `json:"top" yaml:"top"`
	Width  int64 `json:"width" yaml:"width"`
	Height int64 `json:"height" yaml:"height"`
}

// Object returns the position as a partial record.
func (p WidgetPosition) Object() IRObject {
	return IRObject{
		FieldLeft:   IRInt(p.Left),
		FieldTop:    IRInt(p.Top),
		FieldWidth:  IRInt(p.Width),
		FieldHeight: IRInt(p.Height),
	}
}

// WidgetInfo is a widget placement record.
type WidgetInfo struct {
	WidgetID   string `json:"widget_id"`
	NotebookID string `json:"notebook_id"`
	CellID     string `json:"cell_id"`
	WidgetPosition
	Changed bool `json:"changed"`
	Removed bool `json:"removed"`
}

// Object returns the full record.
func (w WidgetInfo) Object() IRObject {
	obj := w.WidgetPosition.Object()
	obj[FieldWidgetID] = IRString(w.WidgetID)
	obj[FieldNotebookID] = IRString(w.NotebookID)
	obj[FieldCellID] = IRString(w.CellID)
	obj[FieldChanged] = IRBool(w.Changed)
	obj[FieldRemoved] = IRBool(w.Removed)
	return obj
}

// WidgetFromObject converts a record back to a WidgetInfo.
// Missing fields take their zero value; fields of the wrong kind are an error.
func WidgetFromObject(obj IRObject) (WidgetInfo, error) {
	for _, f := range []string{FieldWidgetID, FieldNotebookID, FieldCellID} {
		if err := expectKind(obj, f, KindString); err != nil {
			return WidgetInfo{}, err
		}
	}
	for _, f := range PositionFields {
		if err := expectKind(obj, f, KindInt); err != nil {
			return WidgetInfo{}, err
		}
	}
	for _, f := range []string{FieldChanged, FieldRemoved} {
		if err := expectKind(obj, f, KindBool); err != nil {
			return WidgetInfo{}, err
		}
	}

	return WidgetInfo{
		WidgetID:   obj.String(FieldWidgetID),
		NotebookID: obj.String(FieldNotebookID),
		CellID:     obj.String(FieldCellID),
		WidgetPosition: WidgetPosition{
			Left:   obj.Int(FieldLeft),
			Top:    obj.Int(FieldTop),
			Width:  obj.Int(FieldWidth),
			Height: obj.Int(FieldHeight),
		},
		Changed: obj.Bool(FieldChanged),
		Removed: obj.Bool(FieldRemoved),
	}, nil
}

func expectKind(obj IRObject, field, kind string) error {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	if got := KindOf(v); got != kind {
		return fmt.Errorf("field %q: expected %s, got %s", field, kind, got)
	}
	return nil
}
