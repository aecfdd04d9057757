package table

type ColumnType string

const (
	TypeNumber   ColumnType = "number"
	TypeDatetime ColumnType = "datetime"
	TypeString   ColumnType = "string"
)

type ColumnSchema struct {
	Name string     `json:"name"`
	Type ColumnType `json:"dtype"`
}

// InferType classifies a column from its declared kind. Loaders only declare
// a column number when every non-null value parsed as a plain number, so the
// result does not depend on row order.
func InferType(col Column) ColumnType {
	switch col.Kind {
	case KindTimestamp:
		return TypeDatetime
	case KindNumber:
		return TypeNumber
	default:
		return TypeString
	}
}

func InferSchema(t Table) []ColumnSchema {
	out := make([]ColumnSchema, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, ColumnSchema{Name: c.Name, Type: InferType(c)})
	}
	return out
}
