package listener

import "fmt"

// Category identifies one kind of notification. The store categories are
// declared here; derived modules declare their own values starting at
// FirstCustom.
type Category int

const (
	HasTables Category = iota
	Tables
	TableIDs
	HasTable
	Table
	TableCellIDs
	HasTableCell
	RowCount
	RowIDs
	SortedRowIDs
	HasRow
	Row
	CellIDs
	HasCell
	Cell
	InvalidCell
	HasValues
	Values
	ValueIDs
	HasValue
	Value
	InvalidValue
	StartTransaction
	WillFinishTransaction
	DidFinishTransaction

	numStoreCategories
)

// FirstCustom is the first Category value free for derived modules.
const FirstCustom Category = 100

var categoryNames = [numStoreCategories]string{
	HasTables:             "hasTables",
	Tables:                "tables",
	TableIDs:              "tableIds",
	HasTable:              "hasTable",
	Table:                 "table",
	TableCellIDs:          "tableCellIds",
	HasTableCell:          "hasTableCell",
	RowCount:              "rowCount",
	RowIDs:                "rowIds",
	SortedRowIDs:          "sortedRowIds",
	HasRow:                "hasRow",
	Row:                   "row",
	CellIDs:               "cellIds",
	HasCell:               "hasCell",
	Cell:                  "cell",
	InvalidCell:           "invalidCell",
	HasValues:             "hasValues",
	Values:                "values",
	ValueIDs:              "valueIds",
	HasValue:              "hasValue",
	Value:                 "value",
	InvalidValue:          "invalidValue",
	StartTransaction:      "startTransaction",
	WillFinishTransaction: "willFinishTransaction",
	DidFinishTransaction:  "didFinishTransaction",
}

// positional segments per store category
var categoryDepths = [numStoreCategories]int{
	HasTable:     1,
	Table:        1,
	TableCellIDs: 1,
	HasTableCell: 2,
	RowCount:     1,
	RowIDs:       1,
	SortedRowIDs: 2,
	HasRow:       2,
	Row:          2,
	CellIDs:      2,
	HasCell:      3,
	Cell:         3,
	InvalidCell:  3,
	HasValue:     1,
	Value:        1,
	InvalidValue: 1,
}

// StoreCategories returns every store category in declaration order.
func StoreCategories() []Category {
	out := make([]Category, numStoreCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// String returns the category name used in listener stats and scenarios.
func (c Category) String() string {
	if c >= 0 && c < numStoreCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Depth returns the number of path segments a store category takes,
// or -1 for a custom category.
func (c Category) Depth() int {
	if c >= 0 && c < numStoreCategories {
		return categoryDepths[c]
	}
	return -1
}

// ParseCategory resolves a category name as returned by String.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown listener category %q", name)
}
