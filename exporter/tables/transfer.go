package tables

import (
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// TransferMethod is how a record attribute is copied into a common column.
type TransferMethod int

const (
	// TransferString copies a string attribute as is. An absent attribute is an empty cell.
	TransferString TransferMethod = iota
	// TransferStringSet joins a set of strings, sorted, with commas. An absent set is the empty string.
	TransferStringSet
	// TransferDate copies a date as epoch milliseconds.
	TransferDate
	// TransferStringMap writes a map as sorted |key=value| pairs, with "<none>" values emptied.
	TransferStringMap
)

const noneValue = "<none>"

func (m TransferMethod) String() string {
	switch m {
	case TransferString:
		return "STRING"
	case TransferStringSet:
		return "STRINGSET"
	case TransferDate:
		return "DATE"
	case TransferStringMap:
		return "STRINGMAP"
	default:
		return "TransferMethod(" + strconv.Itoa(int(m)) + ")"
	}
}

// ColumnType is the type of columns filled by m.
func (m TransferMethod) ColumnType() model.ColumnType {
	if m == TransferDate {
		return model.ColumnTypeDate
	}
	return model.ColumnTypeString
}

// Transfer returns the cell value of attribute value.
func (m TransferMethod) Transfer(value gjson.Result) *string {
	switch m {
	case TransferStringSet:
		var set []string
		for _, v := range value.Array() {
			set = append(set, v.String())
		}
		slices.Sort(set)
		return lo.ToPtr(strings.Join(lo.Uniq(set), ","))

	case TransferDate:
		if !exists(value) {
			return nil
		}
		millis, err := serialize.EpochMillis(value)
		if err != nil {
			return nil
		}
		return lo.ToPtr(strconv.FormatInt(millis, 10))

	case TransferStringMap:
		if !value.IsObject() {
			return nil
		}
		var pairs []string
		value.ForEach(func(k, v gjson.Result) bool {
			s := v.String()
			if s == noneValue {
				s = ""
			}
			pairs = append(pairs, k.String()+"="+s)
			return true
		})
		if len(pairs) == 0 {
			return nil
		}
		slices.Sort(pairs)
		return lo.ToPtr("|" + strings.Join(pairs, "|") + "|")

	default:
		if !exists(value) {
			return nil
		}
		return lo.ToPtr(value.String())
	}
}

func exists(value gjson.Result) bool {
	return value.Exists() && value.Type != gjson.Null
}
