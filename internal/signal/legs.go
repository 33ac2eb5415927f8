package signal

import (
	"encoding/json"
	"strconv"
)

const (
	fieldLegs       = "signal_legs"
	fieldLegacyLeg  = "signal"
	fieldInstrument = "instrument"
	fieldTicker     = "ticker"
	fieldAction     = "action"
	fieldPrice      = "price"
)

// Leg 单个交易腿，字段保持调用方原样
type Leg map[string]any

// legShape 入站腿字段的形态
type legShape int

const (
	shapeAbsent legShape = iota
	shapeObject
	shapeArray
	shapeOther
)

// Legs 入站的腿字段，可能是单个对象也可能是数组
type Legs struct {
	shape legShape
	raw   any
}

func parseLegs(v any) Legs {
	switch v.(type) {
	case nil:
		return Legs{shape: shapeAbsent}
	case map[string]any:
		return Legs{shape: shapeObject, raw: v}
	case []any:
		return Legs{shape: shapeArray, raw: v}
	default:
		return Legs{shape: shapeOther, raw: v}
	}
}

func (l Legs) Present() bool {
	return l.shape != shapeAbsent
}

// Canonical 规范形态：对象包装为单元素数组，其他形态原样保留
func (l Legs) Canonical() any {
	if l.shape == shapeObject {
		return []any{l.raw}
	}
	return l.raw
}

// First 第一条腿，不存在或不是对象时返回空腿
func (l Legs) First() Leg {
	switch l.shape {
	case shapeObject:
		return Leg(l.raw.(map[string]any))
	case shapeArray:
		arr := l.raw.([]any)
		if len(arr) > 0 {
			if m, ok := arr[0].(map[string]any); ok {
				return Leg(m)
			}
		}
	}
	return Leg{}
}

// first 按顺序返回第一个真值字段，全部为假值时返回 def
func (l Leg) first(def any, keys ...string) any {
	for _, k := range keys {
		if v := l[k]; truthy(v) {
			return v
		}
	}
	return def
}

// truthy 与 JSON 弱类型语义一致：null、false、0、空字符串为假
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return err != nil || f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
