package cox

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType tags the variant held by a Value.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is the tagged scalar cox passes around at runtime: nil,
// bool, double or a reference to a heap Obj. It is deliberately a
// plain struct rather than an interface so the VM can pass it by
// value on the Go stack the same way the bytecode stack does.
type Value struct {
	typ     ValueType
	number  float64
	boolean bool
	obj     *Obj
}

func NilValue() Value             { return Value{typ: ValNil} }
func BoolValue(b bool) Value      { return Value{typ: ValBool, boolean: b} }
func NumberValue(n float64) Value { return Value{typ: ValNumber, number: n} }
func ObjValue(o *Obj) Value       { return Value{typ: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.typ == ValNil }
func (v Value) IsBool() bool   { return v.typ == ValBool }
func (v Value) IsNumber() bool { return v.typ == ValNumber }
func (v Value) IsObj() bool    { return v.typ == ValObj }

func (v Value) AsBool() bool      { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObj() *Obj       { return v.obj }

func (v Value) IsObjType(t ObjType) bool {
	return v.typ == ValObj && v.obj.typ == t
}

func (v Value) IsString() bool   { return v.IsObjType(ObjString) }
func (v Value) IsFunction() bool { return v.IsObjType(ObjFunction) }
func (v Value) IsClosure() bool  { return v.IsObjType(ObjClosure) }
func (v Value) IsNative() bool   { return v.IsObjType(ObjNative) }

func (v Value) AsString() *ObjStringData     { return v.obj.asString }
func (v Value) AsFunction() *ObjFunctionData { return v.obj.asFunction }
func (v Value) AsClosure() *ObjClosureData   { return v.obj.asClosure }
func (v Value) AsNative() *ObjNativeData     { return v.obj.asNative }

// IsFalsey implements the language's truthiness rule: nil and false
// are falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal is structural for scalars and pointer-identity for heap
// objects; strings are interned so pointer identity coincides with
// content equality for them too.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case ValNil:
		return true
	case ValBool:
		return v.boolean == o.boolean
	case ValNumber:
		return v.number == o.number
	case ValObj:
		return v.obj == o.obj
	}
	return false
}

func (v Value) TypeName() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObj:
		return v.obj.TypeName()
	}
	return "unknown"
}

// String renders a Value the way the VM's PRINT opcode does.
func (v Value) String() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.number)
	case ValObj:
		return v.obj.String()
	}
	return "<unknown>"
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ValueArray is a resizable array of constants, the shape chunks use
// for their constant pool.
type ValueArray struct {
	values []Value
}

func (a *ValueArray) Write(v Value) int {
	a.values = append(a.values, v)
	return len(a.values) - 1
}

func (a *ValueArray) Get(i int) Value { return a.values[i] }
func (a *ValueArray) Len() int        { return len(a.values) }

func (a *ValueArray) String() string {
	return fmt.Sprintf("ValueArray<%d>", a.Len())
}
