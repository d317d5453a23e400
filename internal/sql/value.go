/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sql

import (
	"fmt"
	"math"
	"strconv"
)

// Values flowing through FlySearch are nil (NULL), bool, float64, or
// string. Every integer and float type is normalized to float64 so that
// hash values decoded from JSON, YAML, and Go literals compare and hash
// identically.

// Kind classifies a normalized value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindOther
)

// KindOf returns the kind of a normalized value.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	default:
		return KindOther
	}
}

// Normalize converts v to its canonical representation.
func Normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	}
	return v
}

// CompareValues compares two normalized values under SQL semantics. ok is
// false when either value is NULL or the kinds differ; such comparisons
// are unknown.
func CompareValues(a, b interface{}, c Collator) (cmp int, ok bool) {
	ka, kb := KindOf(a), KindOf(b)
	if ka == KindNull || kb == KindNull || ka != kb {
		return 0, false
	}
	switch ka {
	case KindBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case KindNumber:
		x, y := a.(float64), b.(float64)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		if c == nil {
			c = BinaryCollator{}
		}
		return sign(c.Compare(a.(string), b.(string))), true
	}
	return compareStrings(fmt.Sprint(a), fmt.Sprint(b)), true
}

// Order is a total order over normalized values: NULL first, then by kind
// (bool, number, string, other), then by value within a kind.
func Order(a, b interface{}, c Collator) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	if ka == KindNull {
		return 0
	}
	cmp, _ := CompareValues(a, b, c)
	return cmp
}

// HashKey returns a comparable key that is equal for values the collator
// considers equal. It is safe to use as a Go map key.
func HashKey(v interface{}, c Collator) interface{} {
	switch x := v.(type) {
	case string:
		if c == nil {
			return x
		}
		return c.Key(x)
	case nil, bool, float64:
		return x
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// Truth evaluates v in a boolean context. known is false for NULL.
func Truth(v interface{}) (value, known bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		return x != "", true
	}
	return true, true
}

// ToNumber converts a value for arithmetic. Strings holding numbers are
// accepted; ok is false otherwise.
func ToNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FormatValue renders a value for display: NULL, integral numbers without
// a fraction, everything else with %v.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
