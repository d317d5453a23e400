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

package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	ferrors "flysearch/internal/errors"
	"flysearch/internal/sql"
)

// scalarFunc implements a scalar SQL function over evaluated arguments.
type scalarFunc struct {
	minArgs, maxArgs int
	fn               func(args []interface{}) (interface{}, error)
}

var scalarFuncs = map[string]scalarFunc{
	"UPPER":     {1, 1, stringFunc(strings.ToUpper)},
	"LOWER":     {1, 1, stringFunc(strings.ToLower)},
	"TRIM":      {1, 1, stringFunc(strings.TrimSpace)},
	"LENGTH":    {1, 1, fnLength},
	"CONCAT":    {1, -1, fnConcat},
	"COALESCE":  {1, -1, fnCoalesce},
	"IFNULL":    {2, 2, fnCoalesce},
	"NULLIF":    {2, 2, nil},
	"ABS":       {1, 1, numberFunc(math.Abs)},
	"FLOOR":     {1, 1, numberFunc(math.Floor)},
	"CEIL":      {1, 1, numberFunc(math.Ceil)},
	"CEILING":   {1, 1, numberFunc(math.Ceil)},
	"ROUND":     {1, 2, fnRound},
	"SUBSTR":    {2, 3, fnSubstr},
	"SUBSTRING": {2, 3, fnSubstr},
}

func (c *evalCtx) call(f *sql.FuncCall) (interface{}, error) {
	name := strings.ToUpper(f.Name)
	def, ok := scalarFuncs[name]
	if !ok {
		return nil, ferrors.UnknownFunction(f.Name)
	}
	if len(f.Args) < def.minArgs || (def.maxArgs >= 0 && len(f.Args) > def.maxArgs) {
		return nil, ferrors.NewExecutionError(fmt.Sprintf("wrong number of arguments to %s", name))
	}
	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		v, err := c.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if name == "NULLIF" {
		if c.e.compare(sql.OpEq, args[0], args[1]) == true {
			return nil, nil
		}
		return args[0], nil
	}
	return def.fn(args)
}

func stringFunc(fn func(string) string) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return fn(sql.FormatValue(args[0])), nil
	}
}

func numberFunc(fn func(float64) float64) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		n, ok := sql.ToNumber(args[0])
		if !ok {
			return nil, ferrors.TypeMismatch("numeric function", args[0])
		}
		return fn(n), nil
	}
}

func fnLength(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return float64(utf8.RuneCountInString(sql.FormatValue(args[0]))), nil
}

// fnConcat is NULL if any argument is NULL, like the || operator.
func fnConcat(args []interface{}) (interface{}, error) {
	var b strings.Builder
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
		b.WriteString(sql.FormatValue(a))
	}
	return b.String(), nil
}

func fnCoalesce(args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

func fnRound(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	n, ok := sql.ToNumber(args[0])
	if !ok {
		return nil, ferrors.TypeMismatch("ROUND", args[0])
	}
	places := 0.0
	if len(args) == 2 {
		if args[1] == nil {
			return nil, nil
		}
		if places, ok = sql.ToNumber(args[1]); !ok {
			return nil, ferrors.TypeMismatch("ROUND", args[1])
		}
	}
	scale := math.Pow(10, math.Trunc(places))
	return math.Round(n*scale) / scale, nil
}

// fnSubstr takes a 1-based start and an optional length, counted in runes.
func fnSubstr(args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}
	runes := []rune(sql.FormatValue(args[0]))
	start, ok := sql.ToNumber(args[1])
	if !ok {
		return nil, ferrors.TypeMismatch("SUBSTR", args[1])
	}
	from := int(start) - 1
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	to := len(runes)
	if len(args) == 3 {
		n, ok := sql.ToNumber(args[2])
		if !ok {
			return nil, ferrors.TypeMismatch("SUBSTR", args[2])
		}
		if int(n) < 0 {
			return "", nil
		}
		if from+int(n) < to {
			to = from + int(n)
		}
	}
	return string(runes[from:to]), nil
}
