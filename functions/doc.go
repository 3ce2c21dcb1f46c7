/*
 * Copyright 2025 The RuleGo Authors.
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

/*
Package functions provides the scalar and aggregate functions available to plans.

Functions live in an explicit Registry that the engine creates and injects into
the expression compiler and the stage builder:

	reg := functions.NewBuiltinRegistry()
	_ = reg.RegisterScalar(functions.NewScalarFunc("double", functions.TypeCustom,
		"Multiply by two", 1, 1, func(args []interface{}) (interface{}, error) {
			return cast.ToFloat64(args[0]) * 2, nil
		}))

# Aggregates

Aggregates implement Accumulator. The windowed aggregate stage keeps one Bucket per
(group key, time slice) and calls AddToBucket for every input; FinishWindow folds
the buckets that intersect the current window:

	COUNT     non-null values, 0 for an empty window
	SUM       null when every input is null; wraps for INT32/INT64, exact for DECIMAL
	AVG       truncating for integer types, exact for DECIMAL
	MIN, MAX  any ordered type
	VAR, STDDEV population statistics as FLOAT64
	COLLECT   LIST of the values in event order

# Scalar functions

	ABS, ROUND, FLOOR, CEIL, SQRT
	UPPER, LOWER, TRIM, LENGTH, CONCAT, LIKE
	COALESCE, IS_NULL, IS_NOT_NULL

Scalar functions return null when any argument is null, except the null-handling
functions in the last row.
*/
package functions
