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

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoriesSurviveWrapping(t *testing.T) {
	err := Wrapf(ColumnNotFound("age"), "resolving %s", "users")

	require.True(t, IsValidationError(err))
	require.False(t, IsStorageError(err))
	require.Equal(t, ErrCodeColumnNotFound, GetCode(err))
	require.Contains(t, err.Error(), "resolving users")
}

func TestSearchFailedIsOpaque(t *testing.T) {
	err := fmt.Errorf("stage: %w", ErrSearchFailed)

	require.True(t, IsSearchFailed(err))
	require.Nil(t, ErrSearchFailed.Unwrap())
	require.Equal(t, "ERROR: search failed", FormatError(ErrSearchFailed))
}

func TestWithHelpersCopy(t *testing.T) {
	base := NewValidationError("statement is required")
	detailed := base.WithDetail("nil select").WithHint("pass a SELECT")

	require.Empty(t, base.Detail)
	require.Equal(t, "nil select", detailed.Detail)
	require.Equal(t, "ERROR: statement is required (nil select)\nHINT: pass a SELECT", detailed.UserMessage())
}

func TestIsMatchesByCode(t *testing.T) {
	require.True(t, Is(Unsupported("HAVING"), &Error{Code: ErrCodeUnsupported}))
	require.False(t, Is(Unsupported("HAVING"), ErrSearchFailed))
	require.Equal(t, ErrorCode(0), GetCode(fmt.Errorf("plain")))
	require.Equal(t, "ERROR: plain", FormatError(fmt.Errorf("plain")))
}
