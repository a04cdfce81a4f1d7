// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import "strings"

// deniedKeywords are mutation keywords that must never reach the SQL
// generator. Matching is substring-based over the lowercased question.
var deniedKeywords = []string{"drop", "delete", "truncate", "insert", "update"}

const minQuestionLength = 5

// validateQuestion checks the question against the compliance rules and
// applies the matching score delta to the session. It returns the
// user-facing error message for the first failing rule, or "" when the
// question is acceptable.
func validateQuestion(question string, session *Session) string {
	lower := strings.ToLower(question)

	for _, word := range deniedKeywords {
		if strings.Contains(lower, word) {
			session.adjustScore(-5, "Inappropriate query keyword detected (-5 points)")
			return "Query contains inappropriate keywords that could harm the database. Please revise your question."
		}
	}

	if len(question) < minQuestionLength {
		session.adjustScore(-1, "Query too short (-1 point)")
		return "Your query is too short. Please provide a more detailed question."
	}

	if !containsAlpha(question) {
		session.adjustScore(-1, "Query lacks alphabetic characters (-1 point)")
		return "Your query must contain alphabetic characters to be meaningful."
	}

	return ""
}
