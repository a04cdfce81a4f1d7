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

// historyLimit bounds the conversation memory; the oldest entry is
// evicted once the limit is reached.
const historyLimit = 10

// initialComplianceScore is every session's starting score.
const initialComplianceScore = 100

// historyEntry is one remembered turn. Question holds the text as the
// user typed it, including any voice prefix.
type historyEntry struct {
	Question string
	Response string
}

// Session is the per-user conversational state the coordinator carries
// across turns. It is not safe for concurrent use; the coordinator
// serializes turns.
type Session struct {
	UserID            string
	ComplianceScore   int
	ComplianceHistory []string
	Badges            []string
	QueryCount        int
	SuccessfulQueries int
	History           []historyEntry
}

// NewSession creates a session with the starting compliance score.
func NewSession(userID string) *Session {
	return &Session{
		UserID:          userID,
		ComplianceScore: initialComplianceScore,
	}
}

// adjustScore applies a compliance delta and records the reason.
func (s *Session) adjustScore(delta int, reason string) {
	s.ComplianceScore += delta
	s.ComplianceHistory = append(s.ComplianceHistory, reason)
}

// remember appends a turn to the bounded history.
func (s *Session) remember(question, response string) {
	s.History = append(s.History, historyEntry{Question: question, Response: response})
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

// pastEntry returns the 1-indexed history entry, if it exists.
func (s *Session) pastEntry(n int) (historyEntry, bool) {
	if n < 1 || n > len(s.History) {
		return historyEntry{}, false
	}
	return s.History[n-1], true
}

func (s *Session) hasBadge(name string) bool {
	for _, badge := range s.Badges {
		if badgeName(badge) == name {
			return true
		}
	}
	return false
}
