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

import (
	"regexp"
	"strconv"
	"strings"

	"chainsight/platform/orchestrator/faults"
)

const voicePrefix = "voice:"

var (
	goBackPattern        = regexp.MustCompile(`^go back to query (\d+)`)
	marketPattern        = regexp.MustCompile(`in (\w+(?:\s+\w+)*)\s+in\s+\d{4}`)
	yearPattern          = regexp.MustCompile(`\b(\d{4})\b`)
	learningTopicPattern = regexp.MustCompile(`what is (load optimization|sustainability)\?`)
	alphaPattern         = regexp.MustCompile(`[a-zA-Z]`)
)

// parseGoBack recognizes the "go back to query <n>" command and returns
// the 1-indexed query number.
func parseGoBack(question string) (int, bool) {
	match := goBackPattern.FindStringSubmatch(strings.ToLower(question))
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// stripVoicePrefix removes the simulated voice-input marker. The caller
// keeps the original text for conversation history.
func stripVoicePrefix(question string) string {
	if strings.HasPrefix(strings.ToLower(question), voicePrefix) {
		return strings.TrimSpace(question[len(voicePrefix):])
	}
	return question
}

// extractMarketYear pulls the market name and four-digit year out of a
// prediction question like "predict the late delivery risk in LATAM in
// 2019".
func extractMarketYear(question string) (string, int, error) {
	marketMatch := marketPattern.FindStringSubmatch(question)
	yearMatch := yearPattern.FindStringSubmatch(question)
	if marketMatch == nil || yearMatch == nil {
		return "", 0, &faults.ExtractionError{What: "market or year from the question for prediction"}
	}
	year, err := strconv.Atoi(yearMatch[1])
	if err != nil {
		return "", 0, &faults.ExtractionError{What: "market or year from the question for prediction"}
	}
	return marketMatch[1], year, nil
}

// extractLearningTopic detects definitional questions about the closed
// topic set the learning module covers.
func extractLearningTopic(question string) (string, bool) {
	lower := strings.ToLower(question)
	if !strings.Contains(lower, "what is") {
		return "", false
	}
	if !strings.Contains(lower, "load optimization") && !strings.Contains(lower, "sustainability") {
		return "", false
	}
	match := learningTopicPattern.FindStringSubmatch(lower)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// followUpCues mark a question as a likely follow-up to an earlier turn.
var followUpCues = []string{
	"it", "this", "that",
	"do we have policy", "are we following",
	"tell me more", "explain more",
}

func hasFollowUpCue(lowerQuestion string) bool {
	for _, cue := range followUpCues {
		if strings.Contains(lowerQuestion, cue) {
			return true
		}
	}
	return false
}

// topicHints map a keyword found in a past question to the context
// prefix prepended to the follow-up. Order is the match priority.
var topicHints = []struct {
	keyword string
	prefix  string
}{
	{"sustainability", "Regarding sustainability practices: "},
	{"load optimization", "Regarding load optimization: "},
	{"cyber security", "Regarding cyber security measures: "},
	{"supplier", "Regarding supplier management: "},
	{"shipping", "Regarding shipping and logistics: "},
}

func topicHintPrefix(pastQuestion string) (string, bool) {
	for _, hint := range topicHints {
		if strings.Contains(pastQuestion, hint.keyword) {
			return hint.prefix, true
		}
	}
	return "", false
}

func containsAlpha(s string) bool {
	return alphaPattern.MatchString(s)
}
