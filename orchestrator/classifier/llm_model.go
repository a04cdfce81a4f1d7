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

package classifier

import (
	"context"
	"fmt"
	"strings"

	"chainsight/platform/orchestrator/llm"
)

// LLMModel labels query parts through the LLM gateway. It stands in for
// a dedicated fine-tuned intent model behind the same IntentModel
// contract.
type LLMModel struct {
	llm llm.Generator
}

// NewLLMModel creates an LLMModel backed by generator.
func NewLLMModel(generator llm.Generator) *LLMModel {
	return &LLMModel{llm: generator}
}

var validLabels = map[string]bool{
	LabelMixed:       true,
	LabelRetrieval:   true,
	LabelSQL:         true,
	LabelPredictive:  true,
	LabelExplanation: true,
}

// Label implements IntentModel. Unrecognized model output falls back to
// the retrieval label, matching the classifier's default.
func (m *LLMModel) Label(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Classify the intent of this supply chain question into exactly one label.

Labels:
- sql: the question asks for numbers, counts, rankings or aggregations from the order/shipping database
- retrieval: the question asks about policies, practices or documents
- predictive: the question asks to predict or forecast future risk
- explanation: the question asks to explain or interpret prior results
- mixed: the question needs both database figures and policy documents

Question: %q

Respond with only the label, nothing else.
`, text)

	label, err := m.llm.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("intent labeling failed: %w", err)
	}

	label = strings.ToLower(strings.TrimSpace(label))
	if !validLabels[label] {
		return LabelRetrieval, nil
	}
	return label, nil
}
