package gate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhraseList is the on-disk form of a keyword classifier:
//
//	response: "Sorry, I can't help with that."
//	phrases:
//	  - some flagged phrase
type PhraseList struct {
	Response string   `yaml:"response"`
	Phrases  []string `yaml:"phrases"`
}

// KeywordClassifier blocks any utterance containing one of its phrases,
// compared case-insensitively on whitespace-normalized text.
type KeywordClassifier struct {
	response string
	phrases  []string
}

func NewKeywordClassifier(response string, phrases []string) *KeywordClassifier {
	if response == "" {
		response = DefaultBlockedResponse
	}
	k := &KeywordClassifier{response: response}
	for _, p := range phrases {
		if p = normalizeText(p); p != "" {
			k.phrases = append(k.phrases, p)
		}
	}
	return k
}

func LoadPhraseList(path string) (*PhraseList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pl PhraseList
	if err := yaml.Unmarshal(b, &pl); err != nil {
		return nil, fmt.Errorf("parse phrase list %s: %w", path, err)
	}
	return &pl, nil
}

func (k *KeywordClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	norm := normalizeText(text)
	for _, p := range k.phrases {
		if strings.Contains(norm, p) {
			return Blocked{Response: k.response}, nil
		}
	}
	return Passed{}, nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
