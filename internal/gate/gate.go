// Package gate decides whether a user utterance may reach an agent.
package gate

import (
	"context"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"go.uber.org/zap"
)

const (
	DefaultBlockedResponse = "Sorry, I can't help with that."
	// FailClosedResponse is shown when no verdict could be obtained.
	FailClosedResponse = "Sorry, I can't answer that right now. Please try again later."
)

// Verdict is either Passed or Blocked.
type Verdict interface {
	verdict()
}

// Passed lets the utterance through to agent routing.
type Passed struct{}

// Blocked stops the turn; Response is shown to the user verbatim.
type Blocked struct {
	Response string
}

func (Passed) verdict()  {}
func (Blocked) verdict() {}

// Classifier is the external sensitivity capability.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

type ClassifierFunc func(ctx context.Context, text string) (Verdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (Verdict, error) {
	return f(ctx, text)
}

type Gate struct {
	classifier Classifier
	logger     *zap.Logger
}

func New(classifier Classifier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{classifier: classifier, logger: logger}
}

// Check classifies text. The gate fails closed: when the classifier errors
// (or returns nothing usable) the verdict is Blocked with FailClosedResponse
// and the returned error carries common.ErrGate. The verdict is always
// non-nil.
func (g *Gate) Check(ctx context.Context, text string) (Verdict, error) {
	v, err := g.classifier.Classify(ctx, text)
	if err != nil {
		g.logger.Error("sensitivity classifier failed, blocking", zap.Error(err))
		return Blocked{Response: FailClosedResponse}, common.WithKind(common.ErrGate, err)
	}

	switch v := v.(type) {
	case Passed:
		return v, nil
	case Blocked:
		if v.Response == "" {
			v.Response = DefaultBlockedResponse
		}
		return v, nil
	default:
		g.logger.Error("sensitivity classifier returned no verdict, blocking")
		return Blocked{Response: FailClosedResponse}, common.ErrGate
	}
}
