package analyzer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/strategy"
)

// fakeSession is a scripted browser.Session for loop tests.
type fakeSession struct {
	steps           int
	commonParentOK  bool
	commonParentSel string
	lastChildOK     bool
	lastChildSel    string
	scrollToElemErr error
}

func (f *fakeSession) Navigate(url string) error   { return nil }
func (f *fakeSession) Screenshot() ([]byte, error) { f.steps++; return []byte("png"), nil }
func (f *fakeSession) Click(x, y float64) error    { return nil }
func (f *fakeSession) ScrollToNextView(direction string) (bool, error) {
	return true, nil
}
func (f *fakeSession) FindCommonParent(sections []string, threshold float64) (string, bool, error) {
	return f.commonParentSel, f.commonParentOK, nil
}
func (f *fakeSession) GetLastVisibleChild(parentSelector string) (string, bool, error) {
	return f.lastChildSel, f.lastChildOK, nil
}
func (f *fakeSession) ScrollToElement(selector string) (bool, error) {
	return f.scrollToElemErr == nil, f.scrollToElemErr
}
func (f *fakeSession) OuterHTML(selector string) (string, bool, error) { return "", false, nil }
func (f *fakeSession) Close() error                                   { return nil }

// fakeStepLLM returns sections[stepIndex] (clamped to the last entry) as
// the vision result for each call to Step.
type fakeStepLLM struct {
	sections [][]string
	calls    int
}

func (f *fakeStepLLM) Step(ctx context.Context, query string, screenshot []byte) (llmclient.StepResult, llmclient.Usage, error) {
	if len(f.sections) == 0 {
		return llmclient.StepResult{Action: llmclient.ActionNone, Direction: llmclient.DirectionDown}, llmclient.Usage{}, nil
	}
	idx := f.calls
	if idx >= len(f.sections) {
		idx = len(f.sections) - 1
	}
	f.calls++
	return llmclient.StepResult{TextSections: f.sections[idx], Action: llmclient.ActionNone, Direction: llmclient.DirectionDown}, llmclient.Usage{}, nil
}

func (f *fakeStepLLM) ClassifyParameters(ctx context.Context, candidateNames []string, requestContext string) (llmclient.ClassificationResult, llmclient.Usage, error) {
	return llmclient.ClassificationResult{}, llmclient.Usage{}, nil
}

func (f *fakeStepLLM) SynthesizeExtraction(ctx context.Context, schema map[string]interface{}, sampleBody, repairNote string) (llmclient.ExtractionProgram, llmclient.Usage, error) {
	return llmclient.ExtractionProgram{}, llmclient.Usage{}, nil
}

func TestAnalyzeExhaustsMaxStepsWithNoCaptures(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{sections: [][]string{{}, {}, {}}}
	store := capture.NewStore()
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	src, ok, err := loop.Analyze(context.Background(), "find products", strategy.OutputSchema{"name": "string"}, 3, 0)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ok || src != nil {
		t.Errorf("Analyze() = %+v, %v, want nil, false", src, ok)
	}
	if session.steps != 3 {
		t.Errorf("screenshot calls = %d, want 3 (max_steps)", session.steps)
	}
}

func TestAnalyzeZeroMaxStepsNeverCallsVision(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{sections: [][]string{{"should never be read"}}}
	store := capture.NewStore()
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	src, ok, err := loop.Analyze(context.Background(), "q", strategy.OutputSchema{}, 0, 0)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ok || src != nil {
		t.Errorf("Analyze() = %+v, %v, want nil, false", src, ok)
	}
	if session.steps != 0 {
		t.Errorf("screenshot calls = %d, want 0 when max_steps=0", session.steps)
	}
}

func TestCorrelateSkipPerformedEndsStepRegardlessOfMatch(t *testing.T) {
	session := &fakeSession{commonParentOK: true, commonParentSel: "#grid", lastChildOK: true, lastChildSel: "#grid > div:last-child"}
	llm := &fakeStepLLM{}
	store := capture.NewStore()
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	_, skip := loop.correlate(context.Background(), slog.Default(), []string{"hello world"})
	if !skip {
		t.Error("correlate() skipPerformed = false, want true when last_visible_child resolves")
	}
}

func TestCorrelateNoSectionsIsNoOp(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{}
	store := capture.NewStore()
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	chosen, skip := loop.correlate(context.Background(), slog.Default(), nil)
	if chosen != nil || skip {
		t.Errorf("correlate(nil sections) = %+v, %v, want nil, false", chosen, skip)
	}
}

func TestCorrelateSkipsBlockedCaptures(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{}
	store := capture.NewStore()
	store.Add(capture.Request{Method: "GET", URL: "https://example.com/a", Kind: capture.KindBlocked}, "hello world, this is a challenge page")
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	chosen, _ := loop.correlate(context.Background(), slog.Default(), []string{"hello world"})
	if chosen != nil {
		t.Errorf("correlate() matched a blocked capture: %+v", chosen)
	}
}

func TestCorrelateMatchesUnblockedCapture(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{}
	store := capture.NewStore()
	store.Add(capture.Request{Method: "GET", URL: "https://example.com/a", Kind: capture.KindAjax}, "hello world, real content")
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	chosen, _ := loop.correlate(context.Background(), slog.Default(), []string{"hello world"})
	if chosen == nil {
		t.Error("correlate() found no match for an ajax capture that should have scored above threshold")
	}
}

func TestDispatchActionClosePopupClicksWhenPointPresent(t *testing.T) {
	session := &fakeSession{}
	llm := &fakeStepLLM{}
	store := capture.NewStore()
	builder := strategy.NewBuilder(llm, nil)
	loop := New(session, llm, store, builder, nil)

	err := loop.dispatchAction(llmclient.StepResult{Action: llmclient.ActionClosePopup, ClickPoint: &llmclient.Point{X: 0.5, Y: 0.5}})
	if err != nil {
		t.Errorf("dispatchAction() error = %v", err)
	}
}

func TestBackoffForClampsToLastEntry(t *testing.T) {
	if backoffFor(99) != stepBackoff[len(stepBackoff)-1] {
		t.Error("backoffFor() did not clamp to the last backoff entry")
	}
	if backoffFor(-1) != stepBackoff[len(stepBackoff)-1] {
		t.Error("backoffFor(-1) did not clamp")
	}
}
