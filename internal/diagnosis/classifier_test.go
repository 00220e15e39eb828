package diagnosis

import (
	"testing"
	"time"

	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/scoring"
)

func timed(secs int) question.Question {
	return question.Question{ID: "q", Options: []string{"a", "b"}, Correct: "A", EstimatedSecs: secs}
}

func TestSpeedRushClassifier_UnderThreshold(t *testing.T) {
	c := &SpeedRushClassifier{}
	// 20% of 60s is 12s
	cat, conf := c.Classify(&ClassifyInput{Question: timed(60), Elapsed: 11 * time.Second})
	if cat != CategorySpeedRush {
		t.Errorf("got category %q, want %q", cat, CategorySpeedRush)
	}
	if conf != 0.9 {
		t.Errorf("got confidence %f, want 0.9", conf)
	}
}

func TestSpeedRushClassifier_AtThreshold(t *testing.T) {
	c := &SpeedRushClassifier{}
	cat, _ := c.Classify(&ClassifyInput{Question: timed(60), Elapsed: 12 * time.Second})
	if cat != "" {
		t.Errorf("got category %q at threshold, want empty", cat)
	}
}

func TestSpeedRushClassifier_Floor(t *testing.T) {
	c := &SpeedRushClassifier{}
	cat, _ := c.Classify(&ClassifyInput{Question: timed(5), Elapsed: 1500 * time.Millisecond})
	if cat != CategorySpeedRush {
		t.Errorf("got %q, want %q below the floor", cat, CategorySpeedRush)
	}
	cat, _ = c.Classify(&ClassifyInput{Question: timed(0), Elapsed: 3 * time.Second})
	if cat != "" {
		t.Errorf("got %q, want empty above the floor", cat)
	}
}

func TestSpeedRushClassifier_UnknownTime(t *testing.T) {
	c := &SpeedRushClassifier{}
	cat, _ := c.Classify(&ClassifyInput{Question: timed(60)})
	if cat != "" {
		t.Errorf("got %q, want empty when elapsed is unknown", cat)
	}
}

func TestCarelessClassifier_HighAccuracy(t *testing.T) {
	c := &CarelessClassifier{}
	cat, conf := c.Classify(&ClassifyInput{CompetencyAccuracy: 0.85})
	if cat != CategoryCareless {
		t.Errorf("got category %q, want %q", cat, CategoryCareless)
	}
	if conf != 0.8 {
		t.Errorf("got confidence %f, want 0.8", conf)
	}
}

func TestCarelessClassifier_AtThreshold(t *testing.T) {
	c := &CarelessClassifier{}
	cat, _ := c.Classify(&ClassifyInput{CompetencyAccuracy: 0.80})
	if cat != "" {
		t.Errorf("got category %q at threshold, want empty", cat)
	}
}

func TestRunClassifiers_SpeedRushPriority(t *testing.T) {
	// Both speed-rush AND careless match → speed-rush wins.
	input := &ClassifyInput{
		Question:           timed(60),
		Elapsed:            time.Second,
		CompetencyAccuracy: 0.90,
	}
	cat, _, name := RunClassifiers(DefaultClassifiers(), input)
	if cat != CategorySpeedRush {
		t.Errorf("got category %q, want %q (speed-rush should take priority)", cat, CategorySpeedRush)
	}
	if name != "speed-rush" {
		t.Errorf("got classifier %q, want %q", name, "speed-rush")
	}
}

func TestRunClassifiers_NoMatch(t *testing.T) {
	input := &ClassifyInput{
		Question:           timed(60),
		Elapsed:            40 * time.Second,
		CompetencyAccuracy: 0.50,
	}
	cat, conf, name := RunClassifiers(DefaultClassifiers(), input)
	if cat != "" || conf != 0 || name != "" {
		t.Errorf("got (%q, %f, %q), want no match", cat, conf, name)
	}
}

func TestDefaultClassifiers_Order(t *testing.T) {
	classifiers := DefaultClassifiers()
	if len(classifiers) != 2 {
		t.Fatalf("got %d classifiers, want 2", len(classifiers))
	}
	if classifiers[0].Name() != "speed-rush" {
		t.Errorf("first classifier is %q, want speed-rush", classifiers[0].Name())
	}
	if classifiers[1].Name() != "careless" {
		t.Errorf("second classifier is %q, want careless", classifiers[1].Name())
	}
}

func TestDiagnose(t *testing.T) {
	q := func(id, comp string) question.Question {
		return question.Question{ID: id, Competency: comp, Options: []string{"a", "b"}, Correct: "A", EstimatedSecs: 60}
	}
	qs := []question.Question{
		q("r1", "Reading"), q("r2", "Reading"), q("r3", "Reading"), q("r4", "Reading"), q("r5", "Reading"), q("r6", "Reading"),
		q("g1", "Grammar"), q("g2", "Grammar"), q("g3", "Grammar"),
	}
	ans := func(sel string, secs int) question.Answer {
		return question.Answer{Selected: sel, Elapsed: time.Duration(secs) * time.Second}
	}
	answers := map[int]question.Answer{
		0: ans("A", 30), 1: ans("A", 30), 2: ans("A", 30), 3: ans("A", 30), 4: ans("A", 30),
		5: ans("B", 40), // Reading 5/6: careless
		6: ans("B", 3),  // rushed
		7: ans("B", 45), // Grammar 0/3: knowledge gap
	}
	byComp := scoring.ByCompetency(qs, answers)

	got := Diagnose(qs, answers, byComp)
	want := []struct {
		id  string
		cat ErrorCategory
	}{
		{"r6", CategoryCareless},
		{"g1", CategorySpeedRush},
		{"g2", CategoryKnowledgeGap},
		{"g3", CategoryUnanswered},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d diagnoses, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].QuestionID != w.id || got[i].Category != w.cat {
			t.Errorf("diagnosis %d = (%s, %s), want (%s, %s)", i, got[i].QuestionID, got[i].Category, w.id, w.cat)
		}
	}
	if got[0].Index != 5 || got[0].Classifier != "careless" {
		t.Errorf("got index %d classifier %q, want 5 careless", got[0].Index, got[0].Classifier)
	}

	counts := Count(got)
	if counts[CategoryKnowledgeGap] != 1 || counts[CategoryUnanswered] != 1 || counts[CategorySpeedRush] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}
