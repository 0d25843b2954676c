package rubric

// Result is the scored form of one student's answer set.
type Result struct {
	SkillScores map[Skill]float64 `json:"skillScores"`
	Overall     float64           `json:"overallScore"`
}

// Score converts an answer set into skill scores and an overall score.
//
// Each answered question contributes rating+1. A skill's score is the sum of its
// contributions divided by the number of questions configured for the skill, not the
// number answered, so partially answered skills score lower. A skill with no answered
// questions scores 0. The overall score is the mean of all skill scores, zeros included.
func Score(answers AnswerSet) Result {
	return scoreWith(skillDefinitions, answers)
}

func scoreWith(defs []SkillDefinition, answers AnswerSet) Result {
	scores := make(map[Skill]float64, len(defs))
	var sum float64
	for _, def := range defs {
		total, answered := 0, 0
		for _, q := range def.Questions {
			if v, ok := answers.Question(q).Value(); ok {
				total += v + 1
				answered++
			}
		}
		score := 0.0
		if answered > 0 {
			score = float64(total) / float64(len(def.Questions))
		}
		scores[def.Skill] = score
		sum += score
	}
	overall := 0.0
	if len(defs) > 0 {
		overall = sum / float64(len(defs))
	}
	return Result{SkillScores: scores, Overall: overall}
}

// OverallLevel classifies the overall score.
func (r Result) OverallLevel() Level {
	return Classify(r.Overall)
}

// SkillLevels classifies every skill score.
func (r Result) SkillLevels() map[Skill]Level {
	out := make(map[Skill]Level, len(r.SkillScores))
	for s, v := range r.SkillScores {
		out[s] = Classify(v)
	}
	return out
}
