package rubric

import (
	"errors"
	"fmt"
)

// Skill is one of the SEL competencies scored from the rubric.
type Skill string

const (
	SelfAwareness             Skill = "self_awareness"
	SocialManagement          Skill = "social_management"
	SocialAwareness           Skill = "social_awareness"
	RelationshipSkills        Skill = "relationship_skills"
	ResponsibleDecisionMaking Skill = "responsible_decision_making"
	Metacognition             Skill = "metacognition"
	Empathy                   Skill = "empathy"
	CriticalThinking          Skill = "critical_thinking"
)

// SkillDefinition maps a skill to the 1-based rubric questions it is scored from.
// Questions may feed several skills.
type SkillDefinition struct {
	Skill     Skill `json:"skill"`
	Questions []int `json:"questions"`
}

var skillDefinitions = []SkillDefinition{
	{Skill: SelfAwareness, Questions: []int{1, 2}},
	{Skill: SocialManagement, Questions: []int{8, 9}},
	{Skill: SocialAwareness, Questions: []int{5, 6}},
	{Skill: RelationshipSkills, Questions: []int{7}},
	{Skill: ResponsibleDecisionMaking, Questions: []int{9}},
	{Skill: Metacognition, Questions: []int{4, 10, 11}},
	{Skill: Empathy, Questions: []int{6, 5, 7}},
	{Skill: CriticalThinking, Questions: []int{3, 4, 9}},
}

// SkillCount is the number of scored skills.
const SkillCount = 8

func init() {
	if err := validateDefinitions(skillDefinitions); err != nil {
		panic(fmt.Sprintf("rubric: invalid skill mapping: %v", err))
	}
}

func validateDefinitions(defs []SkillDefinition) error {
	if len(defs) != SkillCount {
		return fmt.Errorf("expected %d skills, got %d", SkillCount, len(defs))
	}
	seen := make(map[Skill]bool, len(defs))
	for _, d := range defs {
		if d.Skill == "" {
			return errors.New("skill with empty name")
		}
		if seen[d.Skill] {
			return fmt.Errorf("duplicate skill %q", d.Skill)
		}
		seen[d.Skill] = true
		if len(d.Questions) == 0 {
			return fmt.Errorf("skill %q has no questions", d.Skill)
		}
		for _, q := range d.Questions {
			if q < 1 || q > QuestionCount {
				return fmt.Errorf("skill %q references question %d outside 1..%d", d.Skill, q, QuestionCount)
			}
		}
	}
	return nil
}

// Skills returns the skill names in mapping order.
func Skills() []Skill {
	out := make([]Skill, len(skillDefinitions))
	for i, d := range skillDefinitions {
		out[i] = d.Skill
	}
	return out
}

// Definitions returns a copy of the static skill mapping.
func Definitions() []SkillDefinition {
	out := make([]SkillDefinition, len(skillDefinitions))
	for i, d := range skillDefinitions {
		out[i] = SkillDefinition{Skill: d.Skill, Questions: append([]int(nil), d.Questions...)}
	}
	return out
}

func IsSkill(s Skill) bool {
	for _, d := range skillDefinitions {
		if d.Skill == s {
			return true
		}
	}
	return false
}
