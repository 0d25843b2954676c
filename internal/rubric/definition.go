package rubric

// Criterion is one rubric question as presented to teachers.
type Criterion struct {
	ID       string `json:"id"`
	Question int    `json:"question"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Example  string `json:"example"`
}

// Definition is the read-only rubric instrument.
type Definition struct {
	RatingLevels map[string]string `json:"ratingLevels"`
	Criteria     []Criterion       `json:"criteria"`
	Skills       []SkillDefinition `json:"skills"`
	Thresholds   struct {
		Growth float64 `json:"growth"`
		Expert float64 `json:"expert"`
	} `json:"thresholds"`
}

var criteria = []Criterion{
	{ID: "sa_1", Question: 1, Category: "Self-Awareness, Social Awareness",
		Text: "The student can name and express how they or others feel.", Example: "e.g. uses words like happy, sad, angry, excited"},
	{ID: "sa_2", Question: 2, Category: "Self Awareness",
		Text: "The student can express their likes and dislikes.", Example: "e.g. \"I like drawing,\" \"I don't want to play that\""},
	{ID: "sa_3", Question: 3, Category: "Self-Management, Metacognition",
		Text: "The student keeps trying even when a task is difficult.", Example: "e.g. continues working on a puzzle or writing"},
	{ID: "sm_1", Question: 4, Category: "Metacognition, Critical Thinking",
		Text: "The student is able to ask for help when something is hard.", Example: "e.g. says \"I need help,\" or asks a friend"},
	{ID: "sm_2", Question: 5, Category: "Empathy, Social Awareness",
		Text: "The student is able to recognize the emotions of others and respond kindly.", Example: "e.g. helps a crying friend"},
	{ID: "sm_3", Question: 6, Category: "Empathy, Relationship Skills",
		Text: "The student shows care when someone is hurt or sad.", Example: "e.g. checks on them, offers a hug, says kind words"},
	{ID: "sm_4", Question: 7, Category: "Responsible Decision-Making, Critical Thinking",
		Text: "The student is able to solve problems with peers peacefully.", Example: "e.g. takes turns, talks it out"},
	{ID: "sm_5", Question: 8, Category: "Self-Management",
		Text: "The student is able to calm down when upset or excited.", Example: "e.g. takes deep breaths, walks away, asks for a break"},
	{ID: "sm_6", Question: 9, Category: "Self-Management, Responsible Decision-Making",
		Text: "The student can stop and think before acting.", Example: "e.g. waits their turn, follows directions instead of rushing"},
	{ID: "sm_7", Question: 10, Category: "Metacognition, Self-Awareness",
		Text: "The student is aware of their strengths and areas they want to improve.", Example: "e.g. \"I'm good at drawing...\""},
	{ID: "sm_8", Question: 11, Category: "Metacognition",
		Text: "The student can say what they want to learn or get better at.", Example: "e.g. \"I want to read more books\""},
}

// GetDefinition returns a fresh copy of the rubric instrument.
func GetDefinition() Definition {
	d := Definition{
		RatingLevels: map[string]string{
			"0": "Never",
			"1": "Beginner",
			"2": "Growing",
			"3": "Expert",
		},
		Criteria: append([]Criterion(nil), criteria...),
		Skills:   Definitions(),
	}
	d.Thresholds.Growth = GrowthThreshold
	d.Thresholds.Expert = ExpertThreshold
	return d
}
