package model

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// Quiz 测验，TimeLimit 为 0 表示不限时
// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID     uint       `gorm:"index;not null" json:"courseId"`
	ModuleID     uint       `gorm:"index;not null" json:"moduleId"`
	Title        string     `gorm:"size:200;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	TimeLimit    int        `gorm:"not null" json:"timeLimit"`    // 分钟
	PassingScore int        `gorm:"not null" json:"passingScore"` // 百分比
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID      uint         `gorm:"index;not null" json:"quizId"`
	Text        string       `gorm:"type:text;not null" json:"text"`
	Type        QuestionType `gorm:"size:20;not null" json:"type"`
	Points      int          `gorm:"not null" json:"points"`
	SortOrder   int          `json:"sortOrder"`
	Explanation string       `gorm:"type:text" json:"explanation,omitempty"`
	Answers     []Answer     `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Answer
type Answer struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

func (Answer) TableName() string {
	return "answers"
}
