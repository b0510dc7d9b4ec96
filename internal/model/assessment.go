package model

// AssessmentSource 是风险评估中引用的一条信息来源。
type AssessmentSource struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate"`
	Publisher     string `json:"publisher"`
}

// RiskAssessment 是模型通过工具调用产出的结构化旅行风险评估。
// 工具本身只做校验与透传，价值在于强制模型输出符合该结构的数据。
type RiskAssessment struct {
	RiskLevel           string             `json:"riskLevel"`
	Destination         string             `json:"destination"`
	KeyReasons          []string           `json:"keyReasons"`
	ClarifyingQuestions []string           `json:"clarifyingQuestions"`
	Sources             []AssessmentSource `json:"sources"`
	NextSteps           []string           `json:"nextSteps"`
}

// 合法的风险等级取值。
var RiskLevels = map[string]bool{
	"low":     true,
	"medium":  true,
	"high":    true,
	"unknown": true,
}
