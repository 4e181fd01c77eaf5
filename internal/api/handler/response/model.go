package response

type Model struct {
	ModelID     string `json:"modelId"`
	ModelName   string `json:"modelName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CostPerRun  int64  `json:"costPerRun"`
}
