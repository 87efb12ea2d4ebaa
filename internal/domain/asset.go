package domain

type AssetStatus string

const (
	AssetHealthy       AssetStatus = "healthy"
	AssetCompromised   AssetStatus = "compromised"
	AssetInvestigating AssetStatus = "investigating"
)

// HighRiskThreshold — нижняя граница riskScore для "опасных" активов.
const HighRiskThreshold = 70

type Asset struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	OS         string      `json:"os"`
	IP         string      `json:"ip"`
	Status     AssetStatus `json:"status"`
	LastSeen   string      `json:"lastSeen"`
	Owner      string      `json:"owner"`
	Department string      `json:"department"`
	RiskScore  int         `json:"riskScore"` // 0-100
}

func (a Asset) GetID() string { return a.ID }

type AssetFilter struct {
	Status AssetStatus
}
