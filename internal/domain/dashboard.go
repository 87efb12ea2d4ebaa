package domain

// DashboardStats — снимок без идентичности, заменяется целиком при каждом запросе.
type DashboardStats struct {
	TotalEvents         int    `json:"totalEvents"`
	CriticalEvents      int    `json:"criticalEvents"`
	ActiveIncidents     int    `json:"activeIncidents"`
	ResolvedToday       int    `json:"resolvedToday"`
	AssetsMonitored     int    `json:"assetsMonitored"`
	CompromisedAssets   int    `json:"compromisedAssets"`
	AverageResponseTime string `json:"averageResponseTime"`
	ThreatLevel         string `json:"threatLevel"`
}

// OverviewStats — сокращенная сводка для верхней панели дашборда.
type OverviewStats struct {
	Events    int `json:"events"`
	Critical  int `json:"critical"`
	Incidents int `json:"incidents"`
	Assets    int `json:"assets"`
}
