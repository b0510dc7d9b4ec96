package model

// UserProfile 是外部传入的用户画像快照，在一次请求内只读，
// 核心只负责把它格式化进系统提示词，自身不做任何持久化。
type UserProfile struct {
	Citizenship         string `json:"citizenship"`
	VisaStatus          string `json:"visaStatus"`
	AffiliationType     string `json:"affiliationType"`
	Affiliation         string `json:"affiliation"`
	HasTravelPlans      bool   `json:"hasTravelPlans"`
	TravelDestination   string `json:"travelDestination,omitempty"`
	TravelDepartureDate string `json:"travelDepartureDate,omitempty"`
	TravelReturnDate    string `json:"travelReturnDate,omitempty"`
}
