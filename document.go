package docshield

// SeedFields is the initial document loaded into an empty store.
// Operators replace it through the document management API.
func SeedFields() []Field {
	return []Field{
		{ID: "revenue", Name: "Revenue", Value: "$5.2M", Sensitivity: SensitivityCritical},
		{ID: "risks", Name: "Risks", Value: "Lawsuit Pending", Sensitivity: SensitivityCritical},
		{ID: "roadmap", Name: "Roadmap", Value: "Launching V2 with AI capabilities, expanding to 15 countries", Sensitivity: SensitivitySensitive},
		{ID: "marketSize", Name: "Market Size", Value: "$2.8B TAM", Sensitivity: SensitivitySensitive},
	}
}
