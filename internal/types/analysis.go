package types

// AnalysisResult is the payload returned by AI analysis: the structured
// record plus the personal information detected in the source text.
type AnalysisResult struct {
	StructuredData StructuredCV `json:"structured_data"`
	PersonalInfo   PersonalInfo `json:"personal_info"`
}

// FallbackAnalysis returns the well-formed empty result substituted when the
// AI output cannot be parsed.
func FallbackAnalysis() AnalysisResult {
	return AnalysisResult{
		StructuredData: FallbackCV(),
		PersonalInfo:   EmptyPersonalInfo(),
	}
}
