package types

// Source identifies which store a review was fetched from.
type Source string

const (
	SourceGooglePlay Source = "google-play"
	SourceAppStore   Source = "app-store"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	YourAppID    string `json:"yourAppId" validate:"required"`
	CompetitorID string `json:"competitorId" validate:"required"`
	Source       Source `json:"source" validate:"omitempty,oneof=google-play app-store"`
}

// Review is one user-submitted rating plus text from one store.
// Immutable once constructed; owned by the analysis that fetched it.
type Review struct {
	ID      string  `json:"id"`
	Author  string  `json:"author"`
	Rating  float64 `json:"rating"`
	Date    string  `json:"date"`
	Text    string  `json:"text"`
	Source  Source  `json:"source"`
	AppID   string  `json:"appId"`
	AppName string  `json:"appName"`
}

// AppMetadata is the store-listing header for one app.
type AppMetadata struct {
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Developer string `json:"developer"`
}

// ReviewCluster groups reviews sharing one theme within a single app.
// Count is the number of retained sample reviews (capped at 5), not the
// full theme membership size.
type ReviewCluster struct {
	ID            string   `json:"id"`
	Theme         string   `json:"theme"`
	Summary       string   `json:"summary"`
	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"averageRating"`
	Count         int      `json:"count"`
}

// AppAnalysis is the per-app aggregate fed into the comparison.
type AppAnalysis struct {
	AppID              string          `json:"appId"`
	AppName            string          `json:"appName"`
	TotalReviews       int             `json:"totalReviews"`
	AverageRating      float64         `json:"averageRating"`
	RatingDistribution map[int]int     `json:"ratingDistribution"`
	Clusters           []ReviewCluster `json:"clusters"`
	LastUpdated        string          `json:"lastUpdated"`
}

// Classification labels a shared theme by rating delta.
type Classification string

const (
	ClassificationAdvantage Classification = "advantage"
	ClassificationParity    Classification = "parity"
	ClassificationGap       Classification = "gap"
)

// ThemeComparison is one row of the shared-theme table. Always derived
// locally; the model never sets any of these fields.
type ThemeComparison struct {
	Theme            string         `json:"theme"`
	YourRating       float64        `json:"yourRating"`
	CompetitorRating float64        `json:"competitorRating"`
	Delta            float64        `json:"delta"`
	YourCount        int            `json:"yourCount"`
	CompetitorCount  int            `json:"competitorCount"`
	Classification   Classification `json:"classification"`
}

// CompetitiveInsight is one qualitative observation from the synthesis
// step. Numeric fields are present only when derivable from the data.
type CompetitiveInsight struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Description      string   `json:"description"`
	Evidence         []string `json:"evidence"`
	Priority         string   `json:"priority"`
	Theme            string   `json:"theme,omitempty"`
	YourRating       *float64 `json:"yourRating,omitempty"`
	CompetitorRating *float64 `json:"competitorRating,omitempty"`
	RatingDelta      *float64 `json:"ratingDelta,omitempty"`
	YourCount        *int     `json:"yourCount,omitempty"`
	CompetitorCount  *int     `json:"competitorCount,omitempty"`
	Sentiment        string   `json:"sentiment,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// Recommendation is one actionable suggestion from the synthesis step.
type Recommendation struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Impact         string   `json:"impact"`
	Effort         string   `json:"effort"`
	Category       string   `json:"category"`
	BasedOn        []string `json:"basedOn"`
	Metric         string   `json:"metric,omitempty"`
	ExpectedImpact string   `json:"expectedImpact,omitempty"`
	TargetDelta    string   `json:"targetDelta,omitempty"`
	Timeframe      string   `json:"timeframe,omitempty"`
	BasedOnThemes  []string `json:"basedOnThemes,omitempty"`
}

// MarketPosition ranks the two apps against each other.
type MarketPosition struct {
	Rank             int      `json:"rank"`
	TotalApps        int      `json:"totalApps"`
	RatingComparison string   `json:"ratingComparison"`
	VolumeComparison string   `json:"volumeComparison"`
	UniqueStrengths  []string `json:"uniqueStrengths"`
	CompetitiveGaps  []string `json:"competitiveGaps"`
}

// ComparisonSummary holds the headline numeric deltas. Fully derived,
// zero model involvement.
type ComparisonSummary struct {
	RatingDelta float64 `json:"ratingDelta"`
	VolumeDelta int     `json:"volumeDelta"`
	Advantages  int     `json:"advantages"`
	Gaps        int     `json:"gaps"`
}

// CompetitiveAnalysis is the root response object. Built fresh per
// request; never persisted.
type CompetitiveAnalysis struct {
	YourApp          AppAnalysis          `json:"yourApp"`
	Competitor       AppAnalysis          `json:"competitor"`
	Insights         []CompetitiveInsight `json:"insights"`
	Recommendations  []Recommendation     `json:"recommendations"`
	MarketPosition   MarketPosition       `json:"marketPosition"`
	ThemeComparisons []ThemeComparison    `json:"themeComparisons"`
	Summary          ComparisonSummary    `json:"summary"`
	LastUpdated      string               `json:"lastUpdated"`
}

// ErrorResponse is the failure body for every endpoint.
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	Suggestion string `json:"suggestion,omitempty"`
}
