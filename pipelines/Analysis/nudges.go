package analysis

import (
	scoring "github.com/retention-os/retentionos-go/pipelines/Scoring"
	segmentation "github.com/retention-os/retentionos-go/pipelines/Segmentation"
)

// riskNudges are the outreach message templates suggested per risk level
var riskNudges = map[string]string{
	scoring.RiskHigh:   "We miss you! Here's 20% off your next order if you come back this week.",
	scoring.RiskMedium: "Still thinking it over? Items in your cart are waiting - free shipping today.",
	scoring.RiskLow:    "Thanks for being with us! Early access to our new arrivals is live for you.",
}

// segmentNudges are the outreach message templates suggested per RFM segment
var segmentNudges = map[string]string{
	segmentation.SegmentChampion:  "You're one of our best customers - enjoy VIP support and a loyalty bonus.",
	segmentation.SegmentLoyal:     "Great to see you so recently! A little thank-you gift is in your account.",
	segmentation.SegmentFrequent:  "You shop with us a lot - would a subscription save you time and money?",
	segmentation.SegmentHighValue: "Premium picks, hand-selected for you: see this month's curated collection.",
	segmentation.SegmentAtRisk:    "It's been a while. Tell us what went wrong and get 15% off your return order.",
	segmentation.SegmentOthers:    "Discover what's new this week - fresh arrivals across every category.",
}

// NudgeForRiskLevel returns the suggested outreach message for a risk level
func NudgeForRiskLevel(level string) string {
	return riskNudges[level]
}

// NudgeForSegment returns the suggested outreach message for an RFM segment
func NudgeForSegment(segment string) string {
	return segmentNudges[segment]
}

// NudgesForSummary collects the nudge templates relevant to an analysis:
// one per risk level present, plus one per RFM segment when segmentation ran
func NudgesForSummary(summary *Summary) map[string]string {
	nudges := make(map[string]string)
	for level, count := range summary.RiskCounts {
		if count > 0 {
			nudges[level] = riskNudges[level]
		}
	}
	for segment, count := range summary.SegmentCounts {
		if count > 0 {
			nudges[segment] = segmentNudges[segment]
		}
	}
	return nudges
}
