// Package ranking scores adoptable animals for the feed.
//
// A candidate's score is its listing recency (days since the Unix epoch)
// plus a capped sum of risk boosts plus uncapped profile boosts. Every boost
// that fires appends a reason tag, which is surfaced to the adopter as
// "why shown":
//
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//	scorer := ranking.NewScorer(weights)
//	ranked := scorer.Rank(candidates, adopterProfile)
//
// Rank orders by score descending with candidate ID descending as the
// tie-break, which makes the order total and deterministic.
//
// Calibration:
//
// Weights can be tuned at deploy time via a JSON file loaded at startup.
// Zero values in the file keep the default. See
// configs/ranking.calibration.json.
package ranking
